package tree

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// SearchQuery selects items by title.
type SearchQuery struct {
	// Filenames are compared case-insensitively: substring when Contains is
	// set, whole title otherwise.
	Filenames []string
	// Regex patterns are searched anywhere in the title, case-sensitively.
	Regex    []string
	Contains bool
	// ListSubItems appends every descendant of a matching directory or link
	// without testing them further.
	ListSubItems bool
}

type searcher struct {
	t        *Tree
	patterns []*regexp.Regexp
	names    []string
	contains bool
	expand   bool

	path  *roaring.Bitmap
	found []*Item
}

// SearchItemByName walks the root, then every orphan root, then every
// shared-with-me root depth-first and returns the matches in discovery
// order. An item appears once per pattern it matches, and again when it is
// both a listed descendant and an independent match; duplicates are kept.
func (t *Tree) SearchItemByName(q SearchQuery) ([]*Item, error) {
	s := &searcher{
		t:        t,
		contains: q.Contains,
		expand:   q.ListSubItems,
		path:     roaring.New(),
	}
	for _, expr := range q.Regex {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
		}
		s.patterns = append(s.patterns, re)
	}
	for _, name := range q.Filenames {
		s.names = append(s.names, strings.ToLower(name))
	}

	s.search(t.Root())
	for _, h := range t.orphans {
		s.search(t.items[h])
	}
	for _, h := range t.sharedWithMe {
		s.search(t.items[h])
	}
	return s.found, nil
}

func (s *searcher) match(it *Item) bool {
	hit := false
	for _, re := range s.patterns {
		if re.MatchString(it.LocalTitle) {
			s.found = append(s.found, it)
			hit = true
		}
	}
	title := strings.ToLower(it.LocalTitle)
	for _, name := range s.names {
		var ok bool
		if s.contains {
			ok = strings.Contains(title, name)
		} else {
			ok = title == name
		}
		if ok {
			s.found = append(s.found, it)
			hit = true
		}
	}
	return hit
}

func (s *searcher) search(it *Item) {
	hit := s.match(it)
	if it.IsFile() {
		return
	}
	if !s.enter(it) {
		return
	}
	defer s.leave(it)

	if hit && s.expand {
		for _, child := range s.t.SubItems(it) {
			s.appendAll(child)
		}
		return
	}
	for _, child := range s.t.SubItems(it) {
		s.search(child)
	}
}

func (s *searcher) appendAll(it *Item) {
	s.found = append(s.found, it)
	if it.IsFile() {
		return
	}
	if !s.enter(it) {
		return
	}
	defer s.leave(it)
	for _, child := range s.t.SubItems(it) {
		s.appendAll(child)
	}
}

// enter reports false when descending into it would revisit an ancestor.
func (s *searcher) enter(it *Item) bool {
	return s.path.CheckedAdd(uint32(s.t.expansion(it)))
}

func (s *searcher) leave(it *Item) {
	s.path.Remove(uint32(s.t.expansion(it)))
}
