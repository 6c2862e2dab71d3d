// Package tree models the synced file hierarchy of a cloud-sync client's
// local metadata cache: a root directory, orphaned and shared-with-me
// subtrees, tombstoned ids and local/cloud mirror records.
//
// The Tree is the owning arena. Items are registered once; directory
// children and link targets are handles into the arena, so a directory
// referenced by several links is stored once and owned by wherever it was
// attached. The tree is built in a single phase and then only queried.
package tree

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// Tree is the synced files container.
type Tree struct {
	items []*Item // arena, indexed by Handle

	root         Handle
	orphans      []Handle
	sharedWithMe []Handle
	deleted      []string
	mirrors      []*MirrorItem

	frozen bool
}

// New creates a tree around root, which must be a directory.
func New(root *Item) (*Tree, error) {
	if !root.IsDir() {
		return nil, fmt.Errorf("root %s: %w", root.stableID, ErrNotDirectory)
	}
	t := &Tree{}
	h, err := t.register(root)
	if err != nil {
		return nil, err
	}
	t.root = h
	return t, nil
}

// register places it in the arena if it is not there yet.
func (t *Tree) register(it *Item) (Handle, error) {
	if it.tree == t {
		return it.handle, nil
	}
	if it.tree != nil {
		return 0, fmt.Errorf("item %s: %w", it.stableID, ErrForeignItem)
	}
	it.tree = t
	it.handle = Handle(len(t.items))
	t.items = append(t.items, it)
	return it.handle, nil
}

func (t *Tree) mutable() error {
	if t.frozen {
		return ErrFrozen
	}
	return nil
}

// Freeze ends the build phase. Every later mutation fails with ErrFrozen,
// and the tree may be read from several goroutines once the goroutines are
// started after Freeze returns.
func (t *Tree) Freeze() { t.frozen = true }

func (t *Tree) Frozen() bool { return t.frozen }

// Len returns the number of registered items.
func (t *Tree) Len() int { return len(t.items) }

func (t *Tree) Root() *Item { return t.items[t.root] }

// AddItem appends child to parent's children. No duplicate-id check is
// made; callers own id uniqueness.
func (t *Tree) AddItem(parent, child *Item) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if !parent.IsDir() {
		return fmt.Errorf("add %s to %s: %w", child.stableID, parent.stableID, ErrNotDirectory)
	}
	if _, err := t.register(parent); err != nil {
		return err
	}
	h, err := t.register(child)
	if err != nil {
		return err
	}
	parent.children = append(parent.children, h)
	return nil
}

// RemoveItem drops every child of parent whose stable id matches and
// returns how many were removed. Remaining children keep their order.
func (t *Tree) RemoveItem(parent *Item, stableID string) (int, error) {
	if err := t.mutable(); err != nil {
		return 0, err
	}
	if !parent.IsDir() {
		return 0, fmt.Errorf("remove from %s: %w", parent.stableID, ErrNotDirectory)
	}
	kept := parent.children[:0]
	removed := 0
	for _, h := range parent.children {
		if t.items[h].stableID == stableID {
			removed++
			continue
		}
		kept = append(kept, h)
	}
	parent.children = kept
	return removed, nil
}

// SetLinkTarget points link at target. The link does not own target.
func (t *Tree) SetLinkTarget(link, target *Item) error {
	if err := t.mutable(); err != nil {
		return err
	}
	if !link.IsLink() {
		return fmt.Errorf("link %s: %w", link.stableID, ErrNotLink)
	}
	if !target.IsDir() {
		return fmt.Errorf("link target %s: %w", target.stableID, ErrNotDirectory)
	}
	if _, err := t.register(link); err != nil {
		return err
	}
	h, err := t.register(target)
	if err != nil {
		return err
	}
	link.target = h
	link.hasTarget = true
	return nil
}

// Target returns the directory a link points at, or nil.
func (t *Tree) Target(link *Item) *Item {
	if link.tree != t || !link.hasTarget {
		return nil
	}
	return t.items[link.target]
}

// SubItems returns the traversal children of it: a directory's own
// children, a link target's children, nothing for a file.
func (t *Tree) SubItems(it *Item) []*Item {
	hs := t.subHandles(it)
	if len(hs) == 0 {
		return nil
	}
	out := make([]*Item, len(hs))
	for i, h := range hs {
		out[i] = t.items[h]
	}
	return out
}

func (t *Tree) subHandles(it *Item) []Handle {
	if it.tree != t {
		return nil
	}
	switch it.kind {
	case KindDirectory:
		return it.children
	case KindLink:
		if !it.hasTarget {
			return nil
		}
		return t.items[it.target].children
	default:
		return nil
	}
}

// expansion returns the arena slot whose children it contributes, used to
// detect a walk re-entering one of its own ancestors.
func (t *Tree) expansion(it *Item) Handle {
	if it.kind == KindLink && it.hasTarget {
		return it.target
	}
	return it.handle
}

func (t *Tree) AddOrphanItem(it *Item) error {
	if err := t.mutable(); err != nil {
		return err
	}
	h, err := t.register(it)
	if err != nil {
		return err
	}
	t.orphans = append(t.orphans, h)
	return nil
}

func (t *Tree) AddSharedWithMeItem(it *Item) error {
	if err := t.mutable(); err != nil {
		return err
	}
	h, err := t.register(it)
	if err != nil {
		return err
	}
	t.sharedWithMe = append(t.sharedWithMe, h)
	return nil
}

// AddDeletedItem records a tombstone. Only the id is retained.
func (t *Tree) AddDeletedItem(stableID string) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.deleted = append(t.deleted, stableID)
	return nil
}

func (t *Tree) AddMirroredItem(m *MirrorItem) error {
	if err := t.mutable(); err != nil {
		return err
	}
	t.mirrors = append(t.mirrors, m)
	return nil
}

func (t *Tree) OrphanItems() []*Item      { return t.resolve(t.orphans) }
func (t *Tree) SharedWithMeItems() []*Item { return t.resolve(t.sharedWithMe) }

func (t *Tree) DeletedItems() []string {
	return append([]string(nil), t.deleted...)
}

func (t *Tree) MirroredItems() []*MirrorItem {
	return append([]*MirrorItem(nil), t.mirrors...)
}

func (t *Tree) resolve(hs []Handle) []*Item {
	out := make([]*Item, len(hs))
	for i, h := range hs {
		out[i] = t.items[h]
	}
	return out
}

// GetItemByID performs a breadth-first scan over directories, seeded with
// the root and the orphan roots, or the orphan roots alone when orphanOnly
// is set. Children of every dequeued directory are matched whatever their
// kind, but only directories are enqueued: links are never followed.
func (t *Tree) GetItemByID(stableID string, orphanOnly bool) (*Item, bool) {
	var queue []Handle
	if !orphanOnly {
		queue = append(queue, t.root)
	}
	queue = append(queue, t.orphans...)

	visited := roaring.New()
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		dir := t.items[h]
		if !dir.IsDir() || !visited.CheckedAdd(uint32(h)) {
			continue
		}
		for _, ch := range dir.children {
			child := t.items[ch]
			if child.stableID == stableID {
				return child, true
			}
			if child.IsDir() {
				queue = append(queue, ch)
			}
		}
	}
	return nil, false
}

// AllItems lists the root, the orphan roots, the shared-with-me roots and
// everything beneath them in depth-first order. Each item appears once;
// links are listed but their targets are not expanded, since a target
// directory is attached elsewhere.
func (t *Tree) AllItems() []*Item {
	var (
		out  []*Item
		seen = roaring.New()
	)
	var walk func(h Handle)
	walk = func(h Handle) {
		if !seen.CheckedAdd(uint32(h)) {
			return
		}
		it := t.items[h]
		out = append(out, it)
		if it.kind != KindDirectory {
			return
		}
		for _, c := range it.children {
			walk(c)
		}
	}
	walk(t.root)
	for _, h := range t.orphans {
		walk(h)
	}
	for _, h := range t.sharedWithMe {
		walk(h)
	}
	return out
}
