// Package ingest turns the decoded record dump produced by the extraction
// layer into a tree.Tree.
//
// The dump is a JSON document, or a SQLite staging database holding the
// same sections row by row (see LoadSQLite):
//
//	{
//	  "root": "<stable id>",
//	  "items": [{"kind": "directory|file|link", "stable_id": ..., "parent": ..., "target": ...}],
//	  "orphans": ["<stable id>"],
//	  "shared_with_me": ["<stable id>"],
//	  "deleted": ["<stable id>"],
//	  "mirrors": [{"local_stable_id": ..., "cloud_filename": ...}]
//	}
package ingest

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

var ErrInvalidDocument = errors.New("invalid record document")

// ItemRecord is one decoded item row.
type ItemRecord struct {
	Kind   tree.Kind
	Meta   tree.Metadata
	Parent string
	Target string // links only
}

// Document is the full decoded record set.
type Document struct {
	Root         string
	Items        []ItemRecord
	Orphans      []string
	SharedWithMe []string
	Deleted      []string
	Mirrors      []*tree.MirrorItem
}

var (
	rootPath    = jp.MustParseString("$.root")
	itemsPath   = jp.MustParseString("$.items[*]")
	orphansPath = jp.MustParseString("$.orphans[*]")
	sharedPath  = jp.MustParseString("$.shared_with_me[*]")
	deletedPath = jp.MustParseString("$.deleted[*]")
	mirrorsPath = jp.MustParseString("$.mirrors[*]")
)

// LoadFile reads and parses a record dump.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a record dump.
func Parse(data []byte) (*Document, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return decode(root)
}

// decode selects the document sections out of a parsed dump.
func decode(root any) (*Document, error) {
	if _, ok := root.(map[string]any); !ok {
		return nil, fmt.Errorf("%w: top level is not an object", ErrInvalidDocument)
	}

	doc := &Document{}
	if r := rootPath.Get(root); len(r) == 1 {
		doc.Root = scalar(r[0])
	}
	if doc.Root == "" {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidDocument)
	}

	for i, v := range itemsPath.Get(root) {
		rec, err := decodeItem(v)
		if err != nil {
			return nil, fmt.Errorf("%w: items[%d]: %v", ErrInvalidDocument, i, err)
		}
		doc.Items = append(doc.Items, rec)
	}
	for i, v := range mirrorsPath.Get(root) {
		m, err := decodeMirror(v)
		if err != nil {
			return nil, fmt.Errorf("%w: mirrors[%d]: %v", ErrInvalidDocument, i, err)
		}
		doc.Mirrors = append(doc.Mirrors, m)
	}
	doc.Orphans = scalars(orphansPath.Get(root))
	doc.SharedWithMe = scalars(sharedPath.Get(root))
	doc.Deleted = scalars(deletedPath.Get(root))
	return doc, nil
}

func decodeItem(v any) (ItemRecord, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return ItemRecord{}, errors.New("not an object")
	}

	var kind tree.Kind
	switch strings.ToLower(scalar(m["kind"])) {
	case "file":
		kind = tree.KindFile
	case "directory", "dir", "folder":
		kind = tree.KindDirectory
	case "link", "shortcut":
		kind = tree.KindLink
	default:
		return ItemRecord{}, fmt.Errorf("unknown kind %q", scalar(m["kind"]))
	}

	id := scalar(m["stable_id"])
	if id == "" {
		return ItemRecord{}, errors.New("missing stable_id")
	}

	props, _ := m["properties"].(map[string]any)
	return ItemRecord{
		Kind: kind,
		Meta: tree.Metadata{
			StableID:       id,
			URLID:          scalar(m["url_id"]),
			LocalTitle:     scalar(m["local_title"]),
			MimeType:       scalar(m["mime_type"]),
			IsOwner:        truthy(m["is_owner"]),
			FileSize:       scalar(m["file_size"]),
			ModifiedDate:   scalar(m["modified_date"]),
			ViewedByMeDate: scalar(m["viewed_by_me_date"]),
			Trashed:        truthy(m["trashed"]),
			Properties:     props,
			TreePath:       scalar(m["tree_path"]),
		},
		Parent: scalar(m["parent"]),
		Target: scalar(m["target"]),
	}, nil
}

func decodeMirror(v any) (*tree.MirrorItem, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("not an object")
	}
	mi := &tree.MirrorItem{
		LocalStableID: scalar(m["local_stable_id"]),
		StableID:      scalar(m["stable_id"]),
		Volume:        scalar(m["volume"]),
		Parent:        scalar(m["parent"]),
		LocalFilename: scalar(m["local_filename"]),
		CloudFilename: scalar(m["cloud_filename"]),
		LocalMtime:    scalar(m["local_mtime"]),
		CloudMtime:    scalar(m["cloud_mtime"]),
		LocalMD5:      scalar(m["local_md5"]),
		CloudMD5:      scalar(m["cloud_md5"]),
		Shared:        truthy(m["shared"]),
		ReadOnly:      truthy(m["read_only"]),
		IsRoot:        truthy(m["is_root"]),
	}
	ints := []struct {
		key string
		dst *int64
	}{
		{"local_size", &mi.LocalSize},
		{"cloud_size", &mi.CloudSize},
		{"local_version", &mi.LocalVersion},
		{"cloud_version", &mi.CloudVersion},
	}
	for _, f := range ints {
		n, err := integer(m[f.key])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = n
	}
	return mi, nil
}

// scalar renders a decoded JSON value in its raw textual form.
func scalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func scalars(vs []any) []string {
	out := make([]string, 0, len(vs))
	for _, v := range vs {
		if s := scalar(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truthy accepts booleans, 0/1 integers and their string forms.
func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case int64:
		return x != 0
	case float64:
		return x != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(x))
		return err == nil && b
	default:
		return false
	}
}

func integer(v any) (int64, error) {
	switch x := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return x, nil
	case float64:
		return int64(x), nil
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, nil
		}
		return strconv.ParseInt(strings.TrimSpace(x), 10, 64)
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}
