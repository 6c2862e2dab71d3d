package tree

import (
	"strconv"
	"strings"
	"time"
)

// Kind tags the three item variants.
type Kind uint8

const (
	KindFile Kind = iota
	KindDirectory
	KindLink
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDirectory:
		return "directory"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// Handle is an item's slot in the owning Tree's arena.
type Handle uint32

// Metadata is the decoded field set for one item, as handed over by the
// extraction layer. Numeric fields stay in their raw form; they are only
// converted by the derived accessors on Item.
type Metadata struct {
	StableID       string
	URLID          string
	LocalTitle     string
	MimeType       string
	IsOwner        bool
	FileSize       string // bytes
	ModifiedDate   string // epoch milliseconds
	ViewedByMeDate string // epoch milliseconds
	Trashed        bool
	Properties     map[string]any
	TreePath       string // precomputed by the builder, never derived from the tree
}

// Item is a File, Directory or Link node. Relations between items (children,
// link targets) are owned by the Tree the item is registered in.
type Item struct {
	stableID string
	kind     Kind

	URLID          string
	LocalTitle     string
	MimeType       string
	IsOwner        bool
	FileSize       string
	ModifiedDate   string
	ViewedByMeDate string
	Trashed        bool
	Properties     map[string]any
	TreePath       string

	tree      *Tree
	handle    Handle
	children  []Handle // directories only
	target    Handle   // links only, valid when hasTarget
	hasTarget bool
}

// NewFile creates an unregistered file item.
func NewFile(m Metadata) *Item { return newItem(KindFile, m) }

// NewDirectory creates an unregistered directory item.
func NewDirectory(m Metadata) *Item { return newItem(KindDirectory, m) }

// NewLink creates an unregistered link item. Bind its target with
// Tree.SetLinkTarget.
func NewLink(m Metadata) *Item { return newItem(KindLink, m) }

func newItem(kind Kind, m Metadata) *Item {
	props := m.Properties
	if props == nil {
		props = map[string]any{}
	}
	return &Item{
		stableID:       m.StableID,
		kind:           kind,
		URLID:          m.URLID,
		LocalTitle:     m.LocalTitle,
		MimeType:       m.MimeType,
		IsOwner:        m.IsOwner,
		FileSize:       m.FileSize,
		ModifiedDate:   m.ModifiedDate,
		ViewedByMeDate: m.ViewedByMeDate,
		Trashed:        m.Trashed,
		Properties:     props,
		TreePath:       m.TreePath,
	}
}

// StableID returns the identifier assigned at construction.
func (it *Item) StableID() string { return it.stableID }

// Kind returns the variant tag.
func (it *Item) Kind() Kind { return it.kind }

func (it *Item) IsDir() bool  { return it.kind == KindDirectory }
func (it *Item) IsLink() bool { return it.kind == KindLink }
func (it *Item) IsFile() bool { return it.kind == KindFile }

// ModifiedDateUTC converts ModifiedDate from epoch milliseconds.
func (it *Item) ModifiedDateUTC() (time.Time, error) {
	return epochMillisUTC("modified_date", it.ModifiedDate)
}

// ViewedByMeDateUTC converts ViewedByMeDate from epoch milliseconds.
func (it *Item) ViewedByMeDateUTC() (time.Time, error) {
	return epochMillisUTC("viewed_by_me_date", it.ViewedByMeDate)
}

// FileSizeMB returns the size in decimal megabytes rounded to 2 places.
func (it *Item) FileSizeMB() (float64, error) {
	n, err := parseInt("file_size", it.FileSize)
	if err != nil {
		return 0, err
	}
	// Formatting rounds the exact binary value half to even.
	return strconv.ParseFloat(strconv.FormatFloat(float64(n)/1e6, 'f', 2, 64), 64)
}

// Reserved export keys, in column order.
var ReservedFields = []string{
	"stable_id",
	"url_id",
	"local_title",
	"mime_type",
	"is_owner",
	"file_size",
	"modified_date",
	"viewed_by_me_date",
	"trashed",
	"tree_path",
}

// Fields returns the export mapping for the item. Dates are UTC instants,
// file_size is the raw count. Properties are merged last and replace any
// reserved key of the same name.
func (it *Item) Fields() (map[string]any, error) {
	modified, err := it.ModifiedDateUTC()
	if err != nil {
		return nil, err
	}
	viewed, err := it.ViewedByMeDateUTC()
	if err != nil {
		return nil, err
	}

	fields := map[string]any{
		"stable_id":         it.stableID,
		"url_id":            it.URLID,
		"local_title":       it.LocalTitle,
		"mime_type":         it.MimeType,
		"is_owner":          it.IsOwner,
		"file_size":         it.FileSize,
		"modified_date":     modified,
		"viewed_by_me_date": viewed,
		"trashed":           it.Trashed,
		"tree_path":         it.TreePath,
	}
	for k, v := range it.Properties {
		fields[k] = v
	}
	return fields, nil
}

func parseInt(field, raw string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, &FormatError{Field: field, Value: raw, Err: err}
	}
	return n, nil
}

func epochMillisUTC(field, raw string) (time.Time, error) {
	ms, err := parseInt(field, raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
