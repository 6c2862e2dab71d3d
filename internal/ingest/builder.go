package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentic-research/sleuth/internal/logging"
	"github.com/agentic-research/sleuth/internal/tree"
	"go.uber.org/zap"
)

var ErrNoRoot = errors.New("root item not found")

// Builder assembles a frozen tree from a Document in two passes: every item
// is created first, then children are attached and link targets bound.
type Builder struct {
	Log *zap.Logger
}

// Build returns the frozen tree. Items whose parent cannot be resolved and
// that are not shared-with-me roots become orphan roots.
func (b *Builder) Build(doc *Document) (*tree.Tree, error) {
	log := logging.OrNop(b.Log)

	items := make([]*tree.Item, len(doc.Items))
	byID := make(map[string]*tree.Item, len(doc.Items))
	for i, rec := range doc.Items {
		var it *tree.Item
		switch rec.Kind {
		case tree.KindDirectory:
			it = tree.NewDirectory(rec.Meta)
		case tree.KindLink:
			it = tree.NewLink(rec.Meta)
		default:
			it = tree.NewFile(rec.Meta)
		}
		items[i] = it
		if _, dup := byID[rec.Meta.StableID]; dup {
			log.Warn("duplicate stable id, keeping first for references", zap.String("stable_id", rec.Meta.StableID))
			continue
		}
		byID[rec.Meta.StableID] = it
	}

	root, ok := byID[doc.Root]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoot, doc.Root)
	}
	t, err := tree.New(root)
	if err != nil {
		return nil, err
	}

	designated := make(map[*tree.Item]bool)
	for _, id := range doc.Orphans {
		it, ok := byID[id]
		if !ok {
			log.Warn("orphan root not found", zap.String("stable_id", id))
			continue
		}
		if err := t.AddOrphanItem(it); err != nil {
			return nil, err
		}
		designated[it] = true
	}
	for _, id := range doc.SharedWithMe {
		it, ok := byID[id]
		if !ok {
			log.Warn("shared-with-me root not found", zap.String("stable_id", id))
			continue
		}
		if err := t.AddSharedWithMeItem(it); err != nil {
			return nil, err
		}
		designated[it] = true
	}

	for i, rec := range doc.Items {
		it := items[i]
		if it == root || designated[it] {
			continue
		}
		parent, ok := byID[rec.Parent]
		switch {
		case ok && parent.IsDir() && parent != it:
			if err := t.AddItem(parent, it); err != nil {
				return nil, err
			}
			continue
		case ok:
			log.Warn("parent is not a directory", zap.String("stable_id", rec.Meta.StableID), zap.String("parent", rec.Parent))
		case rec.Parent != "":
			log.Debug("parent missing, treating as orphan", zap.String("stable_id", rec.Meta.StableID), zap.String("parent", rec.Parent))
		}
		if err := t.AddOrphanItem(it); err != nil {
			return nil, err
		}
	}

	for i, rec := range doc.Items {
		if rec.Kind != tree.KindLink || rec.Target == "" {
			continue
		}
		target, ok := byID[rec.Target]
		if !ok || !target.IsDir() {
			log.Warn("link target unresolved", zap.String("stable_id", rec.Meta.StableID), zap.String("target", rec.Target))
			continue
		}
		if err := t.SetLinkTarget(items[i], target); err != nil {
			return nil, err
		}
	}

	for _, id := range doc.Deleted {
		if err := t.AddDeletedItem(id); err != nil {
			return nil, err
		}
	}
	for _, m := range doc.Mirrors {
		if err := t.AddMirroredItem(m); err != nil {
			return nil, err
		}
	}

	t.Freeze()
	log.Info("tree built",
		zap.Int("items", t.Len()),
		zap.Int("orphans", len(t.OrphanItems())),
		zap.Int("shared_with_me", len(t.SharedWithMeItems())),
		zap.Int("deleted", len(doc.Deleted)),
		zap.Int("mirrors", len(doc.Mirrors)))
	return t, nil
}

// LoadTree reads a record dump and builds its tree. Paths ending in .db,
// .sqlite or .sqlite3 are read with LoadSQLite, anything else as JSON.
func LoadTree(path string, log *zap.Logger) (*tree.Tree, error) {
	var (
		doc *Document
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		doc, err = LoadSQLite(path)
	default:
		doc, err = LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return (&Builder{Log: log}).Build(doc)
}
