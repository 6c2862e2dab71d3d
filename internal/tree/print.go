package tree

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/RoaringBitmap/roaring"
)

// Print writes the diagnostic report: the synced hierarchy under the root
// and the orphan roots, then the deleted ids, the orphan roots and the
// shared-with-me roots.
func (t *Tree) Print(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprint(bw, "\n----------Synced Items----------\n\n")
	if err := t.PrintItems(bw, append([]*Item{t.Root()}, t.OrphanItems()...)); err != nil {
		return err
	}

	fmt.Fprint(bw, "\n----------Deleted Items----------\n\n")
	for _, id := range t.deleted {
		fmt.Fprintf(bw, "- %s\n", id)
	}

	fmt.Fprint(bw, "\n----------Orphan Items----------\n\n")
	for _, h := range t.orphans {
		it := t.items[h]
		fmt.Fprintf(bw, "- (%s) %s\n", it.stableID, it.LocalTitle)
	}

	fmt.Fprint(bw, "\n----------Shared With Me Items----------\n\n")
	for _, h := range t.sharedWithMe {
		it := t.items[h]
		fmt.Fprintf(bw, "- (%s) %s\n", it.stableID, it.LocalTitle)
	}

	return bw.Flush()
}

// PrintItems renders each root depth-first, one tab per level. Files are
// marked "-", directories and links "+"; a link lists its target's
// children. Items of another tree are skipped. The first write error stops
// the walk and is returned.
func (t *Tree) PrintItems(w io.Writer, roots []*Item) error {
	p := &printer{t: t, w: w, path: roaring.New()}
	for _, it := range roots {
		if it.tree != t {
			continue
		}
		p.print(it, 0)
		if p.err != nil {
			return p.err
		}
	}
	return nil
}

type printer struct {
	t    *Tree
	w    io.Writer
	path *roaring.Bitmap
	err  error
}

func (p *printer) print(it *Item, depth int) {
	if p.err != nil {
		return
	}
	indent := strings.Repeat("\t", depth)
	marker := "+"
	if it.IsFile() {
		marker = "-"
	}
	if _, p.err = fmt.Fprintf(p.w, "%s%s (%s) %s - (%s)\n", indent, marker, it.stableID, it.LocalTitle, it.TreePath); p.err != nil {
		return
	}
	if it.IsFile() {
		return
	}

	slot := uint32(p.t.expansion(it))
	if !p.path.CheckedAdd(slot) {
		return
	}
	for _, child := range p.t.SubItems(it) {
		p.print(child, depth+1)
	}
	p.path.Remove(slot)
}
