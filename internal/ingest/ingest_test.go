package ingest

import (
	"testing"

	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func titles(items []*tree.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.LocalTitle
	}
	return out
}

func TestParse_Fixture(t *testing.T) {
	doc, err := LoadFile("testdata/records.json")
	require.NoError(t, err)

	assert.Equal(t, "1", doc.Root)
	require.Len(t, doc.Items, 10)
	assert.Equal(t, []string{"10"}, doc.Orphans)
	assert.Equal(t, []string{"20"}, doc.SharedWithMe)
	assert.Equal(t, []string{"9", "13"}, doc.Deleted)

	q1 := doc.Items[2]
	assert.Equal(t, tree.KindFile, q1.Kind)
	assert.Equal(t, "3", q1.Meta.StableID)
	assert.Equal(t, "2", q1.Parent)
	assert.Equal(t, "1500000", q1.Meta.FileSize)
	assert.Equal(t, true, q1.Meta.Properties["starred"])
	assert.False(t, q1.Meta.Trashed)
	assert.True(t, doc.Items[0].Meta.IsOwner)
	assert.True(t, doc.Items[3].Meta.Trashed)

	lnk := doc.Items[4]
	assert.Equal(t, tree.KindLink, lnk.Kind)
	assert.Equal(t, "10", lnk.Target)

	require.Len(t, doc.Mirrors, 1)
	m := doc.Mirrors[0]
	assert.Equal(t, "30", m.LocalStableID)
	assert.Equal(t, int64(1500000), m.CloudSize)
	assert.Equal(t, int64(3), m.CloudVersion)
	assert.Equal(t, []string{"mtime", "md5", "version"}, m.Differences())
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"not an object": `[1, 2]`,
		"no root":       `{"items": []}`,
		"bad kind":      `{"root": "1", "items": [{"kind": "socket", "stable_id": "1"}]}`,
		"no id":         `{"root": "1", "items": [{"kind": "file"}]}`,
		"bad size":      `{"root": "1", "mirrors": [{"local_size": "big"}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body))
			assert.ErrorIs(t, err, ErrInvalidDocument)
		})
	}
}

func TestBuild_Fixture(t *testing.T) {
	tr, err := LoadTree("testdata/records.json", zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tr.Frozen())

	root := tr.Root()
	assert.Equal(t, "My Drive", root.LocalTitle)
	assert.Equal(t, []string{"Reports", "Lost shortcut"}, titles(tr.SubItems(root)))

	assert.Equal(t, []string{"lost", "stray.bin"}, titles(tr.OrphanItems()))
	assert.Equal(t, []string{"From Bob"}, titles(tr.SharedWithMeItems()))
	assert.Equal(t, []string{"9", "13"}, tr.DeletedItems())
	assert.Len(t, tr.MirroredItems(), 1)

	lnk, ok := tr.GetItemByID("5", false)
	require.True(t, ok)
	assert.Equal(t, []string{"lost.txt"}, titles(tr.SubItems(lnk)))

	// Reachable through the orphan root, not through the link.
	it, ok := tr.GetItemByID("11", true)
	require.True(t, ok)
	assert.Equal(t, "lost.txt", it.LocalTitle)

	_, ok = tr.GetItemByID("21", false)
	assert.False(t, ok, "shared-with-me subtrees are not part of id lookup")
}

func TestBuild_SearchOverFixture(t *testing.T) {
	tr, err := LoadTree("testdata/records.json", nil)
	require.NoError(t, err)

	got, err := tr.SearchItemByName(tree.SearchQuery{Filenames: []string{"report"}, Contains: true, ListSubItems: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"Reports", "q1.pdf", "notes.txt"}, titles(got))

	got, err = tr.SearchItemByName(tree.SearchQuery{Regex: []string{`\.xlsx$`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"budget.xlsx"}, titles(got))
}

func TestBuild_MissingRoot(t *testing.T) {
	doc := &Document{Root: "1", Items: []ItemRecord{{Kind: tree.KindFile, Meta: tree.Metadata{StableID: "2"}}}}
	_, err := (&Builder{}).Build(doc)
	assert.ErrorIs(t, err, ErrNoRoot)
}

func TestBuild_RootNotDirectory(t *testing.T) {
	doc := &Document{Root: "1", Items: []ItemRecord{{Kind: tree.KindFile, Meta: tree.Metadata{StableID: "1"}}}}
	_, err := (&Builder{}).Build(doc)
	assert.ErrorIs(t, err, tree.ErrNotDirectory)
}

func TestBuild_ParentIsFileBecomesOrphan(t *testing.T) {
	doc := &Document{
		Root: "1",
		Items: []ItemRecord{
			{Kind: tree.KindDirectory, Meta: tree.Metadata{StableID: "1"}},
			{Kind: tree.KindFile, Meta: tree.Metadata{StableID: "2"}, Parent: "1"},
			{Kind: tree.KindFile, Meta: tree.Metadata{StableID: "3", LocalTitle: "child of file"}, Parent: "2"},
		},
	}
	tr, err := (&Builder{Log: zaptest.NewLogger(t)}).Build(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"child of file"}, titles(tr.OrphanItems()))
}

func TestBuild_DanglingLinkTarget(t *testing.T) {
	doc := &Document{
		Root: "1",
		Items: []ItemRecord{
			{Kind: tree.KindDirectory, Meta: tree.Metadata{StableID: "1"}},
			{Kind: tree.KindLink, Meta: tree.Metadata{StableID: "2"}, Parent: "1", Target: "404"},
		},
	}
	tr, err := (&Builder{}).Build(doc)
	require.NoError(t, err)

	lnk, ok := tr.GetItemByID("2", false)
	require.True(t, ok)
	assert.Nil(t, tr.Target(lnk))
}
