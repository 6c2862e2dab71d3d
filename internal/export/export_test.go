package export

import (
	"database/sql"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/agentic-research/sleuth/internal/tree"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	good := tree.NewFile(tree.Metadata{
		StableID:       "3",
		LocalTitle:     "q1.pdf",
		FileSize:       "1500000",
		ModifiedDate:   "1690000000000",
		ViewedByMeDate: "0",
		IsOwner:        true,
		Properties:     map[string]any{"starred": true},
	})
	bad := tree.NewFile(tree.Metadata{StableID: "4", LocalTitle: "broken", ModifiedDate: "soon", ViewedByMeDate: "0"})
	dir := tree.NewDirectory(tree.Metadata{
		StableID:       "2",
		LocalTitle:     "Reports",
		ModifiedDate:   "0",
		ViewedByMeDate: "0",
		Properties:     map[string]any{"local_title": "renamed"},
	})
	return Report{
		Items: []*tree.Item{good, bad, dir},
		Mirrors: []*tree.MirrorItem{
			{StableID: "3", LocalFilename: "q1.pdf", CloudFilename: "q1.pdf", LocalMtime: "0", CloudMtime: "1000", LocalSize: 5, CloudSize: 5},
			{StableID: "8", LocalMtime: "x", CloudMtime: "0"},
		},
	}
}

func readAll(t *testing.T, fs billy.Filesystem, name string) string {
	t.Helper()
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return string(data)
}

func TestItemRows_IsolatesFailures(t *testing.T) {
	rows, failures := ItemRows(sampleReport().Items)

	require.Len(t, rows, 2)
	assert.Equal(t, "3", rows[0]["stable_id"])
	assert.Equal(t, "file", rows[0]["kind"])
	assert.Equal(t, "renamed", rows[1]["local_title"], "properties win on collision")

	require.Len(t, failures, 1)
	assert.Equal(t, "4", failures[0].StableID)
	var fe *tree.FormatError
	assert.ErrorAs(t, failures[0].Err, &fe)
	assert.Contains(t, failures[0].Error(), "item 4")
}

func TestItemColumns(t *testing.T) {
	rows, _ := ItemRows(sampleReport().Items)
	cols := ItemColumns(rows)

	assert.Equal(t, "kind", cols[0])
	assert.Equal(t, tree.ReservedFields, cols[1:len(tree.ReservedFields)+1])
	assert.Equal(t, []string{"starred"}, cols[len(tree.ReservedFields)+1:])
}

func TestWriteCSV(t *testing.T) {
	fs := memfs.New()
	res, err := WriteCSV(fs, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, []string{ItemsCSV, MirrorsCSV}, res.Files)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 1, res.Mirrors)
	assert.Len(t, res.Failures, 2)

	records, err := csv.NewReader(strings.NewReader(readAll(t, fs, ItemsCSV))).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	header := records[0]
	row := map[string]string{}
	for i, c := range header {
		row[c] = records[1][i]
	}
	assert.Equal(t, "q1.pdf", row["local_title"])
	assert.Equal(t, "1500000", row["file_size"])
	assert.Equal(t, "2023-07-22T04:26:40.000Z", row["modified_date"])
	assert.Equal(t, "true", row["starred"])
	assert.Equal(t, "true", row["is_owner"])

	mirrors, err := csv.NewReader(strings.NewReader(readAll(t, fs, MirrorsCSV))).ReadAll()
	require.NoError(t, err)
	require.Len(t, mirrors, 2)
	assert.Equal(t, MirrorFields, mirrors[0])
	assert.Equal(t, "mtime", mirrors[1][len(MirrorFields)-1])
}

func TestWriteCSV_NoMirrors(t *testing.T) {
	fs := memfs.New()
	res, err := WriteCSV(fs, Report{Items: sampleReport().Items[:1]})
	require.NoError(t, err)
	assert.Equal(t, []string{ItemsCSV}, res.Files)
	_, err = fs.Stat(MirrorsCSV)
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	fs := memfs.New()
	res, err := WriteJSON(fs, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Items)

	doc, err := oj.ParseString(readAll(t, fs, ReportJSON))
	require.NoError(t, err)

	titles := jp.MustParseString("$.items[*].local_title").Get(doc)
	assert.Equal(t, []any{"q1.pdf", "renamed"}, titles)

	dates := jp.MustParseString("$.items[0].modified_date").Get(doc)
	assert.Equal(t, []any{"2023-07-22T04:26:40.000Z"}, dates)

	diffs := jp.MustParseString("$.mirrors[*].differences").Get(doc)
	assert.Equal(t, []any{"mtime"}, diffs)
}

func TestItemRows_KeepsMilliseconds(t *testing.T) {
	it := tree.NewFile(tree.Metadata{StableID: "7", ModifiedDate: "1700000000123", ViewedByMeDate: "1700000000001"})

	rows, failures := ItemRows([]*tree.Item{it})
	require.Empty(t, failures)
	plain := rows[0].Plain()
	assert.Equal(t, "2023-11-14T22:13:20.123Z", plain["modified_date"])
	assert.Equal(t, "2023-11-14T22:13:20.001Z", plain["viewed_by_me_date"])
	assert.Equal(t, "2023-11-14T22:13:20.123Z", column(rows[0]["modified_date"]))

	fs := memfs.New()
	_, err := WriteCSV(fs, Report{Items: []*tree.Item{it}})
	require.NoError(t, err)
	assert.Contains(t, readAll(t, fs, ItemsCSV), "2023-11-14T22:13:20.123Z")
}

func TestWriteSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "report.db")

	res, err := WriteSQLite(dbPath, sampleReport())
	require.NoError(t, err)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Items)
	assert.Equal(t, 1, res.Mirrors)

	second, err := WriteSQLite(dbPath, sampleReport())
	require.NoError(t, err)
	assert.NotEqual(t, res.RunID, second.RunID)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM items WHERE run_id = ?`, res.RunID).Scan(&count))
	assert.Equal(t, 2, count)

	var title, props string
	var owner int
	require.NoError(t, db.QueryRow(
		`SELECT local_title, is_owner, properties FROM items WHERE run_id = ? AND position = 0`, res.RunID,
	).Scan(&title, &owner, &props))
	assert.Equal(t, "q1.pdf", title)
	assert.Equal(t, 1, owner)
	assert.Equal(t, `{"starred":true}`, props)

	var diff string
	require.NoError(t, db.QueryRow(`SELECT differences FROM mirrors WHERE run_id = ?`, res.RunID).Scan(&diff))
	assert.Equal(t, "mtime", diff)

	var runs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM exports`).Scan(&runs))
	assert.Equal(t, 2, runs)
}
