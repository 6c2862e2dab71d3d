package ingest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	_ "modernc.org/sqlite"
)

type stagedRow struct{ section, record string }

func createTestDB(t *testing.T, rows []stagedRow) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "records.db")

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE records (section TEXT NOT NULL, record TEXT NOT NULL)")
	require.NoError(t, err)

	for _, r := range rows {
		_, err = db.Exec("INSERT INTO records (section, record) VALUES (?, ?)", r.section, r.record)
		require.NoError(t, err)
	}
	return dbPath
}

func TestLoadSQLite(t *testing.T) {
	t.Run("sections", func(t *testing.T) {
		dbPath := createTestDB(t, []stagedRow{
			{"root", `"1"`},
			{"item", `{"kind":"directory","stable_id":1,"local_title":"My Drive"}`},
			{"item", `{"kind":"file","stable_id":2,"parent":1,"local_title":"a.txt","file_size":"10"}`},
			{"item", `{"kind":"directory","stable_id":3,"local_title":"lost"}`},
			{"orphan", `3`},
			{"deleted", `"9"`},
			{"mirror", `{"local_stable_id":30,"stable_id":2,"local_version":1,"cloud_version":1}`},
		})

		doc, err := LoadSQLite(dbPath)
		require.NoError(t, err)
		assert.Equal(t, "1", doc.Root)
		require.Len(t, doc.Items, 3)
		assert.Equal(t, "a.txt", doc.Items[1].Meta.LocalTitle)
		assert.Equal(t, "1", doc.Items[1].Parent)
		assert.Equal(t, []string{"3"}, doc.Orphans)
		assert.Equal(t, []string{"9"}, doc.Deleted)
		require.Len(t, doc.Mirrors, 1)
		assert.Equal(t, "30", doc.Mirrors[0].LocalStableID)
	})

	t.Run("builds through LoadTree", func(t *testing.T) {
		dbPath := createTestDB(t, []stagedRow{
			{"root", `1`},
			{"item", `{"kind":"directory","stable_id":1,"local_title":"My Drive"}`},
			{"item", `{"kind":"file","stable_id":2,"parent":1,"local_title":"a.txt"}`},
		})

		tr, err := LoadTree(dbPath, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt"}, titles(tr.SubItems(tr.Root())))
	})

	t.Run("unknown section", func(t *testing.T) {
		dbPath := createTestDB(t, []stagedRow{{"root", `1`}, {"bogus", `{}`}})

		_, err := LoadSQLite(dbPath)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("bad record json", func(t *testing.T) {
		dbPath := createTestDB(t, []stagedRow{{"root", `1`}, {"item", `{`}})

		_, err := LoadSQLite(dbPath)
		assert.ErrorIs(t, err, ErrInvalidDocument)
	})

	t.Run("empty database", func(t *testing.T) {
		dbPath := createTestDB(t, nil)

		_, err := LoadSQLite(dbPath)
		assert.ErrorIs(t, err, ErrInvalidDocument, "a dump without a root is rejected")
	})

	t.Run("missing table", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "empty.db")
		db, err := sql.Open("sqlite", dbPath)
		require.NoError(t, err)
		_, err = db.Exec("CREATE TABLE other (x TEXT)")
		require.NoError(t, err)
		require.NoError(t, db.Close())

		_, err = LoadSQLite(dbPath)
		require.Error(t, err)
	})
}
