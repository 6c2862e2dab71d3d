package export

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/google/uuid"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS exports (
	run_id     TEXT PRIMARY KEY,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	run_id            TEXT NOT NULL REFERENCES exports(run_id),
	position          INTEGER NOT NULL,
	kind              TEXT,
	stable_id         TEXT,
	url_id            TEXT,
	local_title       TEXT,
	mime_type         TEXT,
	is_owner          INTEGER,
	file_size         TEXT,
	modified_date     TEXT,
	viewed_by_me_date TEXT,
	trashed           INTEGER,
	tree_path         TEXT,
	properties        JSON,
	PRIMARY KEY (run_id, position)
);
CREATE INDEX IF NOT EXISTS idx_items_stable_id ON items(stable_id);

CREATE TABLE IF NOT EXISTS mirrors (
	run_id          TEXT NOT NULL REFERENCES exports(run_id),
	position        INTEGER NOT NULL,
	local_stable_id TEXT,
	stable_id       TEXT,
	volume          TEXT,
	parent          TEXT,
	local_filename  TEXT,
	cloud_filename  TEXT,
	local_mtime     TEXT,
	cloud_mtime     TEXT,
	local_md5       TEXT,
	cloud_md5       TEXT,
	local_size      INTEGER,
	cloud_size      INTEGER,
	local_version   INTEGER,
	cloud_version   INTEGER,
	shared          INTEGER,
	read_only       INTEGER,
	is_root         INTEGER,
	differences     TEXT,
	PRIMARY KEY (run_id, position)
);
`

// WriteSQLite appends one export run to the database at dbPath, creating
// the schema on first use. Each call gets a fresh run id.
func WriteSQLite(dbPath string, r Report) (*Result, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(sqliteSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}

	res := &Result{RunID: uuid.NewString(), Files: []string{dbPath}}
	rows, failures := ItemRows(r.Items)
	res.Failures = append(res.Failures, failures...)
	mrows, failures := MirrorRows(r.Mirrors)
	res.Failures = append(res.Failures, failures...)

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin export: %w", err)
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if _, err := tx.Exec(`INSERT INTO exports (run_id, created_at) VALUES (?, ?)`,
		res.RunID, time.Now().UTC().Format(TimeLayout)); err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}

	itemStmt, err := tx.Prepare(`
		INSERT INTO items (run_id, position, kind, stable_id, url_id, local_title, mime_type,
			is_owner, file_size, modified_date, viewed_by_me_date, trashed, tree_path, properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare items insert: %w", err)
	}
	defer func() { _ = itemStmt.Close() }()

	for i, row := range rows {
		args := []any{res.RunID, i, column(row["kind"])}
		for _, f := range tree.ReservedFields {
			args = append(args, column(row[f]))
		}
		args = append(args, extraJSON(row))
		if _, err := itemStmt.Exec(args...); err != nil {
			return nil, fmt.Errorf("insert item %d: %w", i, err)
		}
	}

	mirrorStmt, err := tx.Prepare(`
		INSERT INTO mirrors (run_id, position, local_stable_id, stable_id, volume, parent,
			local_filename, cloud_filename, local_mtime, cloud_mtime, local_md5, cloud_md5,
			local_size, cloud_size, local_version, cloud_version, shared, read_only, is_root, differences)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare mirrors insert: %w", err)
	}
	defer func() { _ = mirrorStmt.Close() }()

	for i, row := range mrows {
		args := []any{res.RunID, i}
		for _, f := range MirrorFields {
			args = append(args, column(row[f]))
		}
		if _, err := mirrorStmt.Exec(args...); err != nil {
			return nil, fmt.Errorf("insert mirror %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit export: %w", err)
	}
	res.Items = len(rows)
	res.Mirrors = len(mrows)
	return res, nil
}

// column converts a row value into something database/sql can bind.
func column(v any) any {
	switch x := v.(type) {
	case nil, string, int64, float64, []byte:
		return x
	case int:
		return int64(x)
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return x.Format(TimeLayout)
	default:
		return text(x)
	}
}

// extraJSON collects the non-reserved keys of an item row.
func extraJSON(row Row) string {
	extra := make(map[string]any)
	for k, v := range row.Plain() {
		if k == "kind" || isReserved(k) {
			continue
		}
		extra[k] = v
	}
	return oj.JSON(extra, &ojg.Options{Sort: true})
}

func isReserved(k string) bool {
	for _, f := range tree.ReservedFields {
		if f == k {
			return true
		}
	}
	return false
}
