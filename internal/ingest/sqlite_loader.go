package ingest

import (
	"database/sql"
	"fmt"

	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

// Section names accepted in the records table, mapped to document keys.
var sections = map[string]string{
	"root":           "root",
	"item":           "items",
	"orphan":         "orphans",
	"shared_with_me": "shared_with_me",
	"deleted":        "deleted",
	"mirror":         "mirrors",
}

// LoadSQLite reads a staging database with one table:
//
//	CREATE TABLE records (section TEXT NOT NULL, record TEXT NOT NULL)
//
// Each record is a JSON value: an object for item and mirror rows, a stable
// id for the others. Rows are read in rowid order, which fixes child order.
func LoadSQLite(dbPath string) (*Document, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT section, record FROM records ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	dump := map[string]any{}
	for n := 0; rows.Next(); n++ {
		var section, raw string
		if err := rows.Scan(&section, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		key, ok := sections[section]
		if !ok {
			return nil, fmt.Errorf("%w: row %d: unknown section %q", ErrInvalidDocument, n, section)
		}
		v, err := oj.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrInvalidDocument, n, err)
		}
		if key == "root" {
			dump[key] = v
			continue
		}
		list, _ := dump[key].([]any)
		dump[key] = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return decode(dump)
}
