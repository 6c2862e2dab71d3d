// Package export writes search results, tree items and mirror records to
// CSV, JSON and SQLite reports.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/agentic-research/sleuth/internal/tree"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// TimeLayout is used for every exported instant.
const TimeLayout = "2006-01-02T15:04:05.000Z07:00"

// Row is one exported record: field name to value, as produced by
// tree.Item.Fields or the mirror equivalent.
type Row map[string]any

// Failure records an item that could not be exported. Other rows are
// unaffected.
type Failure struct {
	StableID string
	Err      error
}

func (f Failure) Error() string { return fmt.Sprintf("item %s: %v", f.StableID, f.Err) }

// Report is the data handed to a writer.
type Report struct {
	Items   []*tree.Item
	Mirrors []*tree.MirrorItem
}

// Result summarizes a completed export.
type Result struct {
	RunID    string
	Files    []string
	Items    int
	Mirrors  int
	Failures []Failure
}

// ItemRows converts items one by one. A conversion failure on one item is
// reported and skipped.
func ItemRows(items []*tree.Item) ([]Row, []Failure) {
	rows := make([]Row, 0, len(items))
	var failures []Failure
	for _, it := range items {
		fields, err := it.Fields()
		if err != nil {
			failures = append(failures, Failure{StableID: it.StableID(), Err: err})
			continue
		}
		row := Row(fields)
		if _, taken := row["kind"]; !taken {
			row["kind"] = it.Kind().String()
		}
		rows = append(rows, row)
	}
	return rows, failures
}

// MirrorFields lists mirror columns in order.
var MirrorFields = []string{
	"local_stable_id",
	"stable_id",
	"volume",
	"parent",
	"local_filename",
	"cloud_filename",
	"local_mtime",
	"cloud_mtime",
	"local_md5",
	"cloud_md5",
	"local_size",
	"cloud_size",
	"local_version",
	"cloud_version",
	"shared",
	"read_only",
	"is_root",
	"differences",
}

// MirrorRows converts mirror records, isolating mtime failures per record.
func MirrorRows(mirrors []*tree.MirrorItem) ([]Row, []Failure) {
	rows := make([]Row, 0, len(mirrors))
	var failures []Failure
	for _, m := range mirrors {
		local, err := m.LocalMtimeUTC()
		if err != nil {
			failures = append(failures, Failure{StableID: m.StableID, Err: err})
			continue
		}
		cloud, err := m.CloudMtimeUTC()
		if err != nil {
			failures = append(failures, Failure{StableID: m.StableID, Err: err})
			continue
		}
		rows = append(rows, Row{
			"local_stable_id": m.LocalStableID,
			"stable_id":       m.StableID,
			"volume":          m.Volume,
			"parent":          m.Parent,
			"local_filename":  m.LocalFilename,
			"cloud_filename":  m.CloudFilename,
			"local_mtime":     local,
			"cloud_mtime":     cloud,
			"local_md5":       m.LocalMD5,
			"cloud_md5":       m.CloudMD5,
			"local_size":      m.LocalSize,
			"cloud_size":      m.CloudSize,
			"local_version":   m.LocalVersion,
			"cloud_version":   m.CloudVersion,
			"shared":          m.Shared,
			"read_only":       m.ReadOnly,
			"is_root":         m.IsRoot,
			"differences":     strings.Join(m.Differences(), ","),
		})
	}
	return rows, failures
}

// ItemColumns returns "kind", the reserved item fields, then every other
// key present in rows, sorted.
func ItemColumns(rows []Row) []string {
	cols := append([]string{"kind"}, tree.ReservedFields...)
	known := make(map[string]bool, len(cols))
	for _, c := range cols {
		known[c] = true
	}
	var extra []string
	for _, r := range rows {
		for k := range r {
			if !known[k] {
				known[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(cols, extra...)
}

// text renders a value for tabular output.
func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case time.Time:
		return x.Format(TimeLayout)
	case map[string]any, []any:
		return oj.JSON(x, &ojg.Options{Sort: true})
	default:
		return fmt.Sprint(x)
	}
}

// Plain replaces instants with their text form so rows serialize the same
// way in every format.
func (r Row) Plain() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		if ts, ok := v.(time.Time); ok {
			out[k] = ts.Format(TimeLayout)
			continue
		}
		out[k] = v
	}
	return out
}
