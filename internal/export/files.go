package export

import (
	"encoding/csv"
	"fmt"
	"io"

	billy "github.com/go-git/go-billy/v5"
	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

const (
	ItemsCSV   = "items.csv"
	MirrorsCSV = "mirrors.csv"
	ReportJSON = "report.json"
)

// WriteCSV writes items.csv and, when there are mirror records,
// mirrors.csv into fs.
func WriteCSV(fs billy.Filesystem, r Report) (*Result, error) {
	res := &Result{}

	rows, failures := ItemRows(r.Items)
	res.Failures = append(res.Failures, failures...)
	if err := writeFile(fs, ItemsCSV, func(w io.Writer) error {
		return writeTable(w, ItemColumns(rows), rows)
	}); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, ItemsCSV)
	res.Items = len(rows)

	if len(r.Mirrors) == 0 {
		return res, nil
	}
	mrows, failures := MirrorRows(r.Mirrors)
	res.Failures = append(res.Failures, failures...)
	if err := writeFile(fs, MirrorsCSV, func(w io.Writer) error {
		return writeTable(w, MirrorFields, mrows)
	}); err != nil {
		return nil, err
	}
	res.Files = append(res.Files, MirrorsCSV)
	res.Mirrors = len(mrows)
	return res, nil
}

func writeTable(w io.Writer, columns []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			record[i] = text(row[c])
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes report.json holding {"items": [...], "mirrors": [...]}.
func WriteJSON(fs billy.Filesystem, r Report) (*Result, error) {
	res := &Result{}

	rows, failures := ItemRows(r.Items)
	res.Failures = append(res.Failures, failures...)
	mrows, failures := MirrorRows(r.Mirrors)
	res.Failures = append(res.Failures, failures...)

	items := make([]any, len(rows))
	for i, row := range rows {
		items[i] = row.Plain()
	}
	mirrors := make([]any, len(mrows))
	for i, row := range mrows {
		mirrors[i] = row.Plain()
	}
	doc := map[string]any{"items": items, "mirrors": mirrors}

	if err := writeFile(fs, ReportJSON, func(w io.Writer) error {
		_, err := io.WriteString(w, oj.JSON(doc, &ojg.Options{Indent: 2, Sort: true}))
		return err
	}); err != nil {
		return nil, err
	}
	res.Files = []string{ReportJSON}
	res.Items = len(rows)
	res.Mirrors = len(mrows)
	return res, nil
}

func writeFile(fs billy.Filesystem, name string, fn func(io.Writer) error) error {
	f, err := fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return nil
}
