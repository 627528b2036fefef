// Package source reads recipient rows from CSV files, local spreadsheets and
// Google Sheets. The first row of every source is the header.
package source

import (
	"errors"
	"strings"

	"github.com/byanjiong/mailmerge/internal/record"
)

// ErrNoHeader is returned when a source has no header row.
var ErrNoHeader = errors.New("source has no header row")

// FromRows turns a header row plus data rows into raw records. Header cells
// are trimmed and lower-cased. Cells beyond a short row are absent, cells
// beyond the header are dropped, and blank rows are skipped.
func FromRows(rows [][]string) ([]record.Raw, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		header[i] = record.NormalizeKey(h)
	}

	out := make([]record.Raw, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		raw := make(record.Raw, 0, len(header))
		for i, key := range header {
			if i >= len(row) {
				break
			}
			if key == "" {
				continue
			}
			raw = append(raw, record.Field{Key: key, Value: row[i]})
		}
		out = append(out, raw)
	}
	return out, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
