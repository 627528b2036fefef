package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/byanjiong/mailmerge/internal/record"
)

// ReadCSV reads a UTF-8 CSV file.
func ReadCSV(path string) ([]record.Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV: %w", err)
	}
	defer f.Close()

	return DecodeCSV(f)
}

// DecodeCSV reads CSV rows from r. Rows may have differing lengths.
func DecodeCSV(r io.Reader) ([]record.Raw, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	return FromRows(rows)
}
