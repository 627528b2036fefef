package source

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/byanjiong/mailmerge/internal/record"
)

// ReadXLSX reads one worksheet of a local spreadsheet. An empty sheet name
// selects the first worksheet.
func ReadXLSX(path, sheet string) ([]record.Raw, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("spreadsheet %s has no worksheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet %q: %w", sheet, err)
	}
	return FromRows(rows)
}
