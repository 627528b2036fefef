package source

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/byanjiong/mailmerge/internal/logger"
	"github.com/byanjiong/mailmerge/internal/record"
)

// SheetReader reads recipient rows from Google Sheets.
type SheetReader struct {
	service *sheets.Service
	log     *logger.Logger
}

// NewSheetReader creates a SheetReader on an authorized HTTP client. Extra
// options are passed to the Sheets service.
func NewSheetReader(ctx context.Context, client *http.Client, log *logger.Logger, opts ...option.ClientOption) (*SheetReader, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to create service: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SheetReader{service: svc, log: log.WithComponent("sheets")}, nil
}

// FirstSheet returns the title of the first tab of a spreadsheet.
func (r *SheetReader) FirstSheet(ctx context.Context, spreadsheetID string) (string, error) {
	ss, err := r.service.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("sheets: failed to get spreadsheet: %w", err)
	}
	if len(ss.Sheets) == 0 || ss.Sheets[0].Properties == nil {
		return "", fmt.Errorf("sheets: spreadsheet %s has no tabs", spreadsheetID)
	}
	return ss.Sheets[0].Properties.Title, nil
}

// Read returns the rows of one tab. An empty sheet name selects the first
// tab.
func (r *SheetReader) Read(ctx context.Context, spreadsheetID, sheetName string) ([]record.Raw, error) {
	if sheetName == "" {
		name, err := r.FirstSheet(ctx, spreadsheetID)
		if err != nil {
			return nil, err
		}
		sheetName = name
		r.log.Info().Str("sheet", sheetName).Msg("auto-detected sheet")
	}

	vr, err := r.service.Spreadsheets.Values.Get(spreadsheetID, sheetName).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: failed to read values: %w", err)
	}

	rows := make([][]string, len(vr.Values))
	for i, row := range vr.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return FromRows(rows)
}
