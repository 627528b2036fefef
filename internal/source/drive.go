package source

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const spreadsheetQuery = "mimeType='application/vnd.google-apps.spreadsheet' and trashed=false"

// ListLimit is the number of spreadsheets returned by ListSpreadsheets.
const ListLimit = 30

// Spreadsheet identifies one Google Sheets document.
type Spreadsheet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpreadsheetLister lists the user's spreadsheets through Drive.
type SpreadsheetLister struct {
	service *drive.Service
}

// NewSpreadsheetLister creates a lister on an authorized HTTP client.
func NewSpreadsheetLister(ctx context.Context, client *http.Client, opts ...option.ClientOption) (*SpreadsheetLister, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(client)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: failed to create service: %w", err)
	}
	return &SpreadsheetLister{service: svc}, nil
}

// ListSpreadsheets returns the most recently modified spreadsheets that are
// not in the trash, newest first.
func (l *SpreadsheetLister) ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error) {
	res, err := l.service.Files.List().
		Q(spreadsheetQuery).
		PageSize(ListLimit).
		OrderBy("modifiedTime desc").
		Fields("files(id, name)").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("drive: failed to list spreadsheets: %w", err)
	}

	out := make([]Spreadsheet, 0, len(res.Files))
	for _, f := range res.Files {
		out = append(out, Spreadsheet{ID: f.Id, Name: f.Name})
	}
	return out, nil
}
