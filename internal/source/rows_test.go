package source

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/byanjiong/mailmerge/internal/record"
)

func TestFromRows(t *testing.T) {
	t.Parallel()

	got, err := FromRows([][]string{
		{"\ufeff Email ", "Name", "", "Attachment1"},
		{"a@x.com", "Ann", "ignored", "/tmp/a.pdf", "extra"},
		{"b@x.com"},
		{"", "  "},
	})
	require.NoError(t, err)
	require.Equal(t, []record.Raw{
		{{Key: "email", Value: "a@x.com"}, {Key: "name", Value: "Ann"}, {Key: "attachment1", Value: "/tmp/a.pdf"}},
		{{Key: "email", Value: "b@x.com"}},
	}, got)

	_, err = FromRows(nil)
	require.ErrorIs(t, err, ErrNoHeader)

	got, err = FromRows([][]string{{"email"}})
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestDecodeCSV(t *testing.T) {
	t.Parallel()

	in := "email,name,subject\n" +
		"a@x.com,Ann,\"Hello, {{name}}\"\n" +
		"\n" +
		"b@x.com,\"Bo \"\"B\"\"\"\n"

	got, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := record.Normalize(got[0])
	require.Equal(t, "Hello, {{name}}", first.Value("subject"))

	second := record.Normalize(got[1])
	require.Equal(t, `Bo "B"`, second.Value("name"))
	_, ok := second.Get("subject")
	require.False(t, ok)
}

func TestReadCSV_Missing(t *testing.T) {
	t.Parallel()

	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestReadXLSX(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "recipients.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Email", "Name", "Count"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"a@x.com", "Ann", 3}))
	_, err := f.NewSheet("Other")
	require.NoError(t, err)
	require.NoError(t, f.SetSheetRow("Other", "A1", &[]any{"to"}))
	require.NoError(t, f.SetSheetRow("Other", "A2", &[]any{"b@x.com"}))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := ReadXLSX(path, "")
	require.NoError(t, err)
	require.Equal(t, []record.Raw{
		{{Key: "email", Value: "a@x.com"}, {Key: "name", Value: "Ann"}, {Key: "count", Value: "3"}},
	}, got)

	got, err = ReadXLSX(path, "Other")
	require.NoError(t, err)
	require.Equal(t, []record.Raw{{{Key: "to", Value: "b@x.com"}}}, got)

	_, err = ReadXLSX(path, "Missing")
	require.Error(t, err)
}
