package spreadsheet

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, rows [][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestReadXLSXFirstSheet(t *testing.T) {
	data := buildXLSX(t, [][]any{
		{"Name", "Price", "SKU"},
		{"Widget", 9.5, "007"},
		{"Gadget", 12, "A-1"},
	})

	grid, format, err := Read(context.Background(), data, "Prices.xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
	require.Len(t, grid, 3)
	assert.Equal(t, []any{"Name", "Price", "SKU"}, grid[0])
	assert.Equal(t, []any{"Widget", 9.5, "007"}, grid[1])
	assert.Equal(t, []any{"Gadget", int64(12), "A-1"}, grid[2])
}

func TestReadXLSXWithoutExtensionSniffsContent(t *testing.T) {
	data := buildXLSX(t, [][]any{{"A"}, {"1"}})
	format, err := Detect(data, "upload")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, format)
}

func TestReadSkipsLeadingBlankRows(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "B3", "Name"))
	require.NoError(t, f.SetCellValue(sheet, "B4", "Ada"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	_ = f.Close()

	grid, _, err := Read(context.Background(), buf.Bytes(), "people.xlsx")
	require.NoError(t, err)
	tbl, err := Normalize(grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name"}, tbl.Columns)
	assert.Equal(t, []map[string]any{{"Name": "Ada"}}, tbl.Records)
}

func TestReadCSV(t *testing.T) {
	data := []byte("\xEF\xBB\xBFName;Price\nWidget;9.50\n\nGadget;12\n")
	grid, format, err := Read(context.Background(), data, "prices.csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, format)

	tbl, err := Normalize(grid)
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Price"}, tbl.Columns)
	require.Len(t, tbl.Records, 2)
	assert.Equal(t, 9.5, tbl.Records[0]["Price"])
	assert.Equal(t, int64(12), tbl.Records[1]["Price"])
}

func TestReadCSVWindows1252(t *testing.T) {
	// "Café" in Windows-1252.
	data := []byte("Name\nCaf\xE9\n")
	grid, _, err := Read(context.Background(), data, "menu.csv")
	require.NoError(t, err)
	assert.Equal(t, "Café", grid[1][0])
}

func TestDetectRejectsUnknownContent(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("notes.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = Detect(buf.Bytes(), "archive")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat), "got %v", err)
}

func TestReadEmptyInput(t *testing.T) {
	_, _, err := Read(context.Background(), nil, "x.xlsx")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadCorruptWorkbook(t *testing.T) {
	_, _, err := Read(context.Background(), []byte("definitely not a workbook"), "x.xlsx")
	assert.Error(t, err)
}

func TestReadHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Read(ctx, []byte("a"), "x.csv")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseTextTable(t *testing.T) {
	cases := []struct {
		name string
		text string
		want [][]string
	}{
		{
			name: "tab",
			text: "Name\tPrice\nWidget\t9\n",
			want: [][]string{{"Name", "Price"}, {"Widget", "9"}},
		},
		{
			name: "pipes with borders",
			text: "| Name | Price |\n| Widget | 9 |\n",
			want: [][]string{{"Name", "Price"}, {"Widget", "9"}},
		},
		{
			name: "comma before spaces",
			text: "Name,  Price\nWidget, 9\n",
			want: [][]string{{"Name", "Price"}, {"Widget", "9"}},
		},
		{
			name: "space runs",
			text: "Name    Unit Price\n\nBig Widget     9\n",
			want: [][]string{{"Name", "Unit Price"}, {"Big Widget", "9"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseTextTable(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := parseTextTable("just a title\n\n")
	assert.ErrorIs(t, err, ErrNoData)
}

func TestReadRejectsSheetsOverRowLimit(t *testing.T) {
	atLimit := "n\n" + strings.Repeat("1\n", MaxRows-1)
	grid, _, err := Read(context.Background(), []byte(atLimit), "limit.csv")
	require.NoError(t, err)
	assert.Len(t, grid, MaxRows)

	_, _, err = Read(context.Background(), []byte(atLimit+"1\n"), "over.csv")
	assert.ErrorIs(t, err, ErrTooManyRows)

	lines := "a|b\n" + strings.Repeat("1|2\n", MaxRows)
	_, err = parseTextTable(lines)
	assert.ErrorIs(t, err, ErrTooManyRows)
}
