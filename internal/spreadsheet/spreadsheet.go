// Package spreadsheet reads the first sheet of an uploaded workbook into a
// header-plus-rows table. Supported inputs are xlsx/xlsm, legacy xls, csv and
// text-based PDF tables.
package spreadsheet

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format identifies a supported input encoding.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
	FormatPDF  Format = "pdf"
)

// MaxRows caps how many rows, header included, a sheet may have.
const MaxRows = 100000

var (
	ErrNoData            = errors.New("No data found in file")
	ErrNoColumns         = errors.New("No columns found in file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrTooManyRows       = errors.New("too many rows")
)

func tooManyRows() error {
	return fmt.Errorf("%w: files are limited to %d rows", ErrTooManyRows, MaxRows)
}

// Read decodes data and returns the raw cell grid of its first sheet, with
// leading blank rows removed. Cell values are int64, float64 or string.
func Read(ctx context.Context, data []byte, filename string) ([][]any, Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", ErrNoData
	}

	format, err := Detect(data, filename)
	if err != nil {
		return nil, "", err
	}

	var grid [][]string
	switch format {
	case FormatXLSX:
		grid, err = readXLSX(data)
	case FormatXLS:
		grid, err = readXLS(data)
	case FormatCSV:
		grid, err = readCSV(data)
	case FormatPDF:
		grid, err = readPDF(data)
	}
	if err != nil {
		return nil, format, fmt.Errorf("read %s %q: %w", format, filename, err)
	}
	return typedGrid(trimLeadingBlank(grid)), format, nil
}

// Detect picks the format from the file extension, falling back to content
// sniffing when the extension is missing or unknown.
func Detect(data []byte, filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".xls":
		return FormatXLS, nil
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".pdf":
		return FormatPDF, nil
	}

	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		switch m.String() {
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return FormatXLSX, nil
		case "application/vnd.ms-excel", "application/x-ole-storage":
			return FormatXLS, nil
		case "application/pdf":
			return FormatPDF, nil
		case "text/csv", "text/tab-separated-values", "text/plain":
			return FormatCSV, nil
		case "application/zip":
			if isWorkbookZip(data) {
				return FormatXLSX, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, mt.String())
}

// isWorkbookZip reports whether an OOXML zip carries a spreadsheet part.
func isWorkbookZip(data []byte) bool {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "xl/workbook.xml" {
			return true
		}
	}
	return false
}

func trimLeadingBlank(grid [][]string) [][]string {
	for len(grid) > 0 && isBlankRow(grid[0]) {
		grid = grid[1:]
	}
	return grid
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func typedGrid(grid [][]string) [][]any {
	out := make([][]any, len(grid))
	for i, row := range grid {
		typed := make([]any, len(row))
		for j, cell := range row {
			if i == 0 {
				typed[j] = cell
				continue
			}
			typed[j] = ParseValue(cell)
		}
		out[i] = typed
	}
	return out
}
