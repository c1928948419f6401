package spreadsheet

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfDelimiters are tried in order against the header line.
var pdfDelimiters = []string{"\t", "|", ",", "  "}

var multiSpace = regexp.MustCompile(`\s{2,}`)

func readPDF(data []byte) (grid [][]string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return nil, err
	}
	return parseTextTable(buf.String())
}

// parseTextTable splits extracted PDF text into a grid using the first
// delimiter present in the header line.
func parseTextTable(text string) ([][]string, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: PDF does not contain tabular data", ErrNoData)
	}

	delim := "  "
	for _, d := range pdfDelimiters {
		if strings.Contains(lines[0], d) {
			delim = d
			break
		}
	}

	if len(lines) > MaxRows {
		return nil, tooManyRows()
	}
	grid := make([][]string, 0, len(lines))
	for _, line := range lines {
		grid = append(grid, splitLine(line, delim))
	}
	return grid, nil
}

func splitLine(line, delim string) []string {
	var parts []string
	switch delim {
	case "  ":
		parts = multiSpace.Split(strings.TrimSpace(line), -1)
	case "|":
		parts = strings.Split(strings.Trim(strings.TrimSpace(line), "|"), "|")
	default:
		parts = strings.Split(line, delim)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
