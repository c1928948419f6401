package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
)

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no worksheet found")
	}

	rows, err := f.Rows(sheetName)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var grid [][]string
	for rows.Next() {
		if len(grid) >= MaxRows {
			return nil, tooManyRows()
		}
		cols, err := rows.Columns()
		if err != nil {
			return nil, err
		}
		grid = append(grid, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, err
	}
	return grid, nil
}
