package spreadsheet

import (
	"bytes"
	"fmt"

	"github.com/extrame/xls"
)

func readXLS(data []byte) (grid [][]string, err error) {
	// extrame/xls panics on some malformed BIFF records.
	defer func() {
		if rec := recover(); rec != nil {
			grid, err = nil, fmt.Errorf("malformed xls: %v", rec)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("no worksheet found")
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("no worksheet found")
	}

	last := int(sheet.MaxRow)
	if last >= MaxRows {
		return nil, tooManyRows()
	}
	for i := 0; i <= last; i++ {
		row := sheet.Row(i)
		if row == nil {
			grid = append(grid, nil)
			continue
		}
		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}
