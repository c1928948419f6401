package spreadsheet

import (
	"strconv"
	"strings"
)

// Table is a normalized sheet: trimmed non-empty column names and one record
// per non-empty data row. Every record carries every column.
type Table struct {
	Columns []string
	Records []map[string]any
}

// freeName returns name, or "name (N)" for the smallest N >= 2 not in used.
func freeName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}
	for n := 2; ; n++ {
		candidate := name + " (" + strconv.Itoa(n) + ")"
		if _, ok := used[candidate]; !ok {
			return candidate
		}
	}
}

// Normalize turns a raw grid (row 0 is the header) into a Table. Empty
// headers are dropped together with their column, duplicate headers get
// the first free " (2)", " (3)" suffix, and rows whose cells are all empty
// are dropped.
func Normalize(grid [][]any) (Table, error) {
	if len(grid) == 0 {
		return Table{}, ErrNoData
	}

	var (
		columns []string
		indexes []int
		used    = map[string]struct{}{}
	)
	for i, raw := range grid[0] {
		name := strings.TrimSpace(String(raw))
		if name == "" {
			continue
		}
		name = freeName(name, used)
		used[name] = struct{}{}
		columns = append(columns, name)
		indexes = append(indexes, i)
	}
	if len(columns) == 0 {
		return Table{}, ErrNoColumns
	}

	records := make([]map[string]any, 0, len(grid)-1)
	for _, row := range grid[1:] {
		rec := make(map[string]any, len(columns))
		empty := true
		for c, col := range columns {
			var v any = ""
			if idx := indexes[c]; idx < len(row) && row[idx] != nil {
				v = row[idx]
			}
			if s, ok := v.(string); !ok || s != "" {
				empty = false
			}
			rec[col] = v
		}
		if !empty {
			records = append(records, rec)
		}
	}
	if len(records) == 0 {
		return Table{}, ErrNoData
	}
	return Table{Columns: columns, Records: records}, nil
}
