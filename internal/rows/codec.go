package rows

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func encodeColumns(cols []string) (string, error) {
	if cols == nil {
		cols = []string{}
	}
	b, err := json.Marshal(cols)
	if err != nil {
		return "", fmt.Errorf("encode columns: %w", err)
	}
	return string(b), nil
}

func encodeRows(rows []Row) (string, error) {
	if rows == nil {
		rows = []Row{}
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return "", fmt.Errorf("encode rows: %w", err)
	}
	return string(b), nil
}

func encodeRowIDs(rows []Row) (string, error) {
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID())
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode row ids: %w", err)
	}
	return string(b), nil
}

func decodeColumns(raw []byte) ([]string, error) {
	cols := []string{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return cols, nil
	}
	if err := json.Unmarshal(raw, &cols); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}
	return cols, nil
}

// decodeRows keeps numbers as json.Number so integers survive unchanged.
func decodeRows(raw []byte) ([]Row, error) {
	rows := []Row{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return rows, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	return rows, nil
}

// removeRow drops the element whose id is rowID from a JSON row array,
// leaving the other elements untouched.
func removeRow(raw []byte, rowID string) (out []byte, remaining int, removed bool, err error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0, false, fmt.Errorf("decode rows: %w", err)
	}
	kept := make([]json.RawMessage, 0, len(elems))
	for _, elem := range elems {
		var head struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(elem, &head); err == nil && head.ID == rowID && !removed {
			removed = true
			continue
		}
		kept = append(kept, elem)
	}
	if !removed {
		return raw, len(elems), false, nil
	}
	out, err = json.Marshal(kept)
	if err != nil {
		return nil, 0, false, fmt.Errorf("encode rows: %w", err)
	}
	return out, len(kept), true, nil
}

func findRow(rows []Row, rowID string) (Row, bool) {
	for _, row := range rows {
		if row.ID() == rowID {
			return row, true
		}
	}
	return nil, false
}
