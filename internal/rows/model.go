package rows

import "time"

// RowIDKey is the reserved key carrying a row's identifier.
const RowIDKey = "id"

// Row is one record of an uploaded table keyed by column name, plus RowIDKey.
type Row map[string]any

// ID returns the row identifier, or "" when absent.
func (r Row) ID() string {
	id, _ := r[RowIDKey].(string)
	return id
}

// Upload is one ingested spreadsheet. Columns is the contract for its rows:
// every row carries a value (possibly "") for each column.
type Upload struct {
	UploadID   string
	TableName  string
	Filename   string
	Columns    []string
	Rows       []Row
	UploadDate time.Time
	CreatedAt  time.Time
}

// TableInfo is the listing view of an upload.
type TableInfo struct {
	ID          string
	Name        string
	Filename    string
	UploadDate  time.Time
	RowCount    int
	ColumnCount int
}

// Dataset is the result of a retrieval: one table, or several merged.
type Dataset struct {
	Rows       []Row
	Columns    []string
	UploadDate *time.Time
	TableName  string
}

// Empty reports whether the dataset carries no table at all.
func (d Dataset) Empty() bool {
	return d.UploadDate == nil && d.TableName == "" && len(d.Rows) == 0
}
