package client

import "time"

// Row is one row record; "id" holds the row identifier.
type Row map[string]any

// ID returns the row identifier.
func (r Row) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Dataset mirrors the /data response.
type Dataset struct {
	Data       []Row      `json:"data"`
	Columns    []string   `json:"columns"`
	UploadDate *time.Time `json:"uploadDate"`
	TableName  *string    `json:"tableName"`
}

// Table mirrors one /tables entry.
type Table struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UploadDate  time.Time `json:"uploadDate"`
	RowCount    int       `json:"rowCount"`
	ColumnCount int       `json:"columnCount"`
}

// UploadResult mirrors the /upload response.
type UploadResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Columns   int    `json:"columns"`
	TableName string `json:"tableName"`
}

// SearchParams are the /data/search query parameters.
type SearchParams struct {
	TableID string
	ShowAll bool
	Query   string
	Column  string
	Value   string
	Page    int
}

// SearchResult mirrors the /data/search response.
type SearchResult struct {
	Dataset
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

// Share mirrors the /share/:rowId response.
type Share struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// SweepResult mirrors the /cron/auto-delete response.
type SweepResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

type tablesResponse struct {
	Tables []Table `json:"tables"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type filterValuesResponse struct {
	Values []string `json:"values"`
}

type uploadRequest struct {
	File     string `json:"file"`
	Filename string `json:"filename"`
}
