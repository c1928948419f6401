package rows

import "time"

// isoMillis matches the ISO-8601 form browsers produce for dates.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type uploadRequest struct {
	File     string `json:"file"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
}

type uploadResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Columns   int    `json:"columns"`
	TableName string `json:"tableName"`
}

type dataResponse struct {
	Data       []Row    `json:"data"`
	Columns    []string `json:"columns"`
	UploadDate *string  `json:"uploadDate"`
	TableName  *string  `json:"tableName"`
	Error      string   `json:"error,omitempty"`
}

type searchResponse struct {
	dataResponse
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
}

type tableResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	UploadDate  string `json:"uploadDate"`
	RowCount    int    `json:"rowCount"`
	ColumnCount int    `json:"columnCount"`
}

type tablesResponse struct {
	Tables []tableResponse `json:"tables"`
	Error  string          `json:"error,omitempty"`
}

type deleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sweepResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedCount int64  `json:"deletedCount"`
}

type filterValuesResponse struct {
	Values []string `json:"values"`
	Error  string   `json:"error,omitempty"`
}

type shareResponse struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func toDataResponse(ds Dataset) dataResponse {
	resp := dataResponse{Data: ds.Rows, Columns: ds.Columns}
	if resp.Data == nil {
		resp.Data = []Row{}
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	if ds.UploadDate != nil {
		date := formatTime(*ds.UploadDate)
		resp.UploadDate = &date
	}
	if ds.TableName != "" {
		name := ds.TableName
		resp.TableName = &name
	}
	return resp
}

func toTablesResponse(tables []TableInfo) tablesResponse {
	out := tablesResponse{Tables: make([]tableResponse, 0, len(tables))}
	for _, t := range tables {
		out.Tables = append(out.Tables, tableResponse{
			ID:          t.ID,
			Name:        t.Name,
			UploadDate:  formatTime(t.UploadDate),
			RowCount:    t.RowCount,
			ColumnCount: t.ColumnCount,
		})
	}
	return out
}
