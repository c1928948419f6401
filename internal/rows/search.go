package rows

import (
	"net/url"
	"sort"
	"strings"

	"rowshare-backend/internal/spreadsheet"
)

const (
	// PageSize is the number of rows per search page.
	PageSize = 10
	// AllFilter disables the column filter when used as column or value.
	AllFilter = "all"

	shareBaseURL = "https://wa.me/?text="
	missingValue = "N/A"
)

// Query narrows a dataset: an exact column filter, then a case-insensitive
// substring search over the declared columns, then a page.
type Query struct {
	Column string
	Value  string
	Text   string
	Page   int
}

// Page is one page of a filtered dataset.
type Page struct {
	Rows       []Row
	Total      int
	Page       int
	TotalPages int
}

// Search applies q to the rows of ds. Pages below 1 or past the last page
// resolve to page 1.
func Search(ds Dataset, q Query) Page {
	matched := make([]Row, 0, len(ds.Rows))
	filter := q.Column != "" && q.Column != AllFilter && q.Value != "" && q.Value != AllFilter
	needle := strings.ToLower(q.Text)
	for _, row := range ds.Rows {
		if filter && cellText(row, q.Column) != q.Value {
			continue
		}
		if needle != "" && !containsText(row, ds.Columns, needle) {
			continue
		}
		matched = append(matched, row)
	}

	total := len(matched)
	totalPages := (total + PageSize - 1) / PageSize
	page := q.Page
	if page < 1 || page > totalPages {
		page = 1
	}
	start := (page - 1) * PageSize
	end := start + PageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}
	return Page{
		Rows:       matched[start:end],
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}
}

// FilterValues returns the sorted distinct non-empty trimmed values of column.
func FilterValues(rows []Row, column string) []string {
	if column == "" || column == AllFilter {
		return []string{}
	}
	seen := make(map[string]struct{})
	out := []string{}
	for _, row := range rows {
		v := cellText(row, column)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// ShareText renders a row as "*column:* value" lines over columns.
func ShareText(columns []string, row Row) string {
	lines := make([]string, 0, len(columns))
	for _, col := range columns {
		v := spreadsheet.String(row[col])
		if v == "" {
			v = missingValue
		}
		lines = append(lines, "*"+col+":* "+v)
	}
	return strings.Join(lines, "\n")
}

// ShareURL returns a WhatsApp share link carrying text.
func ShareURL(text string) string {
	return shareBaseURL + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func cellText(row Row, column string) string {
	return strings.TrimSpace(spreadsheet.String(row[column]))
}

func containsText(row Row, columns []string, needle string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(spreadsheet.String(row[col])), needle) {
			return true
		}
	}
	return false
}
