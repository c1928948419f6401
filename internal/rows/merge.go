package rows

import "time"

// MergedTableName labels a dataset built from several uploads.
const MergedTableName = "All Tables"

// Merge concatenates uploads, which must be ordered newest first. Column
// order comes from the newest upload; when it declares no columns the
// first-seen union is used. The date is the latest upload date.
func Merge(uploads []Upload) Dataset {
	if len(uploads) == 0 {
		return Dataset{Rows: []Row{}, Columns: []string{}}
	}

	total := 0
	for _, u := range uploads {
		total += len(u.Rows)
	}
	out := Dataset{
		Rows:      make([]Row, 0, total),
		TableName: MergedTableName,
	}

	var latest time.Time
	seen := make(map[string]struct{})
	var union []string
	for _, u := range uploads {
		out.Rows = append(out.Rows, u.Rows...)
		for _, col := range u.Columns {
			if _, ok := seen[col]; ok {
				continue
			}
			seen[col] = struct{}{}
			union = append(union, col)
		}
		if u.UploadDate.After(latest) {
			latest = u.UploadDate
		}
	}

	if len(uploads[0].Columns) > 0 {
		out.Columns = append([]string(nil), uploads[0].Columns...)
	} else {
		out.Columns = union
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	out.UploadDate = &latest
	return out
}

// Single wraps one upload as a dataset.
func Single(u Upload) Dataset {
	date := u.UploadDate
	if date.IsZero() {
		date = u.CreatedAt
	}
	rows := u.Rows
	if rows == nil {
		rows = []Row{}
	}
	cols := u.Columns
	if cols == nil {
		cols = []string{}
	}
	return Dataset{Rows: rows, Columns: cols, UploadDate: &date, TableName: u.TableName}
}
