package rows

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"rowshare-backend/internal/shared/metrics"
	"rowshare-backend/internal/shared/storage/object"
	"rowshare-backend/internal/shared/telemetry"
	"rowshare-backend/internal/shared/util"
	"rowshare-backend/internal/spreadsheet"
)

const (
	// DefaultRetention is how long uploads stay visible and undeleted.
	DefaultRetention = 30 * 24 * time.Hour
	// MaxUploadBytes caps the decoded size of an uploaded file.
	MaxUploadBytes = 10 << 20

	archivePrefix = "archive"
)

// Service contains the row-share business logic.
type Service struct {
	Repo UploadsRepo
	// Archive, when set, receives a copy of every accepted source file.
	Archive   object.ObjectStore
	Retention time.Duration
	Now       func() time.Time
}

// SweepResult reports a retention sweep.
type SweepResult struct {
	Deleted int64
	Message string
}

// Upload parses a spreadsheet and stores it as a new table.
func (s *Service) Upload(ctx context.Context, filename string, data []byte) (Upload, error) {
	if s.Repo == nil {
		return Upload{}, ErrNotConfigured
	}
	start := time.Now()
	u, format, err := s.parse(ctx, filename, data)
	if err != nil {
		metrics.IncUploadFailed()
		return Upload{}, err
	}

	now := s.now()
	u.UploadDate = now
	u.CreatedAt = now
	stored, err := s.Repo.InsertUnique(ctx, u, now.Add(-s.retention()))
	if err != nil {
		metrics.IncUploadFailed()
		return Upload{}, fmt.Errorf("store upload: %w", err)
	}

	s.archive(ctx, stored.UploadID, format, data)
	metrics.IncUpload(len(stored.Rows))
	metrics.ObserveUploadDurationMs(metrics.SinceMillis(start))
	telemetry.Info("upload.stored", map[string]any{
		"upload_id":  stored.UploadID,
		"table_name": stored.TableName,
		"format":     string(format),
		"rows":       len(stored.Rows),
		"columns":    len(stored.Columns),
		"bytes":      len(data),
	})
	return stored, nil
}

func (s *Service) parse(ctx context.Context, filename string, data []byte) (Upload, spreadsheet.Format, error) {
	if len(data) == 0 {
		return Upload{}, "", invalid(errors.New("No file provided"))
	}
	if len(data) > MaxUploadBytes {
		return Upload{}, "", tooLarge(fmt.Errorf("File exceeds the %s upload limit", humanize.IBytes(MaxUploadBytes)))
	}

	grid, format, err := spreadsheet.Read(ctx, data, filename)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Upload{}, "", ctxErr
		}
		if errors.Is(err, spreadsheet.ErrTooManyRows) {
			return Upload{}, "", tooLarge(err)
		}
		return Upload{}, "", invalid(err)
	}
	table, err := spreadsheet.Normalize(grid)
	if err != nil {
		return Upload{}, "", invalid(err)
	}
	reserveIDColumn(&table)

	rows := make([]Row, 0, len(table.Records))
	for _, rec := range table.Records {
		row := make(Row, len(rec)+1)
		for k, v := range rec {
			row[k] = v
		}
		row[RowIDKey] = "row_" + uuid.NewString()
		rows = append(rows, row)
	}

	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = defaultTableName
	}
	return Upload{
		UploadID:  "upload_" + uuid.NewString(),
		TableName: DeriveTableName(filename),
		Filename:  filename,
		Columns:   table.Columns,
		Rows:      rows,
	}, format, nil
}

// reserveIDColumn renames a sheet column that collides with RowIDKey.
func reserveIDColumn(t *spreadsheet.Table) {
	idx := -1
	for i, col := range t.Columns {
		if col == RowIDKey {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	taken := make([]string, 0, len(t.Columns))
	taken = append(taken, t.Columns...)
	renamed := NextTableName(RowIDKey, taken)
	t.Columns[idx] = renamed
	for _, rec := range t.Records {
		rec[renamed] = rec[RowIDKey]
		delete(rec, RowIDKey)
	}
}

// archive copies the source file to the object store. Failures are logged.
func (s *Service) archive(ctx context.Context, uploadID string, format spreadsheet.Format, data []byte) {
	if s.Archive == nil {
		return
	}
	key := archiveKey(uploadID, format)
	head := data
	if len(head) > 3072 {
		head = head[:3072]
	}
	contentType := object.SniffContentType(head, "application/octet-stream")
	if _, err := s.Archive.Put(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		telemetry.Warn("upload.archive_failed", map[string]any{"upload_id": uploadID, "err": err})
		return
	}
	telemetry.Info("upload.archived", map[string]any{
		"upload_id": uploadID,
		"key":       key,
		"sha256":    util.Checksum(data),
	})
}

func (s *Service) removeArchives(ctx context.Context, tables []TableInfo) {
	if s.Archive == nil {
		return
	}
	for _, t := range tables {
		for _, f := range []spreadsheet.Format{spreadsheet.FormatXLSX, spreadsheet.FormatXLS, spreadsheet.FormatCSV, spreadsheet.FormatPDF} {
			if err := s.Archive.Delete(ctx, archiveKey(t.ID, f)); err != nil && !errors.Is(err, object.ErrNotFound) {
				telemetry.Warn("upload.archive_delete_failed", map[string]any{"upload_id": t.ID, "err": err})
			}
		}
	}
}

func archiveKey(uploadID string, format spreadsheet.Format) string {
	return archivePrefix + "/" + uploadID + "/source." + string(format)
}

// Data returns one table, or every table merged when tableID is empty or
// "all". Uploads older than the retention window are hidden unless showAll.
func (s *Service) Data(ctx context.Context, tableID string, showAll bool) (Dataset, error) {
	if s.Repo == nil {
		return EmptyDataset(), ErrNotConfigured
	}
	since := s.since(showAll)
	tableID = strings.TrimSpace(tableID)
	if tableID != "" && tableID != AllFilter {
		u, err := s.Repo.Get(ctx, tableID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return EmptyDataset(), nil
			}
			return EmptyDataset(), err
		}
		if since != nil && u.UploadDate.Before(*since) {
			return EmptyDataset(), nil
		}
		return Single(u), nil
	}

	uploads, err := s.Repo.List(ctx, since)
	if err != nil {
		return EmptyDataset(), err
	}
	return Merge(uploads), nil
}

// EmptyDataset is the result returned when nothing matches.
func EmptyDataset() Dataset {
	return Dataset{Rows: []Row{}, Columns: []string{}}
}

// Tables lists tables newest first, filling in missing names.
func (s *Service) Tables(ctx context.Context, showAll bool) ([]TableInfo, error) {
	if s.Repo == nil {
		return []TableInfo{}, ErrNotConfigured
	}
	tables, err := s.Repo.Tables(ctx, s.since(showAll))
	if err != nil {
		return []TableInfo{}, err
	}
	for i := range tables {
		if tables[i].Name != "" {
			continue
		}
		name := strings.TrimSpace(spreadsheetExt.ReplaceAllString(tables[i].Filename, ""))
		if name == "" {
			name = "Table " + strconv.Itoa(len(tables)-i)
		}
		tables[i].Name = name
	}
	return tables, nil
}

// Delete removes one row, or every upload when id is empty or "all".
// Deleting an unknown row succeeds.
func (s *Service) Delete(ctx context.Context, id string) (string, error) {
	if s.Repo == nil {
		return "", ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" || id == AllFilter {
		tables, err := s.Repo.Tables(ctx, nil)
		if err != nil {
			return "", err
		}
		n, err := s.Repo.DeleteAll(ctx)
		if err != nil {
			return "", err
		}
		s.removeArchives(ctx, tables)
		telemetry.Info("rows.deleted_all", map[string]any{"uploads": n})
		return "All data deleted", nil
	}

	removed, err := s.Repo.DeleteRow(ctx, id)
	if err != nil {
		return "", err
	}
	if removed {
		metrics.AddRowsDeleted(1)
	}
	telemetry.Info("rows.deleted", map[string]any{"row_id": id, "removed": removed})
	return "Row deleted", nil
}

// Sweep deletes uploads older than the retention window.
func (s *Service) Sweep(ctx context.Context) (SweepResult, error) {
	if s.Repo == nil {
		return SweepResult{}, ErrNotConfigured
	}
	cutoff := s.now().Add(-s.retention())
	all, err := s.Repo.Tables(ctx, nil)
	if err != nil {
		return SweepResult{}, err
	}
	expired := make([]TableInfo, 0)
	for _, t := range all {
		if t.UploadDate.Before(cutoff) {
			expired = append(expired, t)
		}
	}

	n, err := s.Repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return SweepResult{}, err
	}
	s.removeArchives(ctx, expired)
	metrics.IncSweep(n)

	days := s.retentionDays()
	res := SweepResult{Deleted: n}
	if n > 0 {
		res.Message = fmt.Sprintf("Deleted %d upload(s) older than %d days", n, days)
	} else {
		res.Message = fmt.Sprintf("No data older than %d days found, no deletion needed", days)
	}
	telemetry.Info("sweep.complete", map[string]any{"deleted": n, "cutoff": cutoff.Format(time.RFC3339)})
	return res, nil
}

// Search filters, searches and pages the retrieval result.
func (s *Service) Search(ctx context.Context, tableID string, showAll bool, q Query) (Dataset, Page, error) {
	ds, err := s.Data(ctx, tableID, showAll)
	return ds, Search(ds, q), err
}

// FilterValues lists the distinct values of column in the retrieval result.
func (s *Service) FilterValues(ctx context.Context, tableID string, showAll bool, column string) ([]string, error) {
	ds, err := s.Data(ctx, tableID, showAll)
	if err != nil {
		return []string{}, err
	}
	return FilterValues(ds.Rows, column), nil
}

// Share renders a row as share text plus a WhatsApp link.
func (s *Service) Share(ctx context.Context, rowID string) (text, link string, err error) {
	if s.Repo == nil {
		return "", "", ErrNotConfigured
	}
	u, row, err := s.Repo.FindRow(ctx, strings.TrimSpace(rowID))
	if err != nil {
		return "", "", err
	}
	text = ShareText(u.Columns, row)
	return text, ShareURL(text), nil
}

func (s *Service) since(showAll bool) *time.Time {
	if showAll {
		return nil
	}
	t := s.now().Add(-s.retention())
	return &t
}

func (s *Service) retention() time.Duration {
	if s.Retention > 0 {
		return s.Retention
	}
	return DefaultRetention
}

func (s *Service) retentionDays() int {
	return int(math.Round(s.retention().Hours() / 24))
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC().Truncate(time.Millisecond)
	}
	return time.Now().UTC().Truncate(time.Millisecond)
}
