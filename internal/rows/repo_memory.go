package rows

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of UploadsRepo.
type MemoryRepo struct {
	mu      sync.RWMutex
	uploads map[string]Upload
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{uploads: make(map[string]Upload)}
}

// InsertUnique stores the upload under a free table name.
func (r *MemoryRepo) InsertUnique(ctx context.Context, u Upload, since time.Time) (Upload, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	prefix := namePrefix(u.TableName)
	var taken []string
	for _, existing := range r.uploads {
		if existing.UploadDate.Before(since) {
			continue
		}
		if existing.TableName == u.TableName || strings.HasPrefix(existing.TableName, prefix) {
			taken = append(taken, existing.TableName)
		}
	}
	u.TableName = NextTableName(u.TableName, taken)
	r.uploads[u.UploadID] = cloneUpload(u)
	return u, nil
}

// List returns uploads newest first.
func (r *MemoryRepo) List(ctx context.Context, since *time.Time) ([]Upload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Upload, 0, len(r.uploads))
	for _, u := range r.uploads {
		if since != nil && u.UploadDate.Before(*since) {
			continue
		}
		out = append(out, cloneUpload(u))
	}
	sortNewestFirst(out)
	return out, nil
}

// Tables lists upload metadata newest first.
func (r *MemoryRepo) Tables(ctx context.Context, since *time.Time) ([]TableInfo, error) {
	uploads, err := r.List(ctx, since)
	if err != nil {
		return nil, err
	}
	out := make([]TableInfo, 0, len(uploads))
	for _, u := range uploads {
		out = append(out, TableInfo{
			ID:          u.UploadID,
			Name:        u.TableName,
			Filename:    u.Filename,
			UploadDate:  u.UploadDate,
			RowCount:    len(u.Rows),
			ColumnCount: len(u.Columns),
		})
	}
	return out, nil
}

// Get returns an upload by id.
func (r *MemoryRepo) Get(ctx context.Context, uploadID string) (Upload, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.uploads[uploadID]
	if !ok {
		return Upload{}, ErrNotFound
	}
	return cloneUpload(u), nil
}

// FindRow scans every upload for rowID.
func (r *MemoryRepo) FindRow(ctx context.Context, rowID string) (Upload, Row, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.uploads {
		for _, row := range u.Rows {
			if row.ID() == rowID {
				return cloneUpload(u), cloneRow(row), nil
			}
		}
	}
	return Upload{}, nil, ErrNotFound
}

// DeleteRow scans every upload and removes rowID from the first one holding it.
func (r *MemoryRepo) DeleteRow(ctx context.Context, rowID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, u := range r.uploads {
		kept := make([]Row, 0, len(u.Rows))
		for _, row := range u.Rows {
			if row.ID() != rowID {
				kept = append(kept, row)
			}
		}
		if len(kept) != len(u.Rows) {
			u.Rows = kept
			r.uploads[id] = u
			return true, nil
		}
	}
	return false, nil
}

// DeleteAll removes every upload.
func (r *MemoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.uploads))
	r.uploads = make(map[string]Upload)
	return n, nil
}

// DeleteOlderThan removes uploads dated before cutoff.
func (r *MemoryRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, u := range r.uploads {
		if u.UploadDate.Before(cutoff) {
			delete(r.uploads, id)
			n++
		}
	}
	return n, nil
}

func sortNewestFirst(uploads []Upload) {
	sort.SliceStable(uploads, func(i, j int) bool {
		return uploads[i].UploadDate.After(uploads[j].UploadDate)
	})
}

func cloneUpload(u Upload) Upload {
	u.Columns = append([]string(nil), u.Columns...)
	rows := make([]Row, len(u.Rows))
	for i, row := range u.Rows {
		rows[i] = cloneRow(row)
	}
	u.Rows = rows
	return u
}

func cloneRow(row Row) Row {
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

var _ UploadsRepo = (*MemoryRepo)(nil)
