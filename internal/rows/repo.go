package rows

import (
	"context"
	"time"
)

// UploadsRepo defines persistence operations for uploaded tables.
type UploadsRepo interface {
	// InsertUnique stores u under the first free variant of u.TableName among
	// uploads dated at or after since, and returns the stored upload.
	InsertUnique(ctx context.Context, u Upload, since time.Time) (Upload, error)
	// List returns uploads newest first. A nil since includes every upload.
	List(ctx context.Context, since *time.Time) ([]Upload, error)
	// Tables lists upload metadata newest first without loading rows.
	Tables(ctx context.Context, since *time.Time) ([]TableInfo, error)
	Get(ctx context.Context, uploadID string) (Upload, error)
	// FindRow returns the row with rowID and the upload that owns it.
	FindRow(ctx context.Context, rowID string) (Upload, Row, error)
	// DeleteRow removes rowID from its owning upload. It reports false when no
	// upload holds the row.
	DeleteRow(ctx context.Context, rowID string) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	// DeleteOlderThan removes uploads dated strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
