package rows

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"
)

// PGRepo implements UploadsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const pgSelectUpload = `
SELECT upload_id, table_name, filename, columns, data, upload_date, created_at
FROM uploads`

// InsertUnique stores the upload inside a transaction holding advisory
// locks on the requested table name and, when it is itself suffixed, the
// name it derives from. Concurrent uploads that could settle on the same
// name therefore receive distinct suffixes.
func (r *PGRepo) InsertUnique(ctx context.Context, u Upload, since time.Time) (out Upload, err error) {
	cols, err := encodeColumns(u.Columns)
	if err != nil {
		return Upload{}, err
	}
	data, err := encodeRows(u.Rows)
	if err != nil {
		return Upload{}, err
	}
	ids, err := encodeRowIDs(u.Rows)
	if err != nil {
		return Upload{}, err
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Upload{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, name := range lockNames(u.TableName) {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, name); err != nil {
			return Upload{}, err
		}
	}

	prefix := namePrefix(u.TableName)
	const takenQuery = `
SELECT table_name
FROM uploads
WHERE upload_date >= $1 AND (table_name = $2 OR substr(table_name, 1, $3) = $4)`
	taken, err := queryNames(ctx, tx, takenQuery, since, u.TableName, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return Upload{}, err
	}
	u.TableName = NextTableName(u.TableName, taken)

	const insertUpload = `
INSERT INTO uploads (
    upload_id,
    table_name,
    filename,
    columns,
    data,
    row_count,
    upload_date,
    created_at
) VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7, $8)`
	if _, err = tx.ExecContext(ctx, insertUpload,
		u.UploadID,
		u.TableName,
		u.Filename,
		cols,
		data,
		len(u.Rows),
		u.UploadDate,
		u.CreatedAt,
	); err != nil {
		return Upload{}, err
	}

	const insertIndex = `
INSERT INTO row_index (row_id, upload_id)
SELECT value, $1 FROM jsonb_array_elements_text($2::jsonb)`
	if _, err = tx.ExecContext(ctx, insertIndex, u.UploadID, ids); err != nil {
		return Upload{}, err
	}

	if err = tx.Commit(); err != nil {
		return Upload{}, err
	}
	return u, nil
}

// List returns uploads newest first.
func (r *PGRepo) List(ctx context.Context, since *time.Time) ([]Upload, error) {
	query := pgSelectUpload + "\nORDER BY upload_date DESC"
	args := []any{}
	if since != nil {
		query = pgSelectUpload + "\nWHERE upload_date >= $1\nORDER BY upload_date DESC"
		args = append(args, *since)
	}
	rs, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := []Upload{}
	for rs.Next() {
		u, err := r.scanUpload(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rs.Err()
}

// Tables lists upload metadata newest first.
func (r *PGRepo) Tables(ctx context.Context, since *time.Time) ([]TableInfo, error) {
	const base = `
SELECT upload_id, table_name, filename, upload_date, row_count, jsonb_array_length(columns)
FROM uploads`
	query := base + "\nORDER BY upload_date DESC"
	args := []any{}
	if since != nil {
		query = base + "\nWHERE upload_date >= $1\nORDER BY upload_date DESC"
		args = append(args, *since)
	}
	rs, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := []TableInfo{}
	for rs.Next() {
		var t TableInfo
		if err := rs.Scan(&t.ID, &t.Name, &t.Filename, &t.UploadDate, &t.RowCount, &t.ColumnCount); err != nil {
			return nil, err
		}
		t.UploadDate = t.UploadDate.UTC()
		out = append(out, t)
	}
	return out, rs.Err()
}

// Get returns an upload by id.
func (r *PGRepo) Get(ctx context.Context, uploadID string) (Upload, error) {
	u, err := r.scanUpload(r.DB.QueryRowContext(ctx, pgSelectUpload+"\nWHERE upload_id = $1", uploadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Upload{}, ErrNotFound
		}
		return Upload{}, err
	}
	return u, nil
}

// FindRow resolves the owning upload through the row index.
func (r *PGRepo) FindRow(ctx context.Context, rowID string) (Upload, Row, error) {
	var uploadID string
	err := r.DB.QueryRowContext(ctx, `SELECT upload_id FROM row_index WHERE row_id = $1`, rowID).Scan(&uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Upload{}, nil, ErrNotFound
		}
		return Upload{}, nil, err
	}
	u, err := r.Get(ctx, uploadID)
	if err != nil {
		return Upload{}, nil, err
	}
	row, ok := findRow(u.Rows, rowID)
	if !ok {
		return Upload{}, nil, ErrNotFound
	}
	return u, row, nil
}

// DeleteRow locks the owning upload, rewrites its row array without rowID and
// drops the index entry.
func (r *PGRepo) DeleteRow(ctx context.Context, rowID string) (removed bool, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var uploadID string
	err = tx.QueryRowContext(ctx, `SELECT upload_id FROM row_index WHERE row_id = $1`, rowID).Scan(&uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var data []byte
	if err = tx.QueryRowContext(ctx, `SELECT data FROM uploads WHERE upload_id = $1 FOR UPDATE`, uploadID).Scan(&data); err != nil {
		return false, err
	}
	updated, remaining, removed, err := removeRow(data, rowID)
	if err != nil {
		return false, err
	}
	if removed {
		if _, err = tx.ExecContext(ctx,
			`UPDATE uploads SET data = $1::jsonb, row_count = $2 WHERE upload_id = $3`,
			string(updated), remaining, uploadID,
		); err != nil {
			return false, err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM row_index WHERE row_id = $1`, rowID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}

// DeleteAll removes every upload; the row index cascades.
func (r *PGRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM uploads`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes uploads dated before cutoff.
func (r *PGRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM uploads WHERE upload_date < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PGRepo) scanUpload(s scanner) (Upload, error) {
	var u Upload
	var cols, data []byte
	if err := s.Scan(&u.UploadID, &u.TableName, &u.Filename, &cols, &data, &u.UploadDate, &u.CreatedAt); err != nil {
		return Upload{}, err
	}
	var err error
	if u.Columns, err = decodeColumns(cols); err != nil {
		return Upload{}, err
	}
	if u.Rows, err = decodeRows(data); err != nil {
		return Upload{}, err
	}
	u.UploadDate = u.UploadDate.UTC()
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryNames(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rs, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var names []string
	for rs.Next() {
		var name string
		if err := rs.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rs.Err()
}

var _ UploadsRepo = (*PGRepo)(nil)
