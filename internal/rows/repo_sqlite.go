package rows

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"
)

// SQLiteRepo implements UploadsRepo on an embedded SQLite database.
// Timestamps are stored as unix milliseconds. The pool holds a single
// connection, so transactions are serialized.
type SQLiteRepo struct {
	DB *sql.DB
}

const sqliteSelectUpload = `
SELECT upload_id, table_name, filename, columns, data, upload_date, created_at
FROM uploads`

// InsertUnique stores the upload under a free table name.
func (r *SQLiteRepo) InsertUnique(ctx context.Context, u Upload, since time.Time) (out Upload, err error) {
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

	prefix := namePrefix(u.TableName)
	const takenQuery = `
SELECT table_name
FROM uploads
WHERE upload_date >= ? AND (table_name = ? OR substr(table_name, 1, ?) = ?)`
	taken, err := queryNames(ctx, tx, takenQuery, since.UnixMilli(), u.TableName, utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return Upload{}, err
	}
	u.TableName = NextTableName(u.TableName, taken)

	const insertUpload = `
INSERT INTO uploads (upload_id, table_name, filename, columns, data, row_count, upload_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err = tx.ExecContext(ctx, insertUpload,
		u.UploadID,
		u.TableName,
		u.Filename,
		cols,
		data,
		len(u.Rows),
		u.UploadDate.UnixMilli(),
		u.CreatedAt.UnixMilli(),
	); err != nil {
		return Upload{}, err
	}

	const insertIndex = `
INSERT INTO row_index (row_id, upload_id)
SELECT value, ? FROM json_each(?)`
	if _, err = tx.ExecContext(ctx, insertIndex, u.UploadID, ids); err != nil {
		return Upload{}, err
	}

	if err = tx.Commit(); err != nil {
		return Upload{}, err
	}
	return u, nil
}

// List returns uploads newest first.
func (r *SQLiteRepo) List(ctx context.Context, since *time.Time) ([]Upload, error) {
	query := sqliteSelectUpload + "\nORDER BY upload_date DESC"
	args := []any{}
	if since != nil {
		query = sqliteSelectUpload + "\nWHERE upload_date >= ?\nORDER BY upload_date DESC"
		args = append(args, since.UnixMilli())
	}
	rs, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := []Upload{}
	for rs.Next() {
		u, err := scanSQLiteUpload(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rs.Err()
}

// Tables lists upload metadata newest first.
func (r *SQLiteRepo) Tables(ctx context.Context, since *time.Time) ([]TableInfo, error) {
	const base = `
SELECT upload_id, table_name, filename, upload_date, row_count, json_array_length(columns)
FROM uploads`
	query := base + "\nORDER BY upload_date DESC"
	args := []any{}
	if since != nil {
		query = base + "\nWHERE upload_date >= ?\nORDER BY upload_date DESC"
		args = append(args, since.UnixMilli())
	}
	rs, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()

	out := []TableInfo{}
	for rs.Next() {
		var t TableInfo
		var uploadDate int64
		if err := rs.Scan(&t.ID, &t.Name, &t.Filename, &uploadDate, &t.RowCount, &t.ColumnCount); err != nil {
			return nil, err
		}
		t.UploadDate = time.UnixMilli(uploadDate).UTC()
		out = append(out, t)
	}
	return out, rs.Err()
}

// Get returns an upload by id.
func (r *SQLiteRepo) Get(ctx context.Context, uploadID string) (Upload, error) {
	u, err := scanSQLiteUpload(r.DB.QueryRowContext(ctx, sqliteSelectUpload+"\nWHERE upload_id = ?", uploadID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Upload{}, ErrNotFound
		}
		return Upload{}, err
	}
	return u, nil
}

// FindRow resolves the owning upload through the row index.
func (r *SQLiteRepo) FindRow(ctx context.Context, rowID string) (Upload, Row, error) {
	var uploadID string
	err := r.DB.QueryRowContext(ctx, `SELECT upload_id FROM row_index WHERE row_id = ?`, rowID).Scan(&uploadID)
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

// DeleteRow rewrites the owning upload's row array without rowID.
func (r *SQLiteRepo) DeleteRow(ctx context.Context, rowID string) (removed bool, err error) {
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
	err = tx.QueryRowContext(ctx, `SELECT upload_id FROM row_index WHERE row_id = ?`, rowID).Scan(&uploadID)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var data string
	if err = tx.QueryRowContext(ctx, `SELECT data FROM uploads WHERE upload_id = ?`, uploadID).Scan(&data); err != nil {
		return false, err
	}
	updated, remaining, removed, err := removeRow([]byte(data), rowID)
	if err != nil {
		return false, err
	}
	if removed {
		if _, err = tx.ExecContext(ctx,
			`UPDATE uploads SET data = ?, row_count = ? WHERE upload_id = ?`,
			string(updated), remaining, uploadID,
		); err != nil {
			return false, err
		}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM row_index WHERE row_id = ?`, rowID); err != nil {
		return false, err
	}
	if err = tx.Commit(); err != nil {
		return false, err
	}
	return removed, nil
}

// DeleteAll removes every upload; the row index cascades.
func (r *SQLiteRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM uploads`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteOlderThan removes uploads dated before cutoff.
func (r *SQLiteRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM uploads WHERE upload_date < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSQLiteUpload(s scanner) (Upload, error) {
	var u Upload
	var cols, data string
	var uploadDate, createdAt int64
	if err := s.Scan(&u.UploadID, &u.TableName, &u.Filename, &cols, &data, &uploadDate, &createdAt); err != nil {
		return Upload{}, err
	}
	var err error
	if u.Columns, err = decodeColumns([]byte(cols)); err != nil {
		return Upload{}, err
	}
	if u.Rows, err = decodeRows([]byte(data)); err != nil {
		return Upload{}, err
	}
	u.UploadDate = time.UnixMilli(uploadDate).UTC()
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	return u, nil
}

var _ UploadsRepo = (*SQLiteRepo)(nil)
