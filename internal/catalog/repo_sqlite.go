package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLiteRepo implements Repo on an embedded SQLite database. Timestamps are
// stored as unix milliseconds.
type SQLiteRepo struct {
	DB *sql.DB
}

const sqliteProductColumns = `id, title, size, color, price, category, image, created_at, updated_at`

// ListProducts returns products newest first.
func (r *SQLiteRepo) ListProducts(ctx context.Context, category string) ([]Product, error) {
	query := `SELECT ` + sqliteProductColumns + ` FROM products ORDER BY created_at DESC`
	args := []any{}
	if category != "" {
		query = `SELECT ` + sqliteProductColumns + ` FROM products WHERE category_key = ? ORDER BY created_at DESC`
		args = append(args, foldName(category))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanSQLiteProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns a product by id.
func (r *SQLiteRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanSQLiteProduct(r.DB.QueryRowContext(ctx, `SELECT `+sqliteProductColumns+` FROM products WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// CreateProduct inserts a product.
func (r *SQLiteRepo) CreateProduct(ctx context.Context, p Product) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO products (`+sqliteProductColumns+`, category_key) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Size, p.Color, p.Price, p.Category, p.Image, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli(), foldName(p.Category),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// UpdateProduct replaces the writable fields of a product.
func (r *SQLiteRepo) UpdateProduct(ctx context.Context, p Product) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE products SET title = ?, size = ?, color = ?, price = ?, category = ?, category_key = ?, image = ?, updated_at = ? WHERE id = ?`,
		p.Title, p.Size, p.Color, p.Price, p.Category, foldName(p.Category), p.Image, p.UpdatedAt.UnixMilli(), p.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProduct removes a product and returns it.
func (r *SQLiteRepo) DeleteProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanSQLiteProduct(r.DB.QueryRowContext(ctx, `DELETE FROM products WHERE id = ? RETURNING `+sqliteProductColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ListCategories returns categories oldest first with usage counts.
func (r *SQLiteRepo) ListCategories(ctx context.Context) ([]Category, error) {
	const query = `
SELECT c.id, c.name, c.created_at, c.updated_at,
       (SELECT count(*) FROM products p WHERE p.category = c.name)
FROM categories c
ORDER BY c.created_at ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		var createdAt, updatedAt int64
		if err := rows.Scan(&c.ID, &c.Name, &createdAt, &updatedAt, &c.Usage); err != nil {
			return nil, err
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryByName finds a category case-insensitively.
func (r *SQLiteRepo) CategoryByName(ctx context.Context, name string) (Category, error) {
	var c Category
	var createdAt, updatedAt int64
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM categories WHERE name_key = ? LIMIT 1`,
		foldName(name),
	).Scan(&c.ID, &c.Name, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, err
	}
	c.CreatedAt = time.UnixMilli(createdAt).UTC()
	c.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return c, nil
}

// CreateCategory inserts a category; the unique name index reports duplicates.
func (r *SQLiteRepo) CreateCategory(ctx context.Context, c Category) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO categories (id, name, name_key, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, foldName(c.Name), c.CreatedAt.UnixMilli(), c.UpdatedAt.UnixMilli(),
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// RenameCategory renames a category and cascades the name to its products.
func (r *SQLiteRepo) RenameCategory(ctx context.Context, id, name string, at time.Time) (c Category, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Category{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var old string
	var createdAt int64
	err = tx.QueryRowContext(ctx, `SELECT name, created_at FROM categories WHERE id = ?`, id).Scan(&old, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE categories SET name = ?, name_key = ?, updated_at = ? WHERE id = ?`, name, foldName(name), at.UnixMilli(), id); err != nil {
		if isUniqueViolation(err) {
			err = ErrConflict
		}
		return Category{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE products SET category = ?, category_key = ?, updated_at = ? WHERE category = ?`, name, foldName(name), at.UnixMilli(), old)
	if err != nil {
		return Category{}, err
	}
	moved, _ := res.RowsAffected()
	if err = tx.Commit(); err != nil {
		return Category{}, err
	}
	return Category{ID: id, Name: name, Usage: int(moved), CreatedAt: time.UnixMilli(createdAt).UTC(), UpdatedAt: at}, nil
}

// DeleteCategory removes a category no product uses.
func (r *SQLiteRepo) DeleteCategory(ctx context.Context, id string) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var used int
	if err = tx.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE category = ?`, name).Scan(&used); err != nil {
		return err
	}
	if used > 0 {
		return ErrConflict
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func scanSQLiteProduct(s scanner) (Product, error) {
	var p Product
	var createdAt, updatedAt int64
	if err := s.Scan(&p.ID, &p.Title, &p.Size, &p.Color, &p.Price, &p.Category, &p.Image, &createdAt, &updatedAt); err != nil {
		return Product{}, err
	}
	p.CreatedAt = time.UnixMilli(createdAt).UTC()
	p.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return p, nil
}

var _ Repo = (*SQLiteRepo)(nil)
