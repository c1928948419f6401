package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const pgProductColumns = `id, title, size, color, price, category, image, created_at, updated_at`

// ListProducts returns products newest first.
func (r *PGRepo) ListProducts(ctx context.Context, category string) ([]Product, error) {
	query := `SELECT ` + pgProductColumns + ` FROM products ORDER BY created_at DESC`
	args := []any{}
	if category != "" {
		query = `SELECT ` + pgProductColumns + ` FROM products WHERE category_key = $1 ORDER BY created_at DESC`
		args = append(args, foldName(category))
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanPGProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProduct returns a product by id.
func (r *PGRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanPGProduct(r.DB.QueryRowContext(ctx, `SELECT `+pgProductColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// CreateProduct inserts a product.
func (r *PGRepo) CreateProduct(ctx context.Context, p Product) error {
	const query = `
INSERT INTO products (id, title, size, color, price, category, category_key, image, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.DB.ExecContext(ctx, query,
		p.ID, p.Title, p.Size, p.Color, p.Price, p.Category, foldName(p.Category), p.Image, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// UpdateProduct replaces the writable fields of a product.
func (r *PGRepo) UpdateProduct(ctx context.Context, p Product) error {
	const query = `
UPDATE products
SET title = $1, size = $2, color = $3, price = $4, category = $5, category_key = $6, image = $7, updated_at = $8
WHERE id = $9`
	res, err := r.DB.ExecContext(ctx, query,
		p.Title, p.Size, p.Color, p.Price, p.Category, foldName(p.Category), p.Image, p.UpdatedAt, p.ID,
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
func (r *PGRepo) DeleteProduct(ctx context.Context, id string) (Product, error) {
	p, err := scanPGProduct(r.DB.QueryRowContext(ctx, `DELETE FROM products WHERE id = $1 RETURNING `+pgProductColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

// ListCategories returns categories oldest first with usage counts.
func (r *PGRepo) ListCategories(ctx context.Context) ([]Category, error) {
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
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt, &c.Usage); err != nil {
			return nil, err
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryByName finds a category case-insensitively.
func (r *PGRepo) CategoryByName(ctx context.Context, name string) (Category, error) {
	var c Category
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM categories WHERE name_key = $1 LIMIT 1`,
		foldName(name),
	).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// CreateCategory inserts a category; the unique name index reports duplicates.
func (r *PGRepo) CreateCategory(ctx context.Context, c Category) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO categories (id, name, name_key, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, foldName(c.Name), c.CreatedAt, c.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// RenameCategory renames a category and cascades the name to its products
// in one transaction.
func (r *PGRepo) RenameCategory(ctx context.Context, id, name string, at time.Time) (c Category, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Category{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var createdAt time.Time
	var old string
	err = tx.QueryRowContext(ctx, `SELECT name, created_at FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&old, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	if err != nil {
		return Category{}, err
	}

	if _, err = tx.ExecContext(ctx, `UPDATE categories SET name = $1, name_key = $2, updated_at = $3 WHERE id = $4`, name, foldName(name), at, id); err != nil {
		if isUniqueViolation(err) {
			err = ErrConflict
		}
		return Category{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE products SET category = $1, category_key = $2, updated_at = $3 WHERE category = $4`, name, foldName(name), at, old)
	if err != nil {
		return Category{}, err
	}
	moved, _ := res.RowsAffected()
	if err = tx.Commit(); err != nil {
		return Category{}, err
	}
	return Category{ID: id, Name: name, Usage: int(moved), CreatedAt: createdAt.UTC(), UpdatedAt: at}, nil
}

// DeleteCategory removes a category no product uses.
func (r *PGRepo) DeleteCategory(ctx context.Context, id string) (err error) {
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
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = $1 FOR UPDATE`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	var used int
	if err = tx.QueryRowContext(ctx, `SELECT count(*) FROM products WHERE category = $1`, name).Scan(&used); err != nil {
		return err
	}
	if used > 0 {
		return ErrConflict
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPGProduct(s scanner) (Product, error) {
	var p Product
	if err := s.Scan(&p.ID, &p.Title, &p.Size, &p.Color, &p.Price, &p.Category, &p.Image, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, nil
}

// isUniqueViolation recognizes duplicate-key errors from Postgres and SQLite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ Repo = (*PGRepo)(nil)
