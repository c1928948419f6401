package catalog

import (
	"context"
	"time"
)

// Repo defines persistence operations for products and categories.
type Repo interface {
	// ListProducts returns products newest first. A non-empty category limits
	// the result to products in that category.
	ListProducts(ctx context.Context, category string) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	CreateProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	// DeleteProduct removes a product and returns what was removed.
	DeleteProduct(ctx context.Context, id string) (Product, error)

	// ListCategories returns categories oldest first with usage counts.
	ListCategories(ctx context.Context) ([]Category, error)
	// CategoryByName matches name case-insensitively.
	CategoryByName(ctx context.Context, name string) (Category, error)
	// CreateCategory fails with ErrConflict when the name is taken.
	CreateCategory(ctx context.Context, c Category) error
	// RenameCategory renames a category and every product using it.
	RenameCategory(ctx context.Context, id, name string, at time.Time) (Category, error)
	// DeleteCategory fails with ErrConflict while products use the category.
	DeleteCategory(ctx context.Context, id string) error
}
