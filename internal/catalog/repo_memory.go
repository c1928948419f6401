package catalog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu         sync.RWMutex
	products   map[string]Product
	categories map[string]Category
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		products:   make(map[string]Product),
		categories: make(map[string]Category),
	}
}

// ListProducts returns products newest first.
func (r *MemoryRepo) ListProducts(ctx context.Context, category string) ([]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(r.products))
	for _, p := range r.products {
		if category != "" && !sameName(p.Category, category) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetProduct returns a product by id.
func (r *MemoryRepo) GetProduct(ctx context.Context, id string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

// CreateProduct stores a new product.
func (r *MemoryRepo) CreateProduct(ctx context.Context, p Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; ok {
		return ErrConflict
	}
	r.products[p.ID] = p
	return nil
}

// UpdateProduct replaces a product, keeping its creation time.
func (r *MemoryRepo) UpdateProduct(ctx context.Context, p Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	r.products[p.ID] = p
	return nil
}

// DeleteProduct removes a product.
func (r *MemoryRepo) DeleteProduct(ctx context.Context, id string) (Product, error) {
	if err := ctx.Err(); err != nil {
		return Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	delete(r.products, id)
	return p, nil
}

// ListCategories returns categories oldest first with usage counts.
func (r *MemoryRepo) ListCategories(ctx context.Context) ([]Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Category, 0, len(r.categories))
	for _, c := range r.categories {
		c.Usage = r.usageLocked(c.Name)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// CategoryByName finds a category case-insensitively.
func (r *MemoryRepo) CategoryByName(ctx context.Context, name string) (Category, error) {
	if err := ctx.Err(); err != nil {
		return Category{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byNameLocked(name, ""); ok {
		return c, nil
	}
	return Category{}, ErrNotFound
}

// CreateCategory stores a category with a unique name.
func (r *MemoryRepo) CreateCategory(ctx context.Context, c Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byNameLocked(c.Name, ""); ok {
		return ErrConflict
	}
	r.categories[c.ID] = c
	return nil
}

// RenameCategory renames a category and cascades the name to products.
func (r *MemoryRepo) RenameCategory(ctx context.Context, id, name string, at time.Time) (Category, error) {
	if err := ctx.Err(); err != nil {
		return Category{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return Category{}, ErrNotFound
	}
	if _, taken := r.byNameLocked(name, id); taken {
		return Category{}, ErrConflict
	}
	old := c.Name
	c.Name = name
	c.UpdatedAt = at
	r.categories[id] = c
	for pid, p := range r.products {
		if p.Category == old {
			p.Category = name
			p.UpdatedAt = at
			r.products[pid] = p
		}
	}
	c.Usage = r.usageLocked(name)
	return c, nil
}

// DeleteCategory removes an unused category.
func (r *MemoryRepo) DeleteCategory(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.categories[id]
	if !ok {
		return ErrNotFound
	}
	if r.usageLocked(c.Name) > 0 {
		return ErrConflict
	}
	delete(r.categories, id)
	return nil
}

func (r *MemoryRepo) byNameLocked(name, exceptID string) (Category, bool) {
	for id, c := range r.categories {
		if id != exceptID && sameName(c.Name, name) {
			return c, true
		}
	}
	return Category{}, false
}

func (r *MemoryRepo) usageLocked(name string) int {
	n := 0
	for _, p := range r.products {
		if p.Category == name {
			n++
		}
	}
	return n
}

var _ Repo = (*MemoryRepo)(nil)
