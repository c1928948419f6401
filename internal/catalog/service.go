package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"rowshare-backend/internal/shared/metrics"
	"rowshare-backend/internal/shared/storage/object"
	"rowshare-backend/internal/shared/telemetry"
)

const imageNamespace = "products"

// Service contains catalog business logic.
type Service struct {
	Repo   Repo
	Images object.ObjectStore
	Now    func() time.Time
}

// ListProducts returns products newest first, optionally in one category.
func (s *Service) ListProducts(ctx context.Context, category string) ([]Product, error) {
	return s.Repo.ListProducts(ctx, strings.TrimSpace(category))
}

// GetProduct returns a product by id.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.Repo.GetProduct(ctx, strings.TrimSpace(id))
}

// CreateProduct validates and stores a new product.
func (s *Service) CreateProduct(ctx context.Context, in ProductInput) (Product, error) {
	in, err := s.validate(ctx, in)
	if err != nil {
		return Product{}, err
	}
	now := s.now()
	p := Product{
		ID:        uuid.NewString(),
		Title:     in.Title,
		Size:      in.Size,
		Color:     in.Color,
		Price:     in.Price,
		Category:  in.Category,
		Image:     in.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	telemetry.Info("catalog.product_created", map[string]any{"product_id": p.ID, "category": p.Category})
	return p, nil
}

// UpdateProduct replaces a product's fields. A replaced stored image is
// removed from the object store.
func (s *Service) UpdateProduct(ctx context.Context, id string, in ProductInput) (Product, error) {
	existing, err := s.Repo.GetProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return Product{}, err
	}
	in, err = s.validate(ctx, in)
	if err != nil {
		return Product{}, err
	}
	p := existing
	p.Title = in.Title
	p.Size = in.Size
	p.Color = in.Color
	p.Price = in.Price
	p.Category = in.Category
	p.Image = in.Image
	p.UpdatedAt = s.now()
	if err := s.Repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	if existing.Image != p.Image {
		s.removeImage(ctx, existing.Image)
	}
	return p, nil
}

// DeleteProduct removes a product and its stored image. Image removal
// failures are logged only.
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	p, err := s.Repo.DeleteProduct(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	s.removeImage(ctx, p.Image)
	telemetry.Info("catalog.product_deleted", map[string]any{"product_id": p.ID})
	return nil
}

// ListCategories returns categories oldest first with usage counts.
func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.Repo.ListCategories(ctx)
}

// CreateCategory adds a category with a unique (case-insensitive) name.
func (s *Service) CreateCategory(ctx context.Context, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if _, err := s.Repo.CategoryByName(ctx, name); err == nil {
		return Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, name)
	} else if !errors.Is(err, ErrNotFound) {
		return Category{}, err
	}
	now := s.now()
	c := Category{ID: uuid.NewString(), Name: name, CreatedAt: now, UpdatedAt: now}
	if err := s.Repo.CreateCategory(ctx, c); err != nil {
		if errors.Is(err, ErrConflict) {
			return Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, name)
		}
		return Category{}, err
	}
	return c, nil
}

// RenameCategory renames a category and moves its products to the new name.
func (s *Service) RenameCategory(ctx context.Context, id, name string) (Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Category{}, fmt.Errorf("%w: category name is required", ErrInvalidInput)
	}
	if other, err := s.Repo.CategoryByName(ctx, name); err == nil && other.ID != id {
		return Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, name)
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return Category{}, err
	}
	c, err := s.Repo.RenameCategory(ctx, id, name, s.now())
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return Category{}, fmt.Errorf("%w: category %q already exists", ErrConflict, name)
		}
		return Category{}, err
	}
	telemetry.Info("catalog.category_renamed", map[string]any{"category_id": id, "name": name, "products": c.Usage})
	return c, nil
}

// DeleteCategory removes a category that no product uses.
func (s *Service) DeleteCategory(ctx context.Context, id string) error {
	if err := s.Repo.DeleteCategory(ctx, strings.TrimSpace(id)); err != nil {
		if errors.Is(err, ErrConflict) {
			return fmt.Errorf("%w: category is used by one or more products", ErrConflict)
		}
		return err
	}
	return nil
}

// UploadImage normalizes an image and stores it under the products namespace.
func (s *Service) UploadImage(ctx context.Context, filename string, data []byte) (StoredImage, error) {
	if s.Images == nil {
		return StoredImage{}, errors.New("image storage not configured")
	}
	normalized, err := NormalizeImage(data)
	if err != nil {
		return StoredImage{}, err
	}
	key, err := object.NewKey(imageNamespace, jpegName(filename))
	if err != nil {
		return StoredImage{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	obj, err := s.Images.Put(ctx, key, "image/jpeg", bytes.NewReader(normalized))
	if err != nil {
		return StoredImage{}, fmt.Errorf("store image: %w", err)
	}
	link, err := s.Images.URL(ctx, obj.Key)
	if err != nil {
		return StoredImage{}, fmt.Errorf("image url: %w", err)
	}
	metrics.IncCatalogImage()
	telemetry.Info("catalog.image_stored", map[string]any{
		"key":        obj.Key,
		"bytes_in":   len(data),
		"bytes_out":  obj.Size,
		"compressed": len(data) > 0 && int(obj.Size) < len(data),
	})
	return StoredImage{Key: obj.Key, URL: link}, nil
}

// OpenImage streams a stored image.
func (s *Service) OpenImage(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.Images == nil {
		return nil, ErrNotFound
	}
	clean, err := object.CleanKey(key)
	if err != nil || !strings.HasPrefix(clean, imageNamespace+"/") {
		return nil, ErrNotFound
	}
	rc, err := s.Images.Open(ctx, clean)
	if errors.Is(err, object.ErrNotFound) {
		return nil, ErrNotFound
	}
	return rc, err
}

// ImageURL resolves a product image to a URL; external URLs pass through.
func (s *Service) ImageURL(ctx context.Context, image string) string {
	if !isStoredImage(image) || s.Images == nil {
		return image
	}
	link, err := s.Images.URL(ctx, image)
	if err != nil {
		telemetry.Warn("catalog.image_url_failed", map[string]any{"key": image, "err": err})
		return ""
	}
	return link
}

func (s *Service) removeImage(ctx context.Context, image string) {
	if !isStoredImage(image) || s.Images == nil {
		return
	}
	if err := s.Images.Delete(ctx, image); err != nil && !errors.Is(err, object.ErrNotFound) {
		telemetry.Warn("catalog.image_delete_failed", map[string]any{"key": image, "err": err})
	}
}

func (s *Service) validate(ctx context.Context, in ProductInput) (ProductInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Size = strings.TrimSpace(in.Size)
	in.Color = strings.TrimSpace(in.Color)
	in.Category = strings.TrimSpace(in.Category)
	in.Image = strings.TrimSpace(in.Image)

	if in.Title == "" {
		return in, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if math.IsNaN(in.Price) || math.IsInf(in.Price, 0) || in.Price < 0 {
		return in, fmt.Errorf("%w: price must be a non-negative number", ErrInvalidInput)
	}
	if in.Category == "" {
		return in, fmt.Errorf("%w: category is required", ErrInvalidInput)
	}
	c, err := s.Repo.CategoryByName(ctx, in.Category)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return in, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, in.Category)
		}
		return in, err
	}
	in.Category = c.Name

	if in.Image != "" {
		if isStoredImage(in.Image) {
			clean, err := object.CleanKey(in.Image)
			if err != nil || !strings.HasPrefix(clean, imageNamespace+"/") {
				return in, fmt.Errorf("%w: invalid image key", ErrInvalidInput)
			}
			in.Image = clean
		} else if u, err := url.Parse(in.Image); err != nil || u.Host == "" {
			return in, fmt.Errorf("%w: invalid image url", ErrInvalidInput)
		}
	}
	return in, nil
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC().Truncate(time.Millisecond)
	}
	return time.Now().UTC().Truncate(time.Millisecond)
}

func isStoredImage(image string) bool {
	lower := strings.ToLower(strings.TrimSpace(image))
	return lower != "" && !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://")
}

func jpegName(filename string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	for strings.Contains(base, "..") {
		base = strings.ReplaceAll(base, "..", ".")
	}
	if base == "" || base == "." || base == "/" {
		base = "image"
	}
	return base + ".jpg"
}
