package catalog

import "time"

// Product is a storefront item. Category holds the category name and Image
// holds either an object-store key or an external URL.
type Product struct {
	ID        string
	Title     string
	Size      string
	Color     string
	Price     float64
	Category  string
	Image     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Category groups products by name. Usage is the number of products that
// reference it and is only filled by listings.
type Category struct {
	ID        string
	Name      string
	Usage     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductInput carries the writable product fields.
type ProductInput struct {
	Title    string
	Size     string
	Color    string
	Price    float64
	Category string
	Image    string
}

// StoredImage is a normalized product image saved to the object store.
type StoredImage struct {
	Key string
	URL string
}
