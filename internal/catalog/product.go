package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	// ErrDataUnavailable is returned when the product list could not be fetched or parsed.
	ErrDataUnavailable = errors.New("catalog: data unavailable")
	// ErrInvalidProduct marks a product record that violates the product contract.
	ErrInvalidProduct = errors.New("catalog: invalid product")
)

// Product is a single catalog entry. Products are immutable once loaded.
type Product struct {
	ID    string
	Name  string
	Type  string
	Price float64
	Image string
}

// Catalog is the ordered, immutable product list loaded from a data source.
// A nil *Catalog behaves like an empty one.
type Catalog struct {
	products   []Product
	categories []string
	version    ulid.ULID
	loadedAt   time.Time
}

// New builds a catalog from products, preserving their order. Products without
// an ID receive a positional one.
func New(products []Product) *Catalog {
	c := &Catalog{
		products: make([]Product, len(products)),
		version:  ulid.Make(),
		loadedAt: time.Now().UTC(),
	}
	copy(c.products, products)
	seen := map[string]struct{}{}
	for i := range c.products {
		if c.products[i].ID == "" {
			c.products[i].ID = productID(i)
		}
		t := c.products[i].Type
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			c.categories = append(c.categories, t)
		}
	}
	return c
}

// Products returns a copy of the full product list.
func (c *Catalog) Products() []Product {
	if c == nil {
		return []Product{}
	}
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.products)
}

// Categories lists distinct product types in order of first appearance.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// Version identifies this particular load of the catalog.
func (c *Catalog) Version() ulid.ULID {
	if c == nil {
		return ulid.ULID{}
	}
	return c.version
}

// LoadedAt is the time the catalog was built.
func (c *Catalog) LoadedAt() time.Time {
	if c == nil {
		return time.Time{}
	}
	return c.loadedAt
}

func productID(index int) string {
	return fmt.Sprintf("p%04d", index)
}
