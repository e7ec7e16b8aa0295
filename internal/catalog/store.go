package catalog

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// ChangeFunc receives the visible products after every filter recomputation.
type ChangeFunc func(visible []Product)

// Store owns a catalog and the filter inputs applied to it. SetCategory and
// SetSearchTerm are the only ways to change the filter; each call recomputes the
// visible set and invokes the change callback before returning.
//
// The callback runs with the store lock held so cycles are triggered in
// mutation order. It must not call back into the Store.
type Store struct {
	mu       sync.Mutex
	catalog  *Catalog
	state    FilterState
	onChange ChangeFunc
}

// NewStore returns an uninitialised store with the default filter state.
func NewStore(onChange ChangeFunc) *Store {
	if onChange == nil {
		onChange = func([]Product) {}
	}
	return &Store{state: DefaultFilterState(), onChange: onChange}
}

// Load fetches the catalog from src and initialises the store with it. On
// failure the store stays uninitialised.
func (s *Store) Load(ctx context.Context, src Source, logger *zap.Logger) error {
	c, err := Load(ctx, src, logger)
	if err != nil {
		return err
	}
	s.Init(c)
	return nil
}

// Init installs c and triggers the first render with the current filter state,
// which is the unfiltered list unless inputs were set before Init.
func (s *Store) Init(c *Catalog) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
	s.changed()
}

// Ready reports whether a catalog has been installed.
func (s *Store) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog != nil
}

// Catalog returns the installed catalog, or nil before Init.
func (s *Store) Catalog() *Catalog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog
}

// FilterState returns the current filter inputs.
func (s *Store) FilterState() FilterState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetCategory changes the active category.
func (s *Store) SetCategory(category string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Category = category
	s.changed()
}

// SetSearchTerm changes the active search term.
func (s *Store) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SearchTerm = term
	s.changed()
}

// Visible derives the products matching the current filter state.
func (s *Store) Visible() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Filter(s.catalog.Products(), s.state)
}

// changed must be called with s.mu held.
func (s *Store) changed() {
	if s.catalog == nil {
		return
	}
	s.onChange(Filter(s.catalog.products, s.state))
}
