// Package session keeps one catalog view per visitor: a filter store wired to a
// renderer and its container. Views expire after a period without requests.
package session

import (
	"context"
	"fmt"
	"html/template"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/images"
	"finitefield.org/hanko-catalog/internal/observability"
	"finitefield.org/hanko-catalog/internal/render"
	"finitefield.org/hanko-catalog/internal/view"
)

const (
	// ContainerID is the id of the element holding the rendered products.
	ContainerID = "catalog-products"

	defaultTTL = 30 * time.Minute
)

// View is one visitor's catalog state. Filter changes re-render its container.
type View struct {
	id       string
	store    *catalog.Store
	renderer *render.Renderer
	cancel   context.CancelFunc

	// requests serialises Snapshot so each response pairs a filter state with
	// the markup rendered for it.
	requests sync.Mutex

	mu       sync.Mutex
	lastSeen time.Time
}

// Snapshot is a consistent reading of a view after one request's filter was applied.
type Snapshot struct {
	State      catalog.FilterState
	Visible    []catalog.Product
	Catalog    *catalog.Catalog
	Markup     template.HTML
	Generation uint64
	// Settled is false when ctx ended before every image of the cycle arrived.
	Settled bool
}

// Snapshot applies state, waits for the cycle's images until ctx ends, and reads
// the view back without letting a concurrent request interleave.
func (v *View) Snapshot(ctx context.Context, state catalog.FilterState) (Snapshot, error) {
	v.requests.Lock()
	defer v.requests.Unlock()

	v.Apply(state)
	settled := v.renderer.Settle(ctx) == nil
	out, err := v.HTML()
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		State:      v.store.FilterState(),
		Visible:    v.store.Visible(),
		Catalog:    v.store.Catalog(),
		Markup:     out,
		Generation: v.renderer.Generation(),
		Settled:    settled,
	}, nil
}

// ID returns the session id the view is keyed by.
func (v *View) ID() string { return v.id }

// FilterState returns the current filter inputs.
func (v *View) FilterState() catalog.FilterState { return v.store.FilterState() }

// SetCategory changes the category and starts a render cycle.
func (v *View) SetCategory(category string) { v.store.SetCategory(category) }

// SetSearchTerm changes the search term and starts a render cycle.
func (v *View) SetSearchTerm(term string) { v.store.SetSearchTerm(term) }

// Apply sets only the inputs that differ from the current state, so an unchanged
// request does not start a new cycle. It reports whether anything changed.
func (v *View) Apply(state catalog.FilterState) bool {
	current := v.store.FilterState()
	changed := false
	if state.Category != current.Category {
		v.store.SetCategory(state.Category)
		changed = true
	}
	if state.SearchTerm != current.SearchTerm {
		v.store.SetSearchTerm(state.SearchTerm)
		changed = true
	}
	return changed
}

// Visible returns the products matching the current filter.
func (v *View) Visible() []catalog.Product { return v.store.Visible() }

// Catalog returns the catalog the view renders.
func (v *View) Catalog() *catalog.Catalog { return v.store.Catalog() }

// Generation returns the current render generation.
func (v *View) Generation() uint64 { return v.renderer.Generation() }

// Settle waits for outstanding images of the current cycle.
func (v *View) Settle(ctx context.Context) error { return v.renderer.Settle(ctx) }

// HTML returns the sanitised container markup as it is right now.
func (v *View) HTML() (template.HTML, error) {
	var (
		out template.HTML
		err error
	)
	v.renderer.View(func(container view.Node) {
		out, err = view.Sanitize(container)
	})
	return out, err
}

func (v *View) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *View) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastSeen)
}

func (v *View) close() {
	v.cancel()
	v.renderer.Close()
}

// Manager owns the views of all visitors.
type Manager struct {
	catalog     *catalog.Catalog
	resolver    images.Resolver
	logger      *zap.Logger
	ttl         time.Duration
	concurrency int
	now         func() time.Time

	mu     sync.Mutex
	views  map[string]*View
	closed bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger handed to every renderer.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithTTL sets how long an idle view is kept.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithImageConcurrency bounds concurrent image requests per view.
func WithImageConcurrency(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.concurrency = n
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(m *Manager) {
		if clock != nil {
			m.now = clock
		}
	}
}

// NewManager returns a manager rendering c with images from resolver.
func NewManager(c *catalog.Catalog, resolver images.Resolver, opts ...Option) *Manager {
	m := &Manager{
		catalog:  c,
		resolver: resolver,
		logger:   zap.NewNop(),
		ttl:      defaultTTL,
		now:      time.Now,
		views:    map[string]*View{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Ready reports whether the manager has a catalog to render.
func (m *Manager) Ready() bool { return m != nil && m.catalog != nil }

// Get returns the view for id, creating and rendering it on first use. created
// reports whether a new view was made.
func (m *Manager) Get(id string) (v *View, created bool, err error) {
	if !m.Ready() {
		return nil, false, fmt.Errorf("session: %w", catalog.ErrDataUnavailable)
	}
	if id == "" {
		return nil, false, fmt.Errorf("session: empty id")
	}
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, fmt.Errorf("session: manager closed")
	}
	if v, ok := m.views[id]; ok {
		v.touch(now)
		return v, false, nil
	}
	v = m.newView(id)
	v.touch(now)
	m.views[id] = v
	observability.ActiveSessions.Inc()
	m.logger.Debug("catalog view created", zap.Int("sessions", len(m.views)))
	return v, true, nil
}

func (m *Manager) newView(id string) *View {
	ctx, cancel := context.WithCancel(context.Background())
	opts := []render.Option{render.WithLogger(m.logger)}
	if m.concurrency > 0 {
		opts = append(opts, render.WithConcurrency(m.concurrency))
	}
	r := render.New(view.HTML{}, view.NewContainer(ContainerID), opts...)
	resolver := m.resolver
	store := catalog.NewStore(func(visible []catalog.Product) {
		r.Render(ctx, visible, resolver)
	})
	store.Init(m.catalog)
	return &View{id: id, store: store, renderer: r, cancel: cancel}
}

// Sweep drops views idle for longer than the TTL and reports how many were removed.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, v := range m.views {
		if v.idleSince(now) > m.ttl {
			v.close()
			delete(m.views, id)
			removed++
		}
	}
	if removed > 0 {
		observability.ActiveSessions.Sub(float64(removed))
		m.logger.Debug("expired catalog views", zap.Int("removed", removed), zap.Int("sessions", len(m.views)))
	}
	return removed
}

// Run sweeps every interval until ctx is done. hooks run after each sweep.
func (m *Manager) Run(ctx context.Context, interval time.Duration, hooks ...func()) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
			for _, hook := range hooks {
				hook()
			}
		}
	}
}

// Len reports the number of live views.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.views)
}

// Close cancels every view. Get fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, v := range m.views {
		v.close()
		delete(m.views, id)
	}
	observability.ActiveSessions.Set(0)
}
