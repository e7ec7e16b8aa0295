// Package render turns a visible product list into view nodes and attaches each
// product's image as it arrives.
//
// Every Render call starts a new cycle with a higher generation number. Image
// completions from older cycles are discarded, so a late image can never land in
// a container that has since been cleared or rebuilt. Images attach in
// completion order, which varies between runs.
package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"finitefield.org/hanko-catalog/internal/catalog"
	"finitefield.org/hanko-catalog/internal/format"
	"finitefield.org/hanko-catalog/internal/images"
	"finitefield.org/hanko-catalog/internal/observability"
	"finitefield.org/hanko-catalog/internal/view"
)

const (
	nameClass          = "productContent"
	priceClass         = "price"
	defaultConcurrency = 4
)

// Renderer owns a container and rebuilds it on every Render call. All container
// access goes through the renderer's lock.
type Renderer struct {
	builder   view.Builder
	container view.Node
	logger    *zap.Logger
	sem       *semaphore.Weighted

	mu         sync.Mutex
	generation uint64
	current    *Cycle
	cancel     context.CancelFunc
}

// Option customises a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for image and product failures.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithConcurrency bounds the number of image requests in flight per renderer.
func WithConcurrency(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New returns a renderer writing into container with builder.
func New(builder view.Builder, container view.Node, opts ...Option) *Renderer {
	r := &Renderer{
		builder:   builder,
		container: container,
		logger:    zap.NewNop(),
		sem:       semaphore.NewWeighted(defaultConcurrency),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

type slot struct {
	product catalog.Product
	group   view.Node
}

// Render clears the container, synchronously inserts one structural node per
// product in order, and then requests every product's image through resolver.
// Products whose price cannot be formatted are skipped. ctx bounds the image
// requests; the previous cycle's requests are cancelled.
func (r *Renderer) Render(ctx context.Context, visible []catalog.Product, resolver images.Resolver) *Cycle {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.generation++
	cycleCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.builder.Clear(r.container)
	slots := make([]slot, 0, len(visible))
	for _, p := range visible {
		group, err := r.structure(p)
		if err != nil {
			observability.InvalidProducts.WithLabelValues("render").Inc()
			r.logger.Warn("skipping product", zap.String("product_id", p.ID), zap.Error(err))
			continue
		}
		r.builder.Append(r.container, group)
		slots = append(slots, slot{product: p, group: group})
	}

	if resolver == nil {
		slots = nil
	}
	cycle := newCycle(r.generation, len(slots))
	r.current = cycle
	r.mu.Unlock()

	observability.RenderCycles.Inc()
	r.logger.Debug("render cycle started",
		zap.Uint64("generation", cycle.generation),
		zap.Int("products", len(slots)),
	)
	if len(slots) == 0 {
		cancel()
		return cycle
	}
	for _, s := range slots {
		go r.resolve(cycleCtx, cycle, s, resolver)
	}
	return cycle
}

// structure builds the image-less node for p.
func (r *Renderer) structure(p catalog.Product) (view.Node, error) {
	price, err := format.Price(p.Price)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrInvalidProduct, err)
	}
	group := r.builder.CreateGroup(p.Type)
	r.builder.Append(group, r.builder.CreateLabel(nameClass, format.Name(p.Name)))
	r.builder.Append(group, r.builder.CreateLabel(priceClass, price))
	return group, nil
}

func (r *Renderer) resolve(ctx context.Context, cycle *Cycle, s slot, resolver images.Resolver) {
	var (
		img images.Image
		err error
	)
	if err = r.sem.Acquire(ctx, 1); err == nil {
		img, err = resolver.Resolve(ctx, s.product)
		r.sem.Release(1)
	}
	r.settle(cycle, s, img, err)
}

func (r *Renderer) settle(cycle *Cycle, s slot, img images.Image, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	defer r.finish(cycle)

	if cycle.generation != r.generation {
		observability.ImageResults.WithLabelValues("stale").Inc()
		r.logger.Debug("discarding stale image",
			zap.Uint64("generation", cycle.generation),
			zap.Uint64("current", r.generation),
			zap.String("product_id", s.product.ID),
		)
		return
	}
	if err != nil {
		if !errors.Is(err, images.ErrImageUnavailable) {
			err = fmt.Errorf("%w: %w", images.ErrImageUnavailable, err)
		}
		observability.ImageResults.WithLabelValues("failed").Inc()
		r.logger.Warn("product image unavailable",
			zap.String("product_id", s.product.ID),
			zap.String("image", images.Path(s.product)),
			zap.Error(err),
		)
		return
	}
	r.builder.Append(s.group, r.builder.CreateImage(img.URL(), s.product.Name))
	observability.ImageResults.WithLabelValues("attached").Inc()
}

// finish must be called with r.mu held.
func (r *Renderer) finish(cycle *Cycle) {
	cycle.pending--
	if cycle.pending == 0 {
		close(cycle.done)
		if cycle == r.current && r.cancel != nil {
			r.cancel()
			r.cancel = nil
		}
	}
}

// Generation returns the generation of the most recent cycle; zero before the first Render.
func (r *Renderer) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// View runs fn with the container while holding the renderer lock. fn must not
// retain the container or call back into the renderer.
func (r *Renderer) View(fn func(container view.Node)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.container)
}

// Settle waits until the current cycle has no pending images, following any
// cycles that supersede it while waiting.
func (r *Renderer) Settle(ctx context.Context) error {
	for {
		r.mu.Lock()
		cycle := r.current
		r.mu.Unlock()
		if cycle == nil {
			return nil
		}
		if err := cycle.Wait(ctx); err != nil {
			return err
		}
		r.mu.Lock()
		same := r.current == cycle
		r.mu.Unlock()
		if same {
			return nil
		}
	}
}

// Close cancels the image requests of the current cycle.
func (r *Renderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

// Cycle tracks the outstanding image requests of one Render call.
type Cycle struct {
	generation uint64
	requested  int
	// pending is guarded by the owning Renderer's mutex.
	pending int
	done    chan struct{}
}

func newCycle(generation uint64, n int) *Cycle {
	c := &Cycle{generation: generation, requested: n, pending: n, done: make(chan struct{})}
	if n == 0 {
		close(c.done)
	}
	return c
}

// Generation identifies the cycle.
func (c *Cycle) Generation() uint64 { return c.generation }

// Requested is the number of image requests the cycle issued.
func (c *Cycle) Requested() int { return c.requested }

// Done is closed once every image request of the cycle has settled.
func (c *Cycle) Done() <-chan struct{} { return c.done }

// Wait blocks until the cycle is done or ctx ends.
func (c *Cycle) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
