package images

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finitefield.org/hanko-catalog/internal/catalog"
)

const defaultTimeout = 5 * time.Second

var tracer = otel.Tracer("finitefield.org/hanko-catalog/internal/images")

// HTTPResolver fetches images from baseURL + "/images/" + product image.
type HTTPResolver struct {
	baseURL  string
	http     *http.Client
	maxBytes int64
}

// HTTPOption customises an HTTPResolver.
type HTTPOption func(*HTTPResolver)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(r *HTTPResolver) {
		if c != nil {
			r.http = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(r *HTTPResolver) {
		if d > 0 {
			r.http.Timeout = d
		}
	}
}

// WithMaxBytes caps the accepted image size.
func WithMaxBytes(n int64) HTTPOption {
	return func(r *HTTPResolver) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// NewHTTPResolver builds a resolver rooted at baseURL.
func NewHTTPResolver(baseURL string, opts ...HTTPOption) *HTTPResolver {
	r := &HTTPResolver{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:     &http.Client{Timeout: defaultTimeout},
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Resolve fetches the image for p.
func (r *HTTPResolver) Resolve(ctx context.Context, p catalog.Product) (Image, error) {
	ctx, span := tracer.Start(ctx, "images.HTTPResolver.Resolve", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("catalog.product_id", p.ID))

	img, err := r.fetch(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image unavailable")
		return Image{}, err
	}
	span.SetAttributes(attribute.Int("image.bytes", len(img.Data)))
	return img, nil
}

func (r *HTTPResolver) fetch(ctx context.Context, p catalog.Product) (Image, error) {
	endpoint, err := url.JoinPath(r.baseURL, Path(p))
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := r.http.Do(req)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Image{}, fmt.Errorf("%w: HTTP error: %d", ErrImageUnavailable, resp.StatusCode)
	}
	return decode(resp.Body, resp.Header.Get("Content-Type"), r.maxBytes)
}
