package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"finitefield.org/hanko-catalog/internal/catalog"
)

const (
	defaultTimeout = 8 * time.Second
	maxPayloadSize = 10 << 20
)

var tracer = otel.Tracer("finitefield.org/hanko-catalog/internal/source")

// Client fetches the product list from a JSON endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

var _ catalog.Source = (*Client)(nil)

// NewClient builds a client for endpoint. A non-positive timeout uses the default.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		http:     &http.Client{Timeout: timeout},
	}
}

// Fetch performs one GET against the endpoint and splits the top-level array.
func (c *Client) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "source.Client.Fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("http.url", c.endpoint))

	records, err := c.fetch(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "data unavailable")
		return nil, err
	}
	span.SetAttributes(attribute.Int("catalog.records", len(records)))
	return records, nil
}

func (c *Client) fetch(ctx context.Context) ([]json.RawMessage, error) {
	if c == nil || c.endpoint == "" {
		return nil, fmt.Errorf("%w: no endpoint configured", catalog.ErrDataUnavailable)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrDataUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrDataUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP error: %d: %s", catalog.ErrDataUnavailable, resp.StatusCode, drainError(resp.Body))
	}
	return Decode(io.LimitReader(resp.Body, maxPayloadSize))
}

// File reads the product list from a local JSON file.
type File struct {
	Path string
}

var _ catalog.Source = File{}

// Fetch reads and splits the file.
func (f File) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrDataUnavailable, err)
	}
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", catalog.ErrDataUnavailable, err)
	}
	defer fh.Close()
	return Decode(io.LimitReader(fh, maxPayloadSize))
}

// Decode splits a JSON array into its elements without interpreting them.
func Decode(r io.Reader) ([]json.RawMessage, error) {
	var records []json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: malformed payload: %w", catalog.ErrDataUnavailable, err)
	}
	if records == nil {
		return nil, fmt.Errorf("%w: payload is not an array", catalog.ErrDataUnavailable)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: malformed payload: trailing data after array", catalog.ErrDataUnavailable)
	}
	return records, nil
}

func drainError(r io.Reader) string {
	if r == nil {
		return ""
	}
	b, _ := io.ReadAll(io.LimitReader(r, 256))
	return strings.TrimSpace(string(b))
}
