package images

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"finitefield.org/hanko-catalog/internal/catalog"
)

const (
	pathPrefix      = "images/"
	defaultMaxBytes = 5 << 20
)

// ErrImageUnavailable is returned when a product image could not be fetched or decoded.
var ErrImageUnavailable = errors.New("images: image unavailable")

// Image is a fetched product image.
type Image struct {
	ContentType string
	Data        []byte
}

// URL returns a directly displayable data URL for the image.
func (i Image) URL() string {
	return "data:" + i.ContentType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// Resolver fetches the image for one product.
type Resolver interface {
	Resolve(ctx context.Context, p catalog.Product) (Image, error)
}

// ResolverFunc adapts ordinary functions to Resolver.
type ResolverFunc func(context.Context, catalog.Product) (Image, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, p catalog.Product) (Image, error) {
	return f(ctx, p)
}

// Path returns the product image location relative to the image root.
func Path(p catalog.Product) string {
	return pathPrefix + p.Image
}

// decode reads at most maxBytes from r and checks the payload is an image. The
// declared content type wins when it is an image type; otherwise it is sniffed.
func decode(r io.Reader, declared string, maxBytes int64) (Image, error) {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: read: %w", ErrImageUnavailable, err)
	}
	if int64(len(data)) > maxBytes {
		return Image{}, fmt.Errorf("%w: exceeds %d bytes", ErrImageUnavailable, maxBytes)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty body", ErrImageUnavailable)
	}
	ct := mediaType(declared)
	if !strings.HasPrefix(ct, "image/") {
		ct = mediaType(http.DetectContentType(data))
	}
	if !strings.HasPrefix(ct, "image/") {
		return Image{}, fmt.Errorf("%w: unexpected content type %q", ErrImageUnavailable, ct)
	}
	return Image{ContentType: ct, Data: data}, nil
}

func mediaType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i != -1 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
