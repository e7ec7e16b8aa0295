package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"go.opentelemetry.io/otel/trace"

	"finitefield.org/hanko-catalog/internal/catalog"
)

var errInvalidBucket = errors.New("images: bucket name is required")

// ObjectOpener opens an object for reading and reports its declared content type.
type ObjectOpener func(ctx context.Context, bucket, object string) (io.ReadCloser, string, error)

// BucketResolver reads product images from Cloud Storage objects named
// "images/<file>".
type BucketResolver struct {
	bucket   string
	open     ObjectOpener
	maxBytes int64
}

// NewBucketResolver serves images from bucket using client.
func NewBucketResolver(client *storage.Client, bucket string, maxBytes int64) (*BucketResolver, error) {
	if client == nil {
		return nil, errors.New("images: storage client is required")
	}
	return NewBucketResolverWithOpener(bucket, storageOpener(client), maxBytes)
}

// NewBucketResolverWithOpener builds a resolver over an arbitrary object opener.
func NewBucketResolverWithOpener(bucket string, open ObjectOpener, maxBytes int64) (*BucketResolver, error) {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errInvalidBucket
	}
	if open == nil {
		return nil, errors.New("images: object opener is required")
	}
	return &BucketResolver{bucket: bucket, open: open, maxBytes: maxBytes}, nil
}

// Resolve reads the image object for p.
func (r *BucketResolver) Resolve(ctx context.Context, p catalog.Product) (Image, error) {
	ctx, span := tracer.Start(ctx, "images.BucketResolver.Resolve", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	rc, contentType, err := r.open(ctx, r.bucket, Path(p))
	if err != nil {
		span.RecordError(err)
		return Image{}, fmt.Errorf("%w: gs://%s/%s: %w", ErrImageUnavailable, r.bucket, Path(p), err)
	}
	defer rc.Close()
	return decode(rc, contentType, r.maxBytes)
}

func storageOpener(client *storage.Client) ObjectOpener {
	return func(ctx context.Context, bucket, object string) (io.ReadCloser, string, error) {
		reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
		if err != nil {
			return nil, "", err
		}
		return reader, reader.Attrs.ContentType, nil
	}
}
