package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"finitefield.org/hanko-catalog/internal/observability"
)

var (
	tracer   = otel.Tracer("finitefield.org/hanko-catalog/internal/catalog")
	validate = validator.New()
)

// Source fetches the raw product list. Each element of the returned slice is one
// product record; fetch, status and top-level parse failures must wrap
// ErrDataUnavailable.
type Source interface {
	Fetch(ctx context.Context) ([]json.RawMessage, error)
}

// SourceFunc adapts ordinary functions to Source.
type SourceFunc func(context.Context) ([]json.RawMessage, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]json.RawMessage, error) { return f(ctx) }

// record mirrors the product wire schema: {name, type, price, image}.
type record struct {
	Name  string   `json:"name" validate:"required"`
	Type  string   `json:"type" validate:"required"`
	Price *float64 `json:"price" validate:"required,gte=0"`
	Image string   `json:"image" validate:"required"`
}

// Load fetches the product list from src and builds a catalog. Records that fail
// to decode or validate are skipped with a warning; any fetch failure is logged
// and returned as ErrDataUnavailable with no partial catalog.
func Load(ctx context.Context, src Source, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, span := tracer.Start(ctx, "catalog.Load")
	defer span.End()

	if src == nil {
		err := fmt.Errorf("%w: no source configured", ErrDataUnavailable)
		logger.Error("catalog load failed", zap.Error(err))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	raws, err := src.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", ErrDataUnavailable, err)
		}
		logger.Error("catalog load failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "data unavailable")
		return nil, err
	}

	products := make([]Product, 0, len(raws))
	for i, raw := range raws {
		p, err := decodeProduct(raw)
		if err != nil {
			observability.InvalidProducts.WithLabelValues("load").Inc()
			logger.Warn("skipping invalid product", zap.Int("index", i), zap.Error(err))
			continue
		}
		p.ID = productID(i)
		products = append(products, p)
	}

	c := New(products)
	span.SetAttributes(
		attribute.Int("catalog.records", len(raws)),
		attribute.Int("catalog.products", c.Len()),
	)
	logger.Info("catalog loaded",
		zap.String("version", c.Version().String()),
		zap.Int("products", c.Len()),
		zap.Int("skipped", len(raws)-c.Len()),
	)
	return c, nil
}

func decodeProduct(raw json.RawMessage) (Product, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	if err := validate.Struct(rec); err != nil {
		return Product{}, fmt.Errorf("%w: %w", ErrInvalidProduct, err)
	}
	return Product{
		Name:  rec.Name,
		Type:  rec.Type,
		Price: *rec.Price,
		Image: rec.Image,
	}, nil
}
