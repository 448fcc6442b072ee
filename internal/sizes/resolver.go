package sizes

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-checkout/pkg/commerce"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type sizeCatalog interface {
	ProductSizes(ctx context.Context, productID string) ([]commerce.Size, error)
	FindSizes(ctx context.Context, label string) ([]commerce.Size, error)
}

// Resolver maps a (product, size label) pair to the backend's size record id.
// The product's own size association wins; the global size catalog is the
// fallback. Lookups are never cached across submissions.
type Resolver struct {
	catalog sizeCatalog
	logg    *logger.Logger
}

func NewResolver(catalog sizeCatalog, logg *logger.Logger) (*Resolver, error) {
	if catalog == nil {
		return nil, errors.New("size catalog is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Resolver{catalog: catalog, logg: logg}, nil
}

// Resolve returns the size id and true, or "" and false when no record
// matches or a lookup fails. A miss is never an error: callers create the
// line item without a size relation.
func (r *Resolver) Resolve(ctx context.Context, productID, sizeLabel string) (string, bool) {
	label := strings.TrimSpace(sizeLabel)
	if label == "" {
		return "", false
	}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"product_id": productID,
		"size":       label,
	})

	if productID != "" {
		sizes, err := r.catalog.ProductSizes(ctx, productID)
		if err != nil {
			r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "size.product_lookup.failed")
		} else if id, ok := match(sizes, label); ok {
			return id, true
		}
	}

	sizes, err := r.catalog.FindSizes(ctx, label)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "size.catalog_lookup.failed")
		return "", false
	}
	// The value filter is not trusted; a backend may ignore it.
	if id, ok := match(sizes, label); ok {
		return id, true
	}
	r.logg.Info(ctx, "size.unresolved")
	return "", false
}

func match(sizes []commerce.Size, label string) (string, bool) {
	for _, size := range sizes {
		if size.Value == label && size.ID != "" {
			return size.ID, true
		}
	}
	return "", false
}
