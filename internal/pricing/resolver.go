// Package pricing merges the static vendor catalog with admin-supplied
// per-vendor overrides kept in the entity store.
package pricing

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vpncompare/internal/catalog"
	"github.com/sells-group/vpncompare/internal/model"
	"github.com/sells-group/vpncompare/internal/store"
)

// KindPricingOverride is the entity kind holding per-vendor overrides,
// keyed by vendor id.
const KindPricingOverride = "pricing_override"

// Resolver resolves effective vendor pricing. Overrides are a best-effort
// enhancement: a store read failure degrades to the catalog value and is
// logged, never surfaced.
type Resolver struct {
	catalog   *catalog.Catalog
	overrides store.Collection[model.PricingOverride]
}

// NewResolver creates a Resolver over the given catalog and store.
func NewResolver(cat *catalog.Catalog, st store.Store) *Resolver {
	return &Resolver{
		catalog:   cat,
		overrides: store.NewCollection[model.PricingOverride](st, KindPricingOverride),
	}
}

// Resolve returns the effective pricing for a vendor. Unknown vendor ids get
// the conservative fallback. An override replaces the base price and
// quote-only flag when its base price is a finite positive number; the
// installation fee is never overridden.
func (r *Resolver) Resolve(ctx context.Context, vendorID string) model.PricingModel {
	base := catalog.FallbackPricing()
	if v, ok := r.catalog.Get(vendorID); ok {
		base = v.Pricing
	}

	ov, err := r.overrides.Get(ctx, vendorID)
	if err != nil {
		zap.L().Warn("pricing: override lookup failed, using catalog value",
			zap.String("vendor_id", vendorID),
			zap.Error(err),
		)
		return base
	}
	if !usable(ov.BasePricePerMonth) {
		return base
	}

	base.BasePricePerMonth = ov.BasePricePerMonth
	base.IsQuoteOnly = ov.IsQuoteOnly
	return base
}

// ResolveAll returns the resolved pricing for every catalog vendor, keyed by
// vendor id.
func (r *Resolver) ResolveAll(ctx context.Context) map[string]model.PricingModel {
	out := make(map[string]model.PricingModel, r.catalog.Len())
	for _, v := range r.catalog.Vendors() {
		out[v.ID] = r.Resolve(ctx, v.ID)
	}
	return out
}

// List returns the admin pricing view in catalog order.
func (r *Resolver) List(ctx context.Context) []model.VendorPricing {
	out := make([]model.VendorPricing, 0, r.catalog.Len())
	for _, v := range r.catalog.Vendors() {
		resolved := r.Resolve(ctx, v.ID)
		out = append(out, model.VendorPricing{
			VendorID:   v.ID,
			VendorName: v.Name,
			Pricing:    resolved,
			Overridden: resolved != v.Pricing,
		})
	}
	return out
}

// SetOverride records an admin override for a vendor. The base price must be
// a finite positive number.
func (r *Resolver) SetOverride(ctx context.Context, vendorID string, basePricePerMonth float64, isQuoteOnly bool) error {
	if _, ok := r.catalog.Get(vendorID); !ok {
		return eris.Errorf("pricing: unknown vendor %s", vendorID)
	}
	if !usable(basePricePerMonth) {
		return eris.Errorf("pricing: base price must be a finite positive number, got %v", basePricePerMonth)
	}
	return r.overrides.Save(ctx, vendorID, model.PricingOverride{
		BasePricePerMonth: basePricePerMonth,
		IsQuoteOnly:       isQuoteOnly,
		UpdatedAt:         time.Now().UnixMilli(),
	})
}

func usable(basePrice float64) bool {
	return basePrice > 0 && !math.IsInf(basePrice, 0) && !math.IsNaN(basePrice)
}
