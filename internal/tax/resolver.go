package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

// RateSource looks up stored overrides. The boolean reports whether an
// override exists for the pair; absence is not an error.
type RateSource interface {
	Lookup(ctx context.Context, productID int64, country string) (decimal.Decimal, bool, error)
}

// DefaultRateSource supplies the platform's flat per-country rate.
type DefaultRateSource interface {
	DefaultRate(ctx context.Context, country string) (decimal.Decimal, error)
}

// Resolver decides the effective tax rate for a single line item.
type Resolver struct {
	Cfg       Config
	Overrides RateSource
	Defaults  DefaultRateSource
}

// Resolve applies the override table to a line item. The bypass rules come
// first: with the feature disabled or the country outside the enabled set,
// the platform default always wins. For bundle members under simple display
// the container's product id is substituted before the lookup, so a bundle
// with no container-level override still falls through to the platform
// default rather than an accidental member rate.
func (r Resolver) Resolve(ctx context.Context, item LineItem, country string, mode DisplayMode) (Resolved, error) {
	if !r.Cfg.Enabled || !r.Cfg.CountryEnabled(country) {
		return r.fallback(ctx, country)
	}

	productID := item.ProductID
	if item.IsBundleMember() && mode == DisplaySimple {
		productID = item.ParentID
	}

	rate, found, err := r.Overrides.Lookup(ctx, productID, country)
	if err != nil {
		// A failing override lookup must never block checkout; degrade to
		// the platform default.
		return r.fallback(ctx, country)
	}
	if found {
		return Resolved{Rate: rate, IsOverride: true}, nil
	}
	return r.fallback(ctx, country)
}

func (r Resolver) fallback(ctx context.Context, country string) (Resolved, error) {
	rate, err := r.Defaults.DefaultRate(ctx, country)
	if err != nil {
		return Resolved{}, err
	}
	return Resolved{Rate: rate, IsOverride: false}, nil
}
