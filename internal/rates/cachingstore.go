package rates

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/obs"
)

// cachedRate is the JSON payload stored per pair. Only hits are cached; a
// pair without an override falls through to the store on every read, so the
// cache never has to answer "is this absence still true".
type cachedRate struct {
	Rate decimal.Decimal `json:"rate"`
}

// CachingStore layers the Redis cache over the database store. Reads are
// cache-first; writes go through to the database and invalidate only after
// the write is confirmed.
type CachingStore struct {
	store Store
	cache *Cache
	log   zerolog.Logger
}

// NewCachingStore composes a store with a cache.
func NewCachingStore(store Store, cache *Cache, log zerolog.Logger) *CachingStore {
	return &CachingStore{store: store, cache: cache, log: log}
}

// Lookup satisfies the resolver's rate source. Cache errors are logged and
// treated as misses so a degraded Redis never blocks rate resolution.
func (s *CachingStore) Lookup(ctx context.Context, productID int64, country string) (decimal.Decimal, bool, error) {
	key := Key{ProductID: productID, Country: country}

	var cached cachedRate
	hit, err := s.cache.GetJSON(ctx, key.String(), &cached)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("rate cache read failed")
	}
	if hit {
		obs.IncRateLookup("cache", true)
		return cached.Rate, true, nil
	}

	rate, err := s.store.GetRate(ctx, productID, country)
	switch {
	case err == nil:
		obs.IncRateLookup("store", true)
		s.writeBack(ctx, key, cachedRate{Rate: rate})
		return rate, true, nil
	case errors.Is(err, ErrNotFound):
		obs.IncRateLookup("store", false)
		return decimal.Zero, false, nil
	default:
		return decimal.Zero, false, err
	}
}

func (s *CachingStore) writeBack(ctx context.Context, key Key, payload cachedRate) {
	if err := s.cache.SetJSON(ctx, key.String(), payload); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("rate cache write failed")
	}
}

// ProductRates returns all overrides for one product, cache-first.
func (s *CachingStore) ProductRates(ctx context.Context, productID int64) (map[string]decimal.Decimal, error) {
	key := ProductKey(productID)
	var cached map[string]decimal.Decimal
	hit, err := s.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rate cache read failed")
	}
	if hit {
		return cached, nil
	}
	result, err := s.store.GetProductRates(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.SetJSON(ctx, key, result); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("rate cache write failed")
	}
	return result, nil
}

// Upsert writes an override and invalidates the pair's cached entries.
func (s *CachingStore) Upsert(ctx context.Context, productID int64, country string, rate decimal.Decimal) error {
	if err := s.store.UpsertRate(ctx, productID, country, rate); err != nil {
		return err
	}
	s.invalidatePair(ctx, Key{ProductID: productID, Country: country})
	return nil
}

// Delete removes one pair and invalidates its cached entries.
func (s *CachingStore) Delete(ctx context.Context, productID int64, country string) error {
	if err := s.store.DeleteRate(ctx, productID, country); err != nil {
		return err
	}
	s.invalidatePair(ctx, Key{ProductID: productID, Country: country})
	return nil
}

// DeleteProduct removes every override of a product and flushes its cache.
func (s *CachingStore) DeleteProduct(ctx context.Context, productID int64) error {
	if err := s.store.DeleteProductRates(ctx, productID); err != nil {
		return err
	}
	if err := s.cache.InvalidateProduct(ctx, productID); err != nil {
		s.log.Warn().Err(err).Int64("product_id", productID).Msg("rate cache invalidation failed")
	}
	return nil
}

// DeleteAll wipes the override table and the whole cache namespace.
func (s *CachingStore) DeleteAll(ctx context.Context) error {
	if err := s.store.DeleteAllRates(ctx); err != nil {
		return err
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		s.log.Warn().Err(err).Msg("rate cache invalidation failed")
	}
	return nil
}

// List passes through to the store; listings are admin-only and not cached.
func (s *CachingStore) List(ctx context.Context, limit, offset int) ([]Override, int64, error) {
	return s.store.ListOverrides(ctx, limit, offset)
}

func (s *CachingStore) invalidatePair(ctx context.Context, key Key) {
	if err := s.cache.InvalidatePair(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("key", key.String()).Msg("rate cache invalidation failed")
	}
}
