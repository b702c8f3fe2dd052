package rates

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeStore struct {
	rates   map[Key]decimal.Decimal
	getCnt  int
	deleted []Key
}

func newFakeStore() *fakeStore {
	return &fakeStore{rates: make(map[Key]decimal.Decimal)}
}

func (f *fakeStore) GetRate(_ context.Context, productID int64, country string) (decimal.Decimal, error) {
	f.getCnt++
	rate, ok := f.rates[Key{ProductID: productID, Country: country}]
	if !ok {
		return decimal.Zero, ErrNotFound
	}
	return rate, nil
}

func (f *fakeStore) GetProductRates(_ context.Context, productID int64) (map[string]decimal.Decimal, error) {
	result := make(map[string]decimal.Decimal)
	for key, rate := range f.rates {
		if key.ProductID == productID {
			result[key.Country] = rate
		}
	}
	return result, nil
}

func (f *fakeStore) UpsertRate(_ context.Context, productID int64, country string, rate decimal.Decimal) error {
	f.rates[Key{ProductID: productID, Country: country}] = rate
	return nil
}

func (f *fakeStore) DeleteRate(_ context.Context, productID int64, country string) error {
	key := Key{ProductID: productID, Country: country}
	if _, ok := f.rates[key]; !ok {
		return ErrNotFound
	}
	delete(f.rates, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) DeleteProductRates(_ context.Context, productID int64) error {
	for key := range f.rates {
		if key.ProductID == productID {
			delete(f.rates, key)
		}
	}
	return nil
}

func (f *fakeStore) DeleteAllRates(context.Context) error {
	f.rates = make(map[Key]decimal.Decimal)
	return nil
}

func (f *fakeStore) ListOverrides(context.Context, int, int) ([]Override, int64, error) {
	overrides := make([]Override, 0, len(f.rates))
	for key, rate := range f.rates {
		overrides = append(overrides, Override{ProductID: key.ProductID, Country: key.Country, Rate: rate})
	}
	return overrides, int64(len(overrides)), nil
}

func newTestCaching(t *testing.T, ttl time.Duration) (*CachingStore, *fakeStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := newFakeStore()
	caching := NewCachingStore(store, NewCache(client, ttl), zerolog.Nop())
	return caching, store, mr
}

func TestLookupCachesHitsOnly(t *testing.T) {
	caching, store, _ := newTestCaching(t, time.Hour)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)

	for i := 0; i < 3; i++ {
		rate, found, err := caching.Lookup(ctx, 123, "DE")
		if err != nil {
			t.Fatalf("lookup: %v", err)
		}
		if !found || !rate.Equal(decimal.NewFromInt(7)) {
			t.Fatalf("expected cached 7, got %s (found=%v)", rate, found)
		}
	}
	if store.getCnt != 1 {
		t.Fatalf("expected one store read, got %d", store.getCnt)
	}

	// Misses fall through to the store every time.
	for i := 0; i < 3; i++ {
		_, found, err := caching.Lookup(ctx, 999, "DE")
		if err != nil {
			t.Fatalf("lookup miss: %v", err)
		}
		if found {
			t.Fatal("expected miss")
		}
	}
	if store.getCnt != 4 {
		t.Fatalf("expected misses to reach the store every time, got %d reads", store.getCnt)
	}
}

func TestLookupZeroTTLBypassesCache(t *testing.T) {
	caching, store, _ := newTestCaching(t, 0)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)

	for i := 0; i < 3; i++ {
		if _, _, err := caching.Lookup(ctx, 123, "DE"); err != nil {
			t.Fatalf("lookup: %v", err)
		}
	}
	if store.getCnt != 3 {
		t.Fatalf("expected every lookup to hit the store, got %d reads", store.getCnt)
	}
}

func TestUpsertInvalidatesStaleEntry(t *testing.T) {
	caching, store, _ := newTestCaching(t, time.Hour)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)

	if _, _, err := caching.Lookup(ctx, 123, "DE"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := caching.Upsert(ctx, 123, "DE", decimal.NewFromInt(9)); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rate, found, err := caching.Lookup(ctx, 123, "DE")
	if err != nil {
		t.Fatalf("lookup after upsert: %v", err)
	}
	if !found || !rate.Equal(decimal.NewFromInt(9)) {
		t.Fatalf("expected fresh 9 after invalidation, got %s (found=%v)", rate, found)
	}
}

func TestDeleteInvalidatesCachedMiss(t *testing.T) {
	caching, store, _ := newTestCaching(t, time.Hour)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)

	if _, _, err := caching.Lookup(ctx, 123, "DE"); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := caching.Delete(ctx, 123, "DE"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	_, found, err := caching.Lookup(ctx, 123, "DE")
	if err != nil {
		t.Fatalf("lookup after delete: %v", err)
	}
	if found {
		t.Fatal("expected miss after delete")
	}
}

func TestDeleteProductFlushesAllCountries(t *testing.T) {
	caching, store, mr := newTestCaching(t, time.Hour)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)
	store.rates[Key{ProductID: 123, Country: "FR"}] = decimal.NewFromInt(5)

	if _, _, err := caching.Lookup(ctx, 123, "DE"); err != nil {
		t.Fatalf("prime DE: %v", err)
	}
	if _, _, err := caching.Lookup(ctx, 123, "FR"); err != nil {
		t.Fatalf("prime FR: %v", err)
	}
	if err := caching.DeleteProduct(ctx, 123); err != nil {
		t.Fatalf("delete product: %v", err)
	}

	for _, key := range []string{Key{ProductID: 123, Country: "DE"}.String(), Key{ProductID: 123, Country: "FR"}.String()} {
		if mr.Exists(key) {
			t.Fatalf("expected %s to be flushed", key)
		}
	}
}

func TestLookupSurvivesRedisOutage(t *testing.T) {
	caching, store, mr := newTestCaching(t, time.Hour)
	ctx := context.Background()
	store.rates[Key{ProductID: 123, Country: "DE"}] = decimal.NewFromInt(7)
	mr.Close()

	rate, found, err := caching.Lookup(ctx, 123, "DE")
	if err != nil {
		t.Fatalf("lookup with redis down: %v", err)
	}
	if !found || !rate.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected store fallback 7, got %s (found=%v)", rate, found)
	}
}
