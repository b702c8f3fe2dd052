package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/tax"
)

type memStore struct {
	orders    map[uuid.UUID]Order
	saveCalls int
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[uuid.UUID]Order)}
}

func (m *memStore) InsertOrder(_ context.Context, o Order) (uuid.UUID, error) {
	id := uuid.New()
	o.ID = id
	m.orders[id] = o
	return id, nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *memStore) SaveSummary(_ context.Context, id uuid.UUID, summary tax.Summary) error {
	m.saveCalls++
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Summary == nil {
		o.Summary = summary
		m.orders[id] = o
	}
	return nil
}

type memCatalog struct {
	products map[int64]catalog.Product
}

func (m memCatalog) GetProduct(_ context.Context, productID int64) (catalog.Product, error) {
	p, ok := m.products[productID]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return p, nil
}

func (m memCatalog) ProductName(_ context.Context, productID int64) (string, bool, error) {
	p, ok := m.products[productID]
	return p.Name, ok, nil
}

type memRates struct {
	rates map[[2]any]string
}

func (m memRates) Lookup(_ context.Context, productID int64, cc string) (decimal.Decimal, bool, error) {
	raw, ok := m.rates[[2]any{productID, cc}]
	if !ok {
		return decimal.Zero, false, nil
	}
	return decimal.RequireFromString(raw), true, nil
}

type memDefaults struct{}

func (memDefaults) DefaultRate(_ context.Context, cc string) (decimal.Decimal, error) {
	if cc == "DE" {
		return decimal.NewFromInt(19), nil
	}
	return decimal.Zero, nil
}

func newTestService(store Store) *Service {
	products := memCatalog{products: map[int64]catalog.Product{
		123: {ID: 123, Name: "eBook", Price: decimal.RequireFromString("100.00"), Kind: catalog.KindSingle},
		456: {ID: 456, Name: "Video", Price: decimal.RequireFromString("50.00"), Kind: catalog.KindSingle},
	}}
	resolver := tax.Resolver{
		Cfg:       tax.NewConfig(true, []string{"DE"}, tax.DisplayDetailed),
		Overrides: memRates{rates: map[[2]any]string{{int64(123), "DE"}: "7"}},
		Defaults:  memDefaults{},
	}
	return NewService(ServiceConfig{
		Store:      store,
		Expander:   catalog.Expander{Products: products},
		Aggregator: tax.Aggregator{Resolver: resolver},
		Mode:       tax.DisplayDetailed,
		Log:        zerolog.Nop(),
	})
}

func TestFinalizePersistsSummary(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	o, err := svc.Finalize(context.Background(), []catalog.CartEntry{
		{ProductID: 123, Quantity: 1},
		{ProductID: 456, Quantity: 1},
	}, "DE")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !o.TotalTax.Equal(decimal.RequireFromString("16.5")) {
		t.Fatalf("expected total tax 16.5, got %s", o.TotalTax)
	}
	if !o.AnyOverride {
		t.Fatal("expected any_override for cart with override")
	}

	stored := store.orders[o.ID]
	if stored.Summary == nil {
		t.Fatal("expected summary persisted with the order")
	}
	if !stored.Summary["7.00"].Amount.Equal(decimal.RequireFromString("7")) {
		t.Fatalf("unexpected 7.00 bucket: %+v", stored.Summary["7.00"])
	}
}

func TestFinalizedRatesSurviveOverrideChanges(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	o, err := svc.Finalize(context.Background(), []catalog.CartEntry{{ProductID: 123}}, "DE")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// The stored items carry the rate at purchase time; reading the summary
	// later never re-resolves.
	summary, err := svc.TaxSummary(context.Background(), o.ID)
	if err != nil {
		t.Fatalf("tax summary: %v", err)
	}
	if _, ok := summary["7.00"]; !ok {
		t.Fatalf("expected rate fixed at purchase time, got %v", summary)
	}
}

func TestTaxSummaryRecomputesForLegacyOrders(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	id := uuid.New()
	store.orders[id] = Order{
		ID: id,
		Items: []tax.ItemTax{
			{ProductID: 123, Rate: decimal.NewFromInt(7), Tax: decimal.RequireFromString("7")},
			{ProductID: 456, Rate: decimal.NewFromInt(19), Tax: decimal.RequireFromString("9.5")},
		},
	}

	summary, err := svc.TaxSummary(context.Background(), id)
	if err != nil {
		t.Fatalf("tax summary: %v", err)
	}
	if len(summary) != 2 {
		t.Fatalf("expected recomputed buckets, got %v", summary)
	}
	if store.saveCalls != 1 {
		t.Fatalf("expected backfill write, got %d", store.saveCalls)
	}

	// Second read serves the stored summary without another backfill.
	if _, err := svc.TaxSummary(context.Background(), id); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if store.saveCalls != 1 {
		t.Fatalf("expected summary computed once, got %d writes", store.saveCalls)
	}
}

func TestFinalizeRejectsEmptyOrder(t *testing.T) {
	svc := newTestService(newMemStore())
	if _, err := svc.Finalize(context.Background(), nil, "DE"); err == nil {
		t.Fatal("expected error for empty order")
	}
}

func TestFinalizeUnknownProduct(t *testing.T) {
	svc := newTestService(newMemStore())
	if _, err := svc.Finalize(context.Background(), []catalog.CartEntry{{ProductID: 999}}, "DE"); err == nil {
		t.Fatal("expected error for unknown product")
	}
}
