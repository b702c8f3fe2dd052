package billing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/events"
	"github.com/noah-isme/backend-vat/internal/tax"
)

type memEventStore struct {
	events []events.Event
}

func (m *memEventStore) InsertEvent(_ context.Context, topic, subject string, payload []byte) (events.Event, error) {
	ev := events.Event{ID: uuid.New(), Topic: topic, Subject: subject, Payload: payload}
	m.events = append(m.events, ev)
	return ev, nil
}

type memStore struct {
	subs     map[uuid.UUID]Subscription
	renewals []Renewal
}

func newMemStore() *memStore {
	return &memStore{subs: make(map[uuid.UUID]Subscription)}
}

func (m *memStore) InsertSubscription(_ context.Context, sub Subscription) (uuid.UUID, error) {
	id := uuid.New()
	sub.ID = id
	m.subs[id] = sub
	return id, nil
}

func (m *memStore) GetSubscription(_ context.Context, id uuid.UUID) (Subscription, error) {
	sub, ok := m.subs[id]
	if !ok {
		return Subscription{}, ErrNotFound
	}
	return sub, nil
}

func (m *memStore) InsertRenewal(_ context.Context, renewal Renewal) (uuid.UUID, error) {
	id := uuid.New()
	renewal.ID = id
	m.renewals = append(m.renewals, renewal)
	return id, nil
}

type mutableRates struct {
	rate string
}

func (m *mutableRates) Lookup(_ context.Context, _ int64, _ string) (decimal.Decimal, bool, error) {
	if m.rate == "" {
		return decimal.Zero, false, nil
	}
	return decimal.RequireFromString(m.rate), true, nil
}

type flatDefaults struct{}

func (flatDefaults) DefaultRate(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(19), nil
}

func newTestService(store Store, rates *mutableRates) *Service {
	return NewService(ServiceConfig{
		Store: store,
		Resolver: tax.Resolver{
			Cfg:       tax.NewConfig(true, []string{"DE"}, tax.DisplayDetailed),
			Overrides: rates,
			Defaults:  flatDefaults{},
		},
		Log: zerolog.Nop(),
	})
}

func TestSubscribeCapturesCurrentRate(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mutableRates{rate: "7"})

	sub, err := svc.Subscribe(context.Background(), 123, "DE", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if !sub.Rate.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected captured rate 7, got %s", sub.Rate)
	}
}

func TestRenewalUsesStoredRateNotCurrent(t *testing.T) {
	store := newMemStore()
	rates := &mutableRates{rate: "7"}
	svc := newTestService(store, rates)

	sub, err := svc.Subscribe(context.Background(), 123, "DE", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// The override changes after signup; the renewal must still bill at 7%.
	rates.rate = "19"
	renewal, err := svc.ProcessRenewal(context.Background(), sub.ID)
	if err != nil {
		t.Fatalf("renewal: %v", err)
	}
	if !renewal.Tax.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected tax at stored 7%%, got %s", renewal.Tax)
	}
	if !renewal.Total.Equal(decimal.NewFromInt(107)) {
		t.Fatalf("expected total 107, got %s", renewal.Total)
	}
}

func TestRenewalEmitsCompletionEvent(t *testing.T) {
	store := newMemStore()
	eventStore := &memEventStore{}
	svc := newTestService(store, &mutableRates{rate: "7"})
	svc.bus = &events.Bus{Store: eventStore}

	sub, err := svc.Subscribe(context.Background(), 123, "DE", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if _, err := svc.ProcessRenewal(context.Background(), sub.ID); err != nil {
		t.Fatalf("renewal: %v", err)
	}

	if len(eventStore.events) != 1 {
		t.Fatalf("expected one event, got %d", len(eventStore.events))
	}
	ev := eventStore.events[0]
	if ev.Topic != events.TopicRenewalComplete {
		t.Fatalf("unexpected topic %q", ev.Topic)
	}
	if ev.Subject != sub.ID.String() {
		t.Fatalf("unexpected subject %q", ev.Subject)
	}
}

func TestRenewalUnknownSubscription(t *testing.T) {
	svc := newTestService(newMemStore(), &mutableRates{})
	if _, err := svc.ProcessRenewal(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected error for unknown subscription")
	}
}

func TestRenewalInactiveSubscription(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store, &mutableRates{rate: "7"})

	sub, err := svc.Subscribe(context.Background(), 123, "DE", decimal.NewFromInt(100))
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	stored := store.subs[sub.ID]
	stored.Status = "canceled"
	store.subs[sub.ID] = stored

	if _, err := svc.ProcessRenewal(context.Background(), sub.ID); err == nil {
		t.Fatal("expected error for inactive subscription")
	}
}
