package order

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/events"
	"github.com/noah-isme/backend-vat/internal/obs"
	"github.com/noah-isme/backend-vat/internal/tax"
)

// Service finalizes orders and serves their persisted tax breakdowns.
type Service struct {
	store      Store
	expander   catalog.Expander
	aggregator tax.Aggregator
	mode       tax.DisplayMode
	bus        *events.Bus
	log        zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store      Store
	Expander   catalog.Expander
	Aggregator tax.Aggregator
	Mode       tax.DisplayMode
	Bus        *events.Bus
	Log        zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		store:      cfg.Store,
		expander:   cfg.Expander,
		aggregator: cfg.Aggregator,
		mode:       cfg.Mode,
		bus:        cfg.Bus,
		log:        cfg.Log,
	}
}

// Finalize expands the cart, computes taxes at the configured rates, and
// persists the order with its summary. Rates are fixed at this point; later
// override edits never change a finalized order.
func (s *Service) Finalize(ctx context.Context, entries []catalog.CartEntry, countryCode string) (Order, error) {
	if len(entries) == 0 {
		return Order{}, common.NewAppError("VALIDATION", "order has no items", http.StatusBadRequest, nil)
	}
	items, _, err := s.expander.Expand(ctx, entries)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Order{}, common.NewAppError("NOT_FOUND", "unknown product in order", http.StatusNotFound, err)
		}
		return Order{}, err
	}
	result, err := s.aggregator.Aggregate(ctx, items, countryCode, s.mode)
	if err != nil {
		return Order{}, err
	}
	for _, item := range result.Items {
		obs.IncRateResolution(item.IsOverride)
	}
	o := Order{
		Country:     countryCode,
		DisplayMode: s.mode,
		TotalTax:    result.TotalTax,
		AnyOverride: result.AnyOverride,
		Summary:     result.Summary,
		Items:       result.Items,
	}
	id, err := s.store.InsertOrder(ctx, o)
	if err != nil {
		if obs.OrderFinalizedTotal != nil {
			obs.OrderFinalizedTotal.WithLabelValues("error").Inc()
		}
		return Order{}, err
	}
	o.ID = id
	if obs.OrderFinalizedTotal != nil {
		obs.OrderFinalizedTotal.WithLabelValues("ok").Inc()
	}
	if s.bus != nil {
		if _, err := s.bus.Emit(ctx, events.TopicOrderFinalized, id.String(), map[string]any{
			"country":     countryCode,
			"totalTax":    o.TotalTax.String(),
			"anyOverride": o.AnyOverride,
		}); err != nil {
			s.log.Warn().Err(err).Str("order_id", id.String()).Msg("event emit failed")
		}
	}
	s.log.Info().Str("order_id", id.String()).Str("country", countryCode).
		Str("total_tax", o.TotalTax.String()).Bool("any_override", o.AnyOverride).
		Msg("order finalized")
	return o, nil
}

// Get loads an order by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Order{}, common.NewAppError("NOT_FOUND", "order not found", http.StatusNotFound, err)
	}
	return o, err
}

// TaxSummary returns the order's persisted summary. Orders stored before
// summaries were kept get theirs recomputed from the item rates captured at
// purchase time, then written back so the recomputation happens once.
func (s *Service) TaxSummary(ctx context.Context, id uuid.UUID) (tax.Summary, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Summary != nil {
		return o.Summary, nil
	}
	summary := tax.SummaryFromItems(o.Items)
	if err := s.store.SaveSummary(ctx, id, summary); err != nil {
		s.log.Warn().Err(err).Str("order_id", id.String()).Msg("summary backfill failed")
	}
	return summary, nil
}
