package billing

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/events"
	"github.com/noah-isme/backend-vat/internal/obs"
	"github.com/noah-isme/backend-vat/internal/tax"
)

var hundred = decimal.NewFromInt(100)

// Service manages subscriptions and their renewals.
type Service struct {
	store    Store
	resolver tax.Resolver
	bus      *events.Bus
	log      zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    Store
	Resolver tax.Resolver
	Bus      *events.Bus
	Log      zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{store: cfg.Store, resolver: cfg.Resolver, bus: cfg.Bus, log: cfg.Log}
}

// Subscribe resolves the current rate for the product and stores it on the
// subscription. From here on the rate is frozen for this subscriber.
func (s *Service) Subscribe(ctx context.Context, productID int64, cc string, price decimal.Decimal) (Subscription, error) {
	if productID <= 0 {
		return Subscription{}, common.NewAppError("VALIDATION", "product id must be positive", http.StatusBadRequest, nil)
	}
	resolved, err := s.resolver.Resolve(ctx, tax.LineItem{ProductID: productID}, cc, tax.DisplayDetailed)
	if err != nil {
		return Subscription{}, err
	}
	sub := Subscription{
		ProductID: productID,
		Country:   cc,
		Price:     price,
		Rate:      resolved.Rate,
		Status:    "active",
	}
	id, err := s.store.InsertSubscription(ctx, sub)
	if err != nil {
		return Subscription{}, err
	}
	sub.ID = id
	s.log.Info().Str("subscription_id", id.String()).Int64("product_id", productID).
		Str("country", cc).Str("rate", sub.Rate.String()).Msg("subscription created")
	return sub, nil
}

// ProcessRenewal bills one cycle using the rate stored on the subscription,
// never the current override table.
func (s *Service) ProcessRenewal(ctx context.Context, subscriptionID uuid.UUID) (Renewal, error) {
	sub, err := s.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Renewal{}, common.NewAppError("NOT_FOUND", "subscription not found", http.StatusNotFound, err)
		}
		return Renewal{}, err
	}
	if sub.Status != "active" {
		return Renewal{}, common.NewAppError("INVALID_STATE", "subscription is not active", http.StatusConflict, nil)
	}
	taxAmount := sub.Price.Mul(sub.Rate).Div(hundred)
	renewal := Renewal{
		SubscriptionID: sub.ID,
		Tax:            taxAmount,
		Total:          sub.Price.Add(taxAmount),
	}
	id, err := s.store.InsertRenewal(ctx, renewal)
	if err != nil {
		if obs.SubscriptionRenewalTotal != nil {
			obs.SubscriptionRenewalTotal.WithLabelValues("error").Inc()
		}
		return Renewal{}, err
	}
	renewal.ID = id
	if obs.SubscriptionRenewalTotal != nil {
		obs.SubscriptionRenewalTotal.WithLabelValues("ok").Inc()
	}
	if s.bus != nil {
		if _, err := s.bus.Emit(ctx, events.TopicRenewalComplete, sub.ID.String(), map[string]string{
			"tax":   renewal.Tax.String(),
			"total": renewal.Total.String(),
		}); err != nil {
			s.log.Warn().Err(err).Str("subscription_id", sub.ID.String()).Msg("event emit failed")
		}
	}
	s.log.Info().Str("subscription_id", sub.ID.String()).Str("tax", taxAmount.String()).Msg("renewal processed")
	return renewal, nil
}
