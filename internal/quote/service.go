package quote

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/catalog"
	"github.com/noah-isme/backend-vat/internal/common"
	"github.com/noah-isme/backend-vat/internal/obs"
	"github.com/noah-isme/backend-vat/internal/tax"
)

// RateQuote is the answer to a single-product rate question.
type RateQuote struct {
	ProductID  int64           `json:"productId"`
	Country    string          `json:"country"`
	Rate       decimal.Decimal `json:"rate"`
	IsOverride bool            `json:"isOverride"`
}

// CartQuote prices a prospective cart without persisting anything.
type CartQuote struct {
	Country  string            `json:"country"`
	TotalTax decimal.Decimal   `json:"totalTax"`
	Summary  tax.Summary       `json:"summary"`
	Items    []tax.ItemTax     `json:"items"`
	Groups   []tax.MemberGroup `json:"groups,omitempty"`
}

// Service answers rate and cart-quote questions against the live override
// table.
type Service struct {
	resolver   tax.Resolver
	aggregator tax.Aggregator
	expander   catalog.Expander
	mode       tax.DisplayMode
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Resolver   tax.Resolver
	Aggregator tax.Aggregator
	Expander   catalog.Expander
	Mode       tax.DisplayMode
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		resolver:   cfg.Resolver,
		aggregator: cfg.Aggregator,
		expander:   cfg.Expander,
		mode:       cfg.Mode,
	}
}

// ResolveRate answers the effective rate for one product in one country.
func (s *Service) ResolveRate(ctx context.Context, productID int64, cc string) (RateQuote, error) {
	if productID <= 0 {
		return RateQuote{}, common.NewAppError("VALIDATION", "product id must be positive", http.StatusBadRequest, nil)
	}
	resolved, err := s.resolver.Resolve(ctx, tax.LineItem{ProductID: productID}, cc, s.mode)
	if err != nil {
		return RateQuote{}, err
	}
	obs.IncRateResolution(resolved.IsOverride)
	return RateQuote{
		ProductID:  productID,
		Country:    cc,
		Rate:       resolved.Rate,
		IsOverride: resolved.IsOverride,
	}, nil
}

// QuoteCart expands and prices a cart. Nothing is stored; the same request
// at a later time may return different rates if overrides changed.
func (s *Service) QuoteCart(ctx context.Context, entries []catalog.CartEntry, cc string) (CartQuote, error) {
	if len(entries) == 0 {
		return CartQuote{}, common.NewAppError("VALIDATION", "cart has no items", http.StatusBadRequest, nil)
	}
	items, products, err := s.expander.Expand(ctx, entries)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return CartQuote{}, common.NewAppError("NOT_FOUND", "unknown product in cart", http.StatusNotFound, err)
		}
		return CartQuote{}, err
	}
	result, err := s.aggregator.Aggregate(ctx, items, cc, s.mode)
	if err != nil {
		return CartQuote{}, err
	}
	for _, item := range result.Items {
		obs.IncRateResolution(item.IsOverride)
	}
	return CartQuote{
		Country:  cc,
		TotalTax: result.TotalTax,
		Summary:  result.Summary,
		Items:    result.Items,
		Groups:   tax.GroupMembers(memberItems(result.Items, products), s.mode),
	}, nil
}

// memberItems pairs aggregated bundle member taxes with their product names
// for display grouping.
func memberItems(items []tax.ItemTax, products []catalog.Product) []tax.MemberItem {
	names := make(map[int64]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	members := make([]tax.MemberItem, 0, len(items))
	for _, item := range items {
		if item.ParentID == 0 {
			continue
		}
		members = append(members, tax.MemberItem{
			Name:  names[item.ProductID],
			Price: item.Price,
			Rate:  item.Rate,
			Tax:   item.Tax,
		})
	}
	return members
}
