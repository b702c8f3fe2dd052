package tax

import (
	"context"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ItemTax records the resolved rate and computed tax for one line item.
type ItemTax struct {
	ProductID  int64           `json:"productId"`
	ParentID   int64           `json:"parentId,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Rate       decimal.Decimal `json:"rate"`
	Tax        decimal.Decimal `json:"tax"`
	IsOverride bool            `json:"isOverride"`
}

// Aggregation is the cart-wide result of rate resolution.
type Aggregation struct {
	TotalTax    decimal.Decimal
	Summary     Summary
	AnyOverride bool
	Items       []ItemTax
}

// Aggregator folds per-item resolutions into a rate-grouped summary.
type Aggregator struct {
	Resolver Resolver
}

// Aggregate resolves every line item, computes item tax as price*rate/100,
// and accumulates buckets keyed by the two-decimal rate. Bundle members are
// expected to already appear as separate line items; no recursion happens
// here.
func (a Aggregator) Aggregate(ctx context.Context, items []LineItem, country string, mode DisplayMode) (Aggregation, error) {
	agg := Aggregation{
		TotalTax: decimal.Zero,
		Summary:  Summary{},
		Items:    make([]ItemTax, 0, len(items)),
	}
	for _, item := range items {
		if item.ProductID == 0 {
			continue
		}
		resolved, err := a.Resolver.Resolve(ctx, item, country, mode)
		if err != nil {
			return Aggregation{}, err
		}
		itemTax := item.Price.Mul(resolved.Rate).Div(hundred)
		agg.TotalTax = agg.TotalTax.Add(itemTax)
		agg.Summary.Add(resolved.Rate, itemTax)
		agg.AnyOverride = agg.AnyOverride || resolved.IsOverride
		agg.Items = append(agg.Items, ItemTax{
			ProductID:  item.ProductID,
			ParentID:   item.ParentID,
			Price:      item.Price,
			Rate:       resolved.Rate,
			Tax:        itemTax,
			IsOverride: resolved.IsOverride,
		})
	}
	return agg, nil
}

// SummaryFromItems rebuilds a summary from already-resolved item rates. Used
// for orders that predate summary persistence: the stored per-item rates are
// the ground truth, never a live resolution.
func SummaryFromItems(items []ItemTax) Summary {
	summary := Summary{}
	for _, item := range items {
		summary.Add(item.Rate, item.Tax)
	}
	return summary
}
