package tax

import "github.com/shopspring/decimal"

// MemberItem is a priced bundle member prepared for display.
type MemberItem struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Rate  decimal.Decimal `json:"rate"`
	Tax   decimal.Decimal `json:"tax"`
}

// MemberGroup is a set of members sharing one rate bucket.
type MemberGroup struct {
	Rate       decimal.Decimal `json:"rate"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	TotalTax   decimal.Decimal `json:"totalTax"`
	Items      []MemberItem    `json:"items"`
}

// GroupMembers post-processes priced bundle members for display. Detailed
// keeps one group per member in input order. Summarized merges members by
// two-decimal rate key; groups appear in first-occurrence order of each
// distinct rate. Simple never produces per-member entries (the resolver
// substitutes the container id before lookup), so it yields nothing.
func GroupMembers(items []MemberItem, mode DisplayMode) []MemberGroup {
	switch mode {
	case DisplaySimple:
		return nil
	case DisplaySummarized:
		return groupByRate(items)
	default:
		groups := make([]MemberGroup, 0, len(items))
		for _, item := range items {
			groups = append(groups, MemberGroup{
				Rate:       item.Rate,
				TotalPrice: item.Price,
				TotalTax:   item.Tax,
				Items:      []MemberItem{item},
			})
		}
		return groups
	}
}

func groupByRate(items []MemberItem) []MemberGroup {
	index := make(map[string]int, len(items))
	groups := make([]MemberGroup, 0, len(items))
	for _, item := range items {
		key := RateKey(item.Rate)
		at, ok := index[key]
		if !ok {
			index[key] = len(groups)
			groups = append(groups, MemberGroup{
				Rate:       item.Rate,
				TotalPrice: decimal.Zero,
				TotalTax:   decimal.Zero,
			})
			at = index[key]
		}
		groups[at].TotalPrice = groups[at].TotalPrice.Add(item.Price)
		groups[at].TotalTax = groups[at].TotalTax.Add(item.Tax)
		groups[at].Items = append(groups[at].Items, item)
	}
	return groups
}
