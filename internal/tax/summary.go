package tax

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Bucket accumulates tax for one distinct rate.
type Bucket struct {
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Summary maps a rate key to its accumulated bucket. The key is the rate
// formatted to exactly two decimal places, so rates that differ only beyond
// the second decimal collapse into the same bucket. Persisted summaries rely
// on this exact keying; do not change it.
type Summary map[string]Bucket

// RateKey formats a rate into the canonical two-decimal bucket key.
func RateKey(rate decimal.Decimal) string {
	return rate.StringFixed(2)
}

// Add folds a tax amount into the bucket for the given rate, creating the
// bucket on first sight.
func (s Summary) Add(rate, amount decimal.Decimal) {
	key := RateKey(rate)
	bucket, ok := s[key]
	if !ok {
		bucket = Bucket{Rate: rate, Amount: decimal.Zero}
	}
	bucket.Amount = bucket.Amount.Add(amount)
	s[key] = bucket
}

// Total returns the sum of all bucket amounts.
func (s Summary) Total() decimal.Decimal {
	total := decimal.Zero
	for _, bucket := range s {
		total = total.Add(bucket.Amount)
	}
	return total
}

// Keys returns the bucket keys in ascending rate order, for deterministic
// rendering.
func (s Summary) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return s[keys[i]].Rate.LessThan(s[keys[j]].Rate)
	})
	return keys
}
