package render

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/tax"
)

// TaxLine is one display row of a tax breakdown.
type TaxLine struct {
	Label  string          `json:"label"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Receipt is the renderable tax section of an order document.
type Receipt struct {
	Mode     tax.DisplayMode   `json:"mode"`
	TaxLines []TaxLine         `json:"taxLines"`
	Groups   []tax.MemberGroup `json:"groups,omitempty"`
	TotalTax decimal.Decimal   `json:"totalTax"`
}

// TaxLines renders a summary as display rows, one per distinct rate in
// ascending rate order.
func TaxLines(summary tax.Summary) []TaxLine {
	keys := summary.Keys()
	lines := make([]TaxLine, 0, len(keys))
	for _, key := range keys {
		bucket := summary[key]
		lines = append(lines, TaxLine{
			Label:  RateLabel(bucket.Rate),
			Rate:   bucket.Rate,
			Amount: bucket.Amount,
		})
	}
	return lines
}

// RateLabel formats a rate for display: "Tax (7%)", "Tax (5.5%)".
func RateLabel(rate decimal.Decimal) string {
	return fmt.Sprintf("Tax (%s%%)", trimRate(rate))
}

// BuildReceipt assembles the tax section for an order document. Bundle member
// rows follow the display mode; simple mode shows totals only.
func BuildReceipt(summary tax.Summary, members []tax.MemberItem, mode tax.DisplayMode) Receipt {
	return Receipt{
		Mode:     mode,
		TaxLines: TaxLines(summary),
		Groups:   tax.GroupMembers(members, mode),
		TotalTax: summary.Total(),
	}
}

// PlainText renders the receipt's tax section for email bodies.
func PlainText(r Receipt) string {
	var b strings.Builder
	for _, group := range r.Groups {
		for _, item := range group.Items {
			fmt.Fprintf(&b, "%s  %s (%s)\n", item.Name, item.Price.StringFixed(2), RateLabel(item.Rate))
		}
	}
	for _, line := range r.TaxLines {
		fmt.Fprintf(&b, "%s: %s\n", line.Label, line.Amount.StringFixed(2))
	}
	fmt.Fprintf(&b, "Total tax: %s\n", r.TotalTax.StringFixed(2))
	return b.String()
}

// trimRate drops trailing zeros so whole-number rates print without decimals.
func trimRate(rate decimal.Decimal) string {
	s := rate.StringFixed(2)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
