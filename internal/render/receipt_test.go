package render

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-vat/internal/tax"
)

func testSummary() tax.Summary {
	summary := tax.Summary{}
	summary.Add(decimal.NewFromInt(19), decimal.RequireFromString("9.50"))
	summary.Add(decimal.NewFromInt(7), decimal.RequireFromString("0.70"))
	return summary
}

func TestTaxLinesSortedByRate(t *testing.T) {
	lines := TaxLines(testSummary())
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if lines[0].Label != "Tax (7%)" || lines[1].Label != "Tax (19%)" {
		t.Fatalf("unexpected labels: %+v", lines)
	}
	if !lines[0].Amount.Equal(decimal.RequireFromString("0.70")) {
		t.Fatalf("unexpected amount: %s", lines[0].Amount)
	}
}

func TestRateLabelTrimsTrailingZeros(t *testing.T) {
	cases := map[string]string{
		"7":    "Tax (7%)",
		"5.5":  "Tax (5.5%)",
		"19.0": "Tax (19%)",
		"21.5": "Tax (21.5%)",
	}
	for input, want := range cases {
		if got := RateLabel(decimal.RequireFromString(input)); got != want {
			t.Fatalf("RateLabel(%s) = %q, want %q", input, got, want)
		}
	}
}

func TestBuildReceiptSimpleHidesMembers(t *testing.T) {
	members := []tax.MemberItem{
		{Name: "eBook", Price: decimal.NewFromInt(10), Rate: decimal.NewFromInt(7), Tax: decimal.RequireFromString("0.70")},
	}
	receipt := BuildReceipt(testSummary(), members, tax.DisplaySimple)
	if receipt.Groups != nil {
		t.Fatalf("expected no member groups in simple mode, got %+v", receipt.Groups)
	}
	if !receipt.TotalTax.Equal(decimal.RequireFromString("10.20")) {
		t.Fatalf("expected total 10.20, got %s", receipt.TotalTax)
	}
}

func TestPlainTextListsLinesAndTotal(t *testing.T) {
	members := []tax.MemberItem{
		{Name: "eBook", Price: decimal.NewFromInt(10), Rate: decimal.NewFromInt(7), Tax: decimal.RequireFromString("0.70")},
	}
	receipt := BuildReceipt(testSummary(), members, tax.DisplayDetailed)
	text := PlainText(receipt)
	for _, want := range []string{"eBook  10.00 (Tax (7%))", "Tax (7%): 0.70", "Tax (19%): 9.50", "Total tax: 10.20"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in rendered text:\n%s", want, text)
		}
	}
}
