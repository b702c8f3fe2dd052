package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayMode controls how bundle member rates are surfaced in both
// calculation and presentation.
type DisplayMode string

const (
	// DisplayDetailed shows each bundle member with its own resolved rate.
	DisplayDetailed DisplayMode = "detailed"
	// DisplaySummarized resolves members individually but groups them by rate
	// for display.
	DisplaySummarized DisplayMode = "summarized"
	// DisplaySimple taxes the whole bundle under the container's rate; member
	// rates are never consulted.
	DisplaySimple DisplayMode = "simple"
)

// ParseDisplayMode normalises a raw mode string, falling back to detailed.
func ParseDisplayMode(value string) DisplayMode {
	switch DisplayMode(strings.ToLower(strings.TrimSpace(value))) {
	case DisplaySummarized:
		return DisplaySummarized
	case DisplaySimple:
		return DisplaySimple
	default:
		return DisplayDetailed
	}
}

// Config is an immutable per-request snapshot of the override settings.
// Countries outside EnabledCountries always fall back to the platform
// default rate regardless of stored overrides.
type Config struct {
	Enabled          bool
	EnabledCountries map[string]struct{}
	BundleDisplay    DisplayMode
}

// NewConfig builds a Config from raw settings values.
func NewConfig(enabled bool, countries []string, mode DisplayMode) Config {
	set := make(map[string]struct{}, len(countries))
	for _, cc := range countries {
		cc = strings.ToUpper(strings.TrimSpace(cc))
		if cc != "" {
			set[cc] = struct{}{}
		}
	}
	if mode == "" {
		mode = DisplayDetailed
	}
	return Config{Enabled: enabled, EnabledCountries: set, BundleDisplay: mode}
}

// CountryEnabled reports whether overrides are consultable for the country.
func (c Config) CountryEnabled(country string) bool {
	_, ok := c.EnabledCountries[strings.ToUpper(strings.TrimSpace(country))]
	return ok
}

// LineItem is a priced cart entry supplied by the platform's cart expansion.
// Bundle members appear as separate line items with ParentID set to the
// bundle container's product id.
type LineItem struct {
	ProductID int64
	ParentID  int64
	Price     decimal.Decimal
}

// IsBundleMember reports whether the item belongs to a bundle container.
func (li LineItem) IsBundleMember() bool {
	return li.ParentID != 0
}

// Resolved is the outcome of a single rate resolution.
type Resolved struct {
	Rate       decimal.Decimal
	IsOverride bool
}
