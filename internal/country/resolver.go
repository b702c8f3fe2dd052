package country

import (
	"context"
	"strings"
)

// GeoSource maps a client IP to an ISO 3166-1 alpha-2 country code. An empty
// result means the source could not place the address.
type GeoSource interface {
	CountryForIP(ctx context.Context, ip string) (string, error)
}

// Resolver picks the taxation country for a request. Precedence: explicit
// billing address, then the shop's base country, then IP geolocation. An
// empty result means no country could be determined and the caller should
// treat the rate as zero.
type Resolver struct {
	BaseCountry string
	Geo         GeoSource
}

// Resolve applies the precedence chain.
func (r Resolver) Resolve(ctx context.Context, billingCountry, clientIP string) string {
	if cc := Normalize(billingCountry); cc != "" {
		return cc
	}
	if cc := Normalize(r.BaseCountry); cc != "" {
		return cc
	}
	if r.Geo != nil && clientIP != "" {
		cc, err := r.Geo.CountryForIP(ctx, clientIP)
		if err == nil {
			return Normalize(cc)
		}
	}
	return ""
}

// Normalize trims and upper-cases a country code, rejecting anything that is
// not two ASCII letters.
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 2 {
		return ""
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return ""
		}
	}
	return code
}
