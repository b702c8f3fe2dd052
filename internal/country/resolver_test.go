package country

import (
	"context"
	"testing"
)

type fakeGeo struct {
	country string
	err     error
}

func (f fakeGeo) CountryForIP(context.Context, string) (string, error) {
	return f.country, f.err
}

func TestResolvePrefersBillingAddress(t *testing.T) {
	r := Resolver{BaseCountry: "DE", Geo: fakeGeo{country: "US"}}
	if got := r.Resolve(context.Background(), "fr", "1.2.3.4"); got != "FR" {
		t.Fatalf("expected FR from billing address, got %q", got)
	}
}

func TestResolveFallsBackToBaseCountry(t *testing.T) {
	r := Resolver{BaseCountry: "DE", Geo: fakeGeo{country: "US"}}
	if got := r.Resolve(context.Background(), "", "1.2.3.4"); got != "DE" {
		t.Fatalf("expected base country DE, got %q", got)
	}
}

func TestResolveUsesGeoWhenNothingElse(t *testing.T) {
	r := Resolver{Geo: fakeGeo{country: "us"}}
	if got := r.Resolve(context.Background(), "", "1.2.3.4"); got != "US" {
		t.Fatalf("expected geo US, got %q", got)
	}
}

func TestResolveEmptyWhenUnknown(t *testing.T) {
	r := Resolver{}
	if got := r.Resolve(context.Background(), "Germany", ""); got != "" {
		t.Fatalf("expected empty for undeterminable country, got %q", got)
	}
}

func TestNormalizeRejectsInvalidCodes(t *testing.T) {
	cases := map[string]string{
		" de ": "DE",
		"FR":   "FR",
		"DEU":  "",
		"1A":   "",
		"":     "",
	}
	for input, want := range cases {
		if got := Normalize(input); got != want {
			t.Fatalf("Normalize(%q) = %q, want %q", input, got, want)
		}
	}
}
