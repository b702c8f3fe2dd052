package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RateLookupTotal counts override lookups by source and outcome.
	RateLookupTotal *prometheus.CounterVec
	// RateResolutionTotal counts resolver outcomes (override vs default).
	RateResolutionTotal *prometheus.CounterVec
	// RateImportRows counts CSV import rows by result.
	RateImportRows *prometheus.CounterVec
	// OrderFinalizedTotal counts finalized orders by outcome.
	OrderFinalizedTotal *prometheus.CounterVec
	// SubscriptionRenewalTotal counts processed renewal tasks by result.
	SubscriptionRenewalTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RateLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_lookup_total",
			Help:      "Count of override rate lookups by source and outcome.",
		}, []string{"source", "found"})
		RateResolutionTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_resolution_total",
			Help:      "Count of resolved line item rates by kind.",
		}, []string{"kind"})
		RateImportRows = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_import_rows_total",
			Help:      "Count of CSV import rows by result.",
		}, []string{"result"})
		OrderFinalizedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_finalized_total",
			Help:      "Count of finalized orders by outcome.",
		}, []string{"result"})
		SubscriptionRenewalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscription_renewal_total",
			Help:      "Count of processed subscription renewals by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, RateLookupTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateLookupTotal = v
			}
		})
		mustRegisterCollector(reg, RateResolutionTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateResolutionTotal = v
			}
		})
		mustRegisterCollector(reg, RateImportRows, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RateImportRows = v
			}
		})
		mustRegisterCollector(reg, OrderFinalizedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrderFinalizedTotal = v
			}
		})
		mustRegisterCollector(reg, SubscriptionRenewalTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SubscriptionRenewalTotal = v
			}
		})
	})
}

// IncRateLookup records one override lookup. Safe to call before metrics are
// registered.
func IncRateLookup(source string, found bool) {
	if RateLookupTotal == nil {
		return
	}
	label := "false"
	if found {
		label = "true"
	}
	RateLookupTotal.WithLabelValues(source, label).Inc()
}

// IncRateResolution records one resolver outcome. Safe to call before
// metrics are registered.
func IncRateResolution(isOverride bool) {
	if RateResolutionTotal == nil {
		return
	}
	kind := "default"
	if isOverride {
		kind = "override"
	}
	RateResolutionTotal.WithLabelValues(kind).Inc()
}

// IncRateImportRow records the outcome of one CSV import row.
func IncRateImportRow(result string) {
	if RateImportRows == nil {
		return
	}
	RateImportRows.WithLabelValues(result).Inc()
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
