package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteTotal counts quote computations by outcome.
	QuoteTotal *prometheus.CounterVec
	// RuleApplyTotal counts per-rule application outcomes during a pass.
	RuleApplyTotal *prometheus.CounterVec
	// UseTimeSettleTotal counts use-time settlement outcomes.
	UseTimeSettleTotal *prometheus.CounterVec
	// QuoteDuration records the latency of quote computations in milliseconds.
	QuoteDuration prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_total",
			Help:      "Count of quote computations by outcome.",
		}, []string{"result"})
		RuleApplyTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_apply_total",
			Help:      "Count of rule applications by kind and outcome.",
		}, []string{"kind", "result"})
		UseTimeSettleTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usetime_settle_total",
			Help:      "Count of use-time settlement outcomes.",
		}, []string{"result"})
		QuoteDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_ms",
			Help:      "Latency of quote computations in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		})

		mustRegisterCollector(reg, QuoteTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				QuoteTotal = v
			}
		})
		mustRegisterCollector(reg, RuleApplyTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RuleApplyTotal = v
			}
		})
		mustRegisterCollector(reg, UseTimeSettleTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				UseTimeSettleTotal = v
			}
		})
		mustRegisterCollector(reg, QuoteDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Histogram); ok {
				QuoteDuration = v
			}
		})
	})
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
