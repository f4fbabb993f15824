// Package metrics holds the Prometheus collectors for the answer pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	// Registry is the dedicated registry served at /metrics.
	Registry = prometheus.NewRegistry()

	gatewayCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kotae_gateway_calls_total",
		Help: "Generation gateway calls by outcome (ok/failed)",
	}, []string{"outcome"})

	gatewayLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kotae_gateway_latency_ms",
		Help:    "Latency of generation gateway calls in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000, 60000},
	})

	planParses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kotae_plan_parse_total",
		Help: "Plan parse outcomes (ok/empty/rejected)",
	}, []string{"outcome"})

	planUnits = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kotae_plan_units",
		Help:    "Number of units in accepted plans",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
	})

	droppedUnits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kotae_plan_dropped_units_total",
		Help: "Plan units rejected by validation, by reason",
	}, []string{"reason"})

	retrievals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kotae_retrieval_total",
		Help: "Router unit outcomes by strategy (answered/fallback/failed)",
	}, []string{"strategy", "outcome"})

	answerLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kotae_answer_latency_ms",
		Help:    "End-to-end answer latency in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 20000, 40000, 80000},
	})
)

func ensureRegistered() {
	once.Do(func() {
		Registry.MustRegister(Collectors()...)
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObserveGateway records one gateway call.
func ObserveGateway(start time.Time, failed bool) {
	ensureRegistered()
	outcome := "ok"
	if failed {
		outcome = "failed"
	}
	gatewayCalls.WithLabelValues(outcome).Inc()
	gatewayLatency.Observe(float64(time.Since(start).Milliseconds()))
}

// ObservePlan records a parse outcome and, for accepted plans, the unit count.
func ObservePlan(outcome string, units int) {
	ensureRegistered()
	planParses.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		planUnits.Observe(float64(units))
	}
}

// IncDroppedUnit counts a unit rejected for reason.
func IncDroppedUnit(reason string) {
	ensureRegistered()
	droppedUnits.WithLabelValues(reason).Inc()
}

// IncRetrieval counts a router unit outcome.
func IncRetrieval(strategy, outcome string) {
	ensureRegistered()
	retrievals.WithLabelValues(strategy, outcome).Inc()
}

// ObserveAnswer records end-to-end answer latency.
func ObserveAnswer(start time.Time) {
	ensureRegistered()
	answerLatency.Observe(float64(time.Since(start).Milliseconds()))
}

// Collectors returns the pipeline collectors.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		gatewayCalls, gatewayLatency, planParses, planUnits, droppedUnits, retrievals, answerLatency,
	}
}
