package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	EntriesCreated  *prometheus.CounterVec
	ReviewsDecided  *prometheus.CounterVec
	TradesExecuted  *prometheus.CounterVec
	ReviewConflicts prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		EntriesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_entries_created_total",
				Help: "Total ledger entries created, by kind.",
			},
			[]string{"kind"},
		),
		ReviewsDecided: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_reviews_decided_total",
				Help: "Total admin review decisions, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		TradesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_trades_executed_total",
				Help: "Total demo trades executed, by symbol and side.",
			},
			[]string{"symbol", "side"},
		),
		ReviewConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_review_conflicts_total",
				Help: "Total review decisions that lost a status race.",
			},
		),
	}

	registry.MustRegister(m.EntriesCreated, m.ReviewsDecided, m.TradesExecuted, m.ReviewConflicts)
	return m
}

func (m *Metrics) ObserveEntry(kind string) {
	if m == nil {
		return
	}
	m.EntriesCreated.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveReview(kind, outcome string) {
	if m == nil {
		return
	}
	m.ReviewsDecided.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) ObserveTrade(symbol, side string) {
	if m == nil {
		return
	}
	m.TradesExecuted.WithLabelValues(symbol, side).Inc()
}

func (m *Metrics) ObserveReviewConflict() {
	if m == nil {
		return
	}
	m.ReviewConflicts.Inc()
}
