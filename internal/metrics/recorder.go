package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exposes trading-cycle metrics to Prometheus.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	tierFetches   *prometheus.CounterVec
	tierLatency   *prometheus.HistogramVec
	selections    prometheus.Counter
	selected      prometheus.Gauge
	trades        *prometheus.CounterVec
	advisorErrors *prometheus.CounterVec
	notifyErrors  *prometheus.CounterVec
}

// New registers the recorder's collectors on reg
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)

	return &Recorder{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecycle_cycles_total",
			Help: "Trading cycles by outcome",
		}, []string{"outcome"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradecycle_cycle_duration_seconds",
			Help:    "Wall time of one trading cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300},
		}),
		tierFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecycle_data_fetches_total",
			Help: "Market data fetches by source tier and outcome",
		}, []string{"source", "outcome"}),
		tierLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradecycle_data_fetch_duration_seconds",
			Help:    "Market data fetch latency by source tier",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
		selections: f.NewCounter(prometheus.CounterOpts{
			Name: "tradecycle_selections_total",
			Help: "Completed stock selections",
		}),
		selected: f.NewGauge(prometheus.GaugeOpts{
			Name: "tradecycle_selected_symbols",
			Help: "Number of symbols in the latest selection",
		}),
		trades: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecycle_trades_total",
			Help: "Executed trades by side",
		}, []string{"side"}),
		advisorErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecycle_advisor_failures_total",
			Help: "Sentiment and decision advisor failures",
		}, []string{"advisor"}),
		notifyErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tradecycle_notify_failures_total",
			Help: "Notifier sink failures",
		}, []string{"sink"}),
	}
}

// RecordCycle records a finished cycle: completed, market_closed, fault, skipped
func (r *Recorder) RecordCycle(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(outcome).Inc()
	if d > 0 {
		r.cycleDuration.Observe(d.Seconds())
	}
}

// RecordFetch records one tier attempt
func (r *Recorder) RecordFetch(source string, ok bool, d time.Duration) {
	if r == nil {
		return
	}
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	r.tierFetches.WithLabelValues(source, outcome).Inc()
	r.tierLatency.WithLabelValues(source).Observe(d.Seconds())
}

// RecordSelection records a selection run and its size
func (r *Recorder) RecordSelection(n int) {
	if r == nil {
		return
	}
	r.selections.Inc()
	r.selected.Set(float64(n))
}

// RecordTrade records an executed fill
func (r *Recorder) RecordTrade(side string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(side).Inc()
}

// RecordAdvisorFailure records a degraded sentiment or decision call
func (r *Recorder) RecordAdvisorFailure(advisor string) {
	if r == nil {
		return
	}
	r.advisorErrors.WithLabelValues(advisor).Inc()
}

// RecordNotifyFailure records a notifier sink error
func (r *Recorder) RecordNotifyFailure(sink string) {
	if r == nil {
		return
	}
	r.notifyErrors.WithLabelValues(sink).Inc()
}
