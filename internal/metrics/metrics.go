package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for scan passes. A nil *Metrics is a no-op.
type Metrics struct {
	pairsTotal         *prometheus.CounterVec
	pairDuration       *prometheus.HistogramVec
	opportunitiesTotal *prometheus.CounterVec
	warningsTotal      *prometheus.CounterVec
	scanDuration       prometheus.Histogram
	lastScanPools      prometheus.Gauge
}

// New creates and registers the scan metrics.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pairsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscope_pairs_total",
			Help: "Ordered pool pairs evaluated, labeled by result.",
		}, []string{"result"}),
		pairDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arbscope_pair_duration_seconds",
			Help:    "Time spent solving one ordered pool pair.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"method"}),
		opportunitiesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscope_candidates_total",
			Help: "Candidates seen by the validator, labeled by outcome.",
		}, []string{"outcome"}),
		warningsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arbscope_warnings_total",
			Help: "Warnings raised on accepted opportunities.",
		}, []string{"warning"}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "arbscope_scan_duration_seconds",
			Help:    "Total time of one scan pass.",
			Buckets: prometheus.DefBuckets,
		}),
		lastScanPools: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arbscope_last_scan_pools",
			Help: "Number of pools in the most recent snapshot.",
		}),
	}
	reg.MustRegister(m.pairsTotal, m.pairDuration, m.opportunitiesTotal, m.warningsTotal, m.scanDuration, m.lastScanPools)
	return m
}

// ObservePair records one pair evaluation.
func (m *Metrics) ObservePair(method, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pairsTotal.WithLabelValues(result).Inc()
	m.pairDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveCandidate records a validator outcome (accepted or a rejection reason).
func (m *Metrics) ObserveCandidate(outcome string) {
	if m == nil {
		return
	}
	m.opportunitiesTotal.WithLabelValues(outcome).Inc()
}

// ObserveWarning records a warning flag on an accepted opportunity.
func (m *Metrics) ObserveWarning(warning string) {
	if m == nil {
		return
	}
	m.warningsTotal.WithLabelValues(warning).Inc()
}

// ObserveScan records a finished scan pass.
func (m *Metrics) ObserveScan(pools int, d time.Duration) {
	if m == nil {
		return
	}
	m.lastScanPools.Set(float64(pools))
	m.scanDuration.Observe(d.Seconds())
}
