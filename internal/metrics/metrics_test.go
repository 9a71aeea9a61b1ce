package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObservePair("optimizer", "ok", time.Millisecond)
	m.ObservePair("optimizer", "ok", time.Millisecond)
	m.ObservePair("optimizer", "error", time.Millisecond)
	m.ObserveCandidate("accepted")
	m.ObserveWarning("quantization_mismatch")
	m.ObserveScan(5, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pairsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pairsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.opportunitiesTotal.WithLabelValues("accepted")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.lastScanPools))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObservePair("analytic", "ok", time.Second)
	m.ObserveCandidate("accepted")
	m.ObserveWarning("probe_not_concave")
	m.ObserveScan(2, time.Second)
}
