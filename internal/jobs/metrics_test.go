package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	assert.NoError(t, m.Track("borrows:overdue_scan").End(nil))
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("borrows:overdue_scan").End(boom), boom)
	m.SetOverdue(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("borrows:overdue_scan", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("borrows:overdue_scan", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("borrows:overdue_scan")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.overdue))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	assert.ErrorIs(t, m.Track("x").End(boom), boom)
	m.SetOverdue(1)
}
