package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsCounters(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.MessageRecorded(nil)
	m.MessageRecorded(nil)
	m.MessageRecorded(errors.New("disk full"))
	m.ReportBuilt("command", time.Second, nil)
	m.ReportBuilt("scheduled", time.Second, errors.New("boom"))
	m.ToneClassified(true)
	m.ToneClassified(false)
	m.ToneClassified(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.messagesRecorded.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.messagesRecorded.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("command", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reports.WithLabelValues("scheduled", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toneResults.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toneResults.WithLabelValues("unknown")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.reportDuration))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.MessageRecorded(nil)
		m.ReportBuilt("command", time.Second, nil)
		m.ToneClassified(true)
	})
}
