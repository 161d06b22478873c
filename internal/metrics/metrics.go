package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatreport"

// Metrics exposes Prometheus collectors for message capture and reporting.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	messagesRecorded *prometheus.CounterVec
	reports          *prometheus.CounterVec
	reportDuration   *prometheus.HistogramVec
	toneResults      *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg and panics on duplicate
// registration. Tests should pass a fresh prometheus.NewRegistry().
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		messagesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "messages_recorded_total",
				Help:      "Inbound text messages handed to the event store, by outcome.",
			},
			[]string{"status"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Report builds, by trigger and outcome.",
			},
			[]string{"trigger", "status"},
		),
		reportDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "report_duration_seconds",
				Help:      "Time spent building a report, including tone classification.",
				Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"trigger"},
		),
		toneResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tone_classifications_total",
				Help:      "Per-user tone classification attempts, by outcome.",
			},
			[]string{"status"},
		),
	}

	reg.MustRegister(m.messagesRecorded, m.reports, m.reportDuration, m.toneResults)
	return m
}

func (m *Metrics) MessageRecorded(err error) {
	if m == nil {
		return
	}
	m.messagesRecorded.WithLabelValues(statusLabel(err)).Inc()
}

func (m *Metrics) ReportBuilt(trigger string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.reports.WithLabelValues(trigger, statusLabel(err)).Inc()
	m.reportDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
}

// ToneClassified records whether the classifier produced a result.
func (m *Metrics) ToneClassified(ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "unknown"
	}
	m.toneResults.WithLabelValues(status).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
