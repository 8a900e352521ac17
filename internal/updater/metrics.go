// SPDX-License-Identifier: MPL-2.0

package updater

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "ntcomp"

// Metrics records run and per-component outcomes. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	runsTotal       *prometheus.CounterVec
	componentsTotal *prometheus.CounterVec
	bytesTotal      *prometheus.CounterVec
	phaseDuration   *prometheus.HistogramVec
	planned         prometheus.Gauge
	lastRun         prometheus.Gauge
}

// NewMetrics registers the updater metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "update_runs_total",
			Help:      "Update runs by outcome (ok, partial, failed).",
		}, []string{"outcome"}),

		componentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "component_updates_total",
			Help:      "Planned component updates by terminal state.",
		}, []string{"component", "state"}),

		bytesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "downloaded_bytes_total",
			Help:      "Archive bytes written to temp files.",
		}, []string{"component"}),

		phaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of download, verify and install steps.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"phase"}),

		planned: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "planned_components",
			Help:      "Components planned for update in the last run.",
		}),

		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

func (m *Metrics) observePhase(phase Phase, d time.Duration) {
	if m == nil {
		return
	}
	m.phaseDuration.WithLabelValues(string(phase)).Observe(d.Seconds())
}

func (m *Metrics) observeResult(r Result) {
	if m == nil {
		return
	}
	name := string(r.Component.Name)
	m.componentsTotal.WithLabelValues(name, r.State.String()).Inc()
	if r.Bytes > 0 {
		m.bytesTotal.WithLabelValues(name).Add(float64(r.Bytes))
	}
}

func (m *Metrics) observeRun(s Summary) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case s.Err != nil:
		outcome = "failed"
	case s.Failed() > 0 && s.Updated() == 0:
		outcome = "failed"
	case s.Failed() > 0:
		outcome = "partial"
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.planned.Set(float64(s.Planned()))
	m.lastRun.Set(float64(s.Started.Add(s.Duration).Unix()))
}
