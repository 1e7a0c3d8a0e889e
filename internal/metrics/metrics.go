// Package metrics provides Prometheus metrics for vxh runs.
package metrics

import (
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vxkit/vxh/internal/health"
	"github.com/vxkit/vxh/internal/report"
	"github.com/vxkit/vxh/internal/tracker"
	"github.com/vxkit/vxh/internal/vxrail"
)

// Metrics holds the collectors of one run on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	entityHealthy   *prometheus.GaugeVec
	kindCoverage    *prometheus.GaugeVec
	overallVerdict  *prometheus.GaugeVec
	precheckState   *prometheus.GaugeVec
	lastRun         prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vxh_transport_requests_total",
				Help: "Total number of VxRail Manager API requests",
			},
			[]string{"endpoint", "outcome"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vxh_transport_request_duration_seconds",
				Help:    "VxRail Manager API request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"endpoint"},
		),
		entityHealthy: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vxh_entity_healthy",
				Help: "Health of each entity (1 = healthy, 0 = not healthy)",
			},
			[]string{"kind", "id"},
		),
		kindCoverage: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vxh_kind_coverage",
				Help: "Query coverage per kind (1 = complete, 0.5 = partial, 0 = unknown)",
			},
			[]string{"kind"},
		),
		overallVerdict: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vxh_overall_verdict",
				Help: "Overall verdict of the last run, 1 for the current verdict",
			},
			[]string{"verdict"},
		),
		precheckState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "vxh_precheck_state",
				Help: "Terminal state of the last pre-check, 1 for the current state",
			},
			[]string{"state"},
		),
		lastRun: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "vxh_last_run_timestamp_seconds",
				Help: "Unix time the last report was generated",
			},
		),
	}
}

// Registry returns the registry holding every vxh collector.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCall implements vxrail.Observer.
func (m *Metrics) ObserveCall(call vxrail.Call, err error, elapsed time.Duration) {
	endpoint := Endpoint(call.Path)
	m.requestsTotal.WithLabelValues(endpoint, vxrail.Class(err)).Inc()
	m.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveReport sets the report gauges, replacing those of any earlier report.
func (m *Metrics) ObserveReport(r *report.Report) {
	m.entityHealthy.Reset()
	m.kindCoverage.Reset()

	if r.Health != nil {
		for _, s := range r.Health.Sections() {
			m.kindCoverage.WithLabelValues(string(s.Kind())).Set(coverageValue(s.Coverage()))
			for _, rec := range s.Records() {
				m.entityHealthy.WithLabelValues(string(rec.Kind), rec.ID).Set(boolValue(rec.Healthy))
			}
		}
	}

	for _, v := range []health.Verdict{health.VerdictHealthy, health.VerdictUnhealthy, health.VerdictUnknown} {
		m.overallVerdict.WithLabelValues(string(v)).Set(boolValue(r.Verdict == v))
	}

	m.precheckState.Reset()
	if r.Precheck != nil {
		for _, s := range []tracker.State{tracker.StateCompleted, tracker.StateFailed, tracker.StateTimedOut} {
			m.precheckState.WithLabelValues(string(s)).Set(boolValue(r.Precheck.Outcome.State == s))
		}
		if !r.Precheck.Outcome.State.Terminal() {
			m.precheckState.WithLabelValues(string(r.Precheck.Outcome.State)).Set(1)
		}
	}

	m.lastRun.Set(float64(r.GeneratedAt.Unix()))
}

// WriteTextfile writes every collector in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}

// Endpoint returns the path with request ids replaced so labels stay bounded.
func Endpoint(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i := 1; i < len(parts); i++ {
		switch parts[i-1] {
		case "requests", "prechecks":
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func coverageValue(c health.Coverage) float64 {
	switch c {
	case health.CoverageComplete:
		return 1
	case health.CoveragePartial:
		return 0.5
	default:
		return 0
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
