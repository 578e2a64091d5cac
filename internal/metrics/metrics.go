// Package metrics exposes Prometheus collectors for DNS verification, rate
// limiting, scoring and the HTTP API.
//
// Collectors are registered on an injected registry so tests and multiple
// servers in one process do not collide. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains all the Prometheus metrics for the application.
type Metrics struct {
	registry *prometheus.Registry

	// DNS metrics
	DNSQueryDuration *prometheus.HistogramVec
	DNSQueriesTotal  *prometheus.CounterVec
	DNSFindings      *prometheus.CounterVec

	// Admission metrics
	AdmissionsTotal *prometheus.CounterVec
	RateWindows     prometheus.Gauge
	WindowsSwept    prometheus.Counter

	// Scoring metrics
	AssessmentsTotal *prometheus.CounterVec
	AssessmentScore  prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	buckets := []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}

	return &Metrics{
		registry: registry,
		DNSQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phishrisk_dns_query_duration_seconds",
				Help:    "Time spent on individual DNS TXT queries",
				Buckets: buckets,
			},
			[]string{"mechanism"},
		),
		DNSQueriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishrisk_dns_queries_total",
				Help: "DNS TXT queries by mechanism and outcome",
			},
			[]string{"mechanism", "outcome"},
		),
		DNSFindings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishrisk_dns_findings_total",
				Help: "Mechanism findings by presence and validity",
			},
			[]string{"mechanism", "exists", "valid"},
		),
		AdmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishrisk_admissions_total",
				Help: "Rate limiter decisions by operation",
			},
			[]string{"operation", "decision"},
		),
		RateWindows: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "phishrisk_rate_windows",
				Help: "Live rate limit windows after the last sweep",
			},
		),
		WindowsSwept: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "phishrisk_rate_windows_swept_total",
				Help: "Expired rate limit windows removed by the sweeper",
			},
		),
		AssessmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishrisk_assessments_total",
				Help: "Completed assessments by risk level and evidence source",
			},
			[]string{"risk_level", "evidence"},
		),
		AssessmentScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "phishrisk_assessment_score",
				Help:    "Distribution of total risk scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "phishrisk_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "phishrisk_http_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: buckets,
			},
			[]string{"route"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveDNSQuery records one TXT query.
func (m *Metrics) ObserveDNSQuery(mechanism, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.DNSQueryDuration.WithLabelValues(mechanism).Observe(d.Seconds())
	m.DNSQueriesTotal.WithLabelValues(mechanism, outcome).Inc()
}

// ObserveFinding records the aggregated result for one mechanism.
func (m *Metrics) ObserveFinding(mechanism string, exists, valid bool) {
	if m == nil {
		return
	}
	m.DNSFindings.WithLabelValues(mechanism, boolLabel(exists), boolLabel(valid)).Inc()
}

// ObserveAdmission records a rate limiter decision.
func (m *Metrics) ObserveAdmission(operation string, allowed bool) {
	if m == nil {
		return
	}
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	m.AdmissionsTotal.WithLabelValues(operation, decision).Inc()
}

// ObserveSweep records a sweeper pass.
func (m *Metrics) ObserveSweep(removed, remaining int) {
	if m == nil {
		return
	}
	m.WindowsSwept.Add(float64(removed))
	m.RateWindows.Set(float64(remaining))
}

// ObserveAssessment records a completed assessment.
func (m *Metrics) ObserveAssessment(riskLevel string, score int, technical bool) {
	if m == nil {
		return
	}
	evidence := "risk-assumed"
	if technical {
		evidence = "dns"
	}
	m.AssessmentsTotal.WithLabelValues(riskLevel, evidence).Inc()
	m.AssessmentScore.Observe(float64(score))
}

// ObserveHTTP records a served request.
func (m *Metrics) ObserveHTTP(route, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
