package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gilang-arya/crew-dispatch-api/internal/models"
)

// MetricsService owns the Prometheus registry and the instruments shared by
// the HTTP middleware and the domain services.
type MetricsService struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	runsTotal   *prometheus.CounterVec
	runDuration *prometheus.HistogramVec

	decisionsTotal *prometheus.CounterVec
	cacheOpsTotal  *prometheus.CounterVec
}

// NewMetricsService builds and registers all instruments.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s := &MetricsService{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_runs_total",
			Help: "Dispatch runs by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_run_duration_seconds",
			Help:    "Dispatch run duration by final status.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"status"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_proposal_decisions_total",
			Help: "Proposal decisions by resulting status.",
		}, []string{"status"}),
		cacheOpsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_cache_lookups_total",
			Help: "Cache lookups by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		s.httpRequests,
		s.httpDuration,
		s.runsTotal,
		s.runDuration,
		s.decisionsTotal,
		s.cacheOpsTotal,
	)
	return s
}

// Registry exposes the registry for the /metrics handler.
func (s *MetricsService) Registry() *prometheus.Registry {
	return s.registry
}

// ObserveHTTP records one handled HTTP request.
func (s *MetricsService) ObserveHTTP(method, route, status string, duration time.Duration) {
	s.httpRequests.WithLabelValues(method, route, status).Inc()
	s.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRun records a finished dispatch run.
func (s *MetricsService) ObserveRun(status models.RunStatus, duration time.Duration) {
	s.runsTotal.WithLabelValues(string(status)).Inc()
	s.runDuration.WithLabelValues(string(status)).Observe(duration.Seconds())
}

// ObserveDecision records a proposal decision.
func (s *MetricsService) ObserveDecision(status models.ProposalStatus) {
	s.decisionsTotal.WithLabelValues(string(status)).Inc()
}

// ObserveCache records a cache lookup outcome.
func (s *MetricsService) ObserveCache(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	s.cacheOpsTotal.WithLabelValues(outcome).Inc()
}
