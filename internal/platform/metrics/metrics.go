package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// Metrics holds all Prometheus metrics for the application.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Searches           *prometheus.CounterVec
	LookupDuration     *prometheus.HistogramVec
	LookupCache        *prometheus.CounterVec
	Commits            prometheus.Counter
	ValidationFailures *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all metrics with reg. Pass
// prometheus.DefaultRegisterer in main and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Searches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbook_searches_total",
			Help: "Address searches submitted through the capture workflow, by outcome",
		}, []string{"outcome"}),
		LookupDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "addressbook_lookup_duration_seconds",
			Help:    "Latency of address lookup calls, by outcome",
			Buckets: latencyBuckets,
		}, []string{"outcome"}),
		LookupCache: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbook_lookup_cache_total",
			Help: "Lookup cache reads, by result",
		}, []string{"result"}),
		Commits: factory.NewCounter(prometheus.CounterOpts{
			Name: "addressbook_entries_committed_total",
			Help: "Total number of address book entries committed",
		}),
		ValidationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "addressbook_validation_failures_total",
			Help: "Commit attempts rejected by validation, by reason",
		}, []string{"reason"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "addressbook_active_sessions",
			Help: "Capture sessions currently held in memory",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "addressbook_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern, method and status",
			Buckets: latencyBuckets,
		}, []string{"route", "method", "status"}),
	}
}

// IncSearch records one workflow search by outcome.
func (m *Metrics) IncSearch(outcome string) {
	if m == nil {
		return
	}
	m.Searches.WithLabelValues(outcome).Inc()
}

// ObserveLookup records the duration of one lookup call.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveLookup(start time.Time, outcome string) {
	if m == nil {
		return
	}
	m.LookupDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
}

// IncCache records a lookup cache hit or miss.
func (m *Metrics) IncCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.LookupCache.WithLabelValues(result).Inc()
}

// IncCommit records a committed address book entry.
func (m *Metrics) IncCommit() {
	if m == nil {
		return
	}
	m.Commits.Inc()
}

// IncValidationFailure records a rejected commit.
func (m *Metrics) IncValidationFailure(reason string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(reason).Inc()
}

// SetActiveSessions publishes the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

// ObserveRequest records the duration of one HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
