package crawler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the crawler.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ListingsTotal   *prometheus.CounterVec
	PhonesTotal     *prometheus.CounterVec
	LeadsTotal      *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crawler_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_listings_total",
			Help: "Listings processed by outcome.",
		},
		[]string{"outcome"},
	)
	phones := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_phones_total",
			Help: "Phone candidates validated by result.",
		},
		[]string{"result"},
	)
	leads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_leads_total",
			Help: "Leads handed to the sink by outcome.",
		},
		[]string{"outcome"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crawler_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crawler_errors_total",
			Help: "Total number of crawler errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, listings, phones, leads, retries, errorsTotal)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		ListingsTotal:   listings,
		PhonesTotal:     phones,
		LeadsTotal:      leads,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncListing increments the listings counter for an outcome label.
func (m *Metrics) IncListing(outcome string) {
	if m == nil {
		return
	}
	m.ListingsTotal.WithLabelValues(outcome).Inc()
}

// IncPhone increments the phone validation counter for a result label.
func (m *Metrics) IncPhone(result string) {
	if m == nil {
		return
	}
	m.PhonesTotal.WithLabelValues(result).Inc()
}

// IncLead increments the lead sink counter for an outcome label.
func (m *Metrics) IncLead(outcome string) {
	if m == nil {
		return
	}
	m.LeadsTotal.WithLabelValues(outcome).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
