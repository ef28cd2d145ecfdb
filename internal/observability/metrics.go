package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"loan-manager/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	LoanEvents      *prometheus.CounterVec
	LoanTransitions *prometheus.CounterVec
	RepaymentsPaid  prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LoanEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_events_total",
			Help: "Loan events published, by type.",
		}, []string{"type"}),
		LoanTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "loan_transitions_total",
			Help: "Loan status transitions, by target status.",
		}, []string{"status"}),
		RepaymentsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loan_repayments_paid_total",
			Help: "Installments marked paid.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	reg.MustRegister(
		m.LoanEvents, m.LoanTransitions, m.RepaymentsPaid, m.HTTPRequests, m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Publisher counts events and forwards them to next.
func (m *Metrics) Publisher(next core.EventPublisher) core.EventPublisher {
	if next == nil {
		next = core.NopPublisher{}
	}
	return &countingPublisher{m: m, next: next}
}

type countingPublisher struct {
	m    *Metrics
	next core.EventPublisher
}

func (p *countingPublisher) Publish(ctx context.Context, events ...core.LoanEvent) error {
	for _, e := range events {
		p.m.LoanEvents.WithLabelValues(string(e.Type)).Inc()
		switch e.Type {
		case core.EventLoanTransitioned:
			p.m.LoanTransitions.WithLabelValues(string(e.Status)).Inc()
		case core.EventRepaymentPaid:
			p.m.RepaymentsPaid.Inc()
		}
	}
	return p.next.Publish(ctx, events...)
}
