package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los colectores del servicio. Un *Metrics nil es valido y no
// registra nada, lo que simplifica los tests.
type Metrics struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	usersRegistered  prometheus.Counter
	chatsResolved    *prometheus.CounterVec
	messagesAppended prometheus.Counter
	idempotentReplay prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pairchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		usersRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pairchat",
			Name:      "users_registered_total",
			Help:      "Users registered.",
		}),
		chatsResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pairchat",
			Name:      "chats_resolved_total",
			Help:      "Find-or-create chat calls by outcome (created or existing).",
		}, []string{"outcome"}),
		messagesAppended: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pairchat",
			Name:      "messages_appended_total",
			Help:      "Messages appended to chats.",
		}),
		idempotentReplay: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pairchat",
			Name:      "messages_idempotent_replays_total",
			Help:      "POST /messages calls answered from the idempotency store.",
		}),
	}
	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.usersRegistered,
		m.chatsResolved,
		m.messagesAppended,
		m.idempotentReplay,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler expone el registro en formato texto de Prometheus.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route, status string, latency time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(latency.Seconds())
}

func (m *Metrics) UserRegistered() {
	if m == nil {
		return
	}
	m.usersRegistered.Inc()
}

func (m *Metrics) ChatResolved(created bool) {
	if m == nil {
		return
	}
	outcome := "existing"
	if created {
		outcome = "created"
	}
	m.chatsResolved.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MessageAppended() {
	if m == nil {
		return
	}
	m.messagesAppended.Inc()
}

func (m *Metrics) IdempotentReplay() {
	if m == nil {
		return
	}
	m.idempotentReplay.Inc()
}
