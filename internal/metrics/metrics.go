package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSubscribed = "subscribed"
	OutcomeDuplicate  = "duplicate"
	OutcomeInvalid    = "invalid"
	OutcomeError      = "error"
	OutcomeOK         = "ok"
)

type Metrics struct {
	registry       *prometheus.Registry
	SubscribeTotal *prometheus.CounterVec
	ListTotal      *prometheus.CounterVec
}

// New builds counters on a private registry so tests and multiple app
// instances never collide on the global one.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		SubscribeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "email_list",
			Name:      "subscribe_requests_total",
			Help:      "Subscribe attempts by outcome.",
		}, []string{"outcome"}),
		ListTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "email_list",
			Name:      "list_requests_total",
			Help:      "Subscriber listings by outcome.",
		}, []string{"outcome"}),
	}

	registry.MustRegister(
		m.SubscribeTotal,
		m.ListTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveSubscribe(outcome string) {
	m.SubscribeTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveList(outcome string) {
	m.ListTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
