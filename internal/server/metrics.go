package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "e3kit"

// metrics holds the server collectors. Each Server registers its own set so
// several servers can live in one process (tests do this).
type metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	cardsPublished prometheus.Counter
	entryWrites    *prometheus.CounterVec
	rateLimited    prometheus.Counter
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		cardsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_published_total",
			Help:      "Cards accepted by the directory, including idempotent republishes.",
		}),
		entryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyknox_writes_total",
			Help:      "Cloud entry writes by operation and result.",
		}, []string{"op", "result"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "keyknox_rate_limited_total",
			Help:      "Cloud entry reads rejected by the per-identity limiter.",
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.cardsPublished,
		m.entryWrites,
		m.rateLimited,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
