package main

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	chatRequests     *prometheus.CounterVec
	contactSubmits   *prometheus.CounterVec
	pageViews        prometheus.Counter
	upstreamDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		chatRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat proxy requests by outcome.",
		}, []string{"outcome"}),
		contactSubmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portfolio",
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact form submissions by outcome.",
		}, []string{"outcome"}),
		pageViews: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portfolio",
			Name:      "page_views_total",
			Help:      "Tracked page views.",
		}),
		upstreamDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "portfolio",
			Subsystem: "chat",
			Name:      "upstream_duration_seconds",
			Help:      "Latency of completion provider calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	reg.MustRegister(m.chatRequests, m.contactSubmits, m.pageViews, m.upstreamDuration)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return m
}

func (m *Metrics) RecordChat(outcome string)    { m.chatRequests.WithLabelValues(outcome).Inc() }
func (m *Metrics) RecordContact(outcome string) { m.contactSubmits.WithLabelValues(outcome).Inc() }
func (m *Metrics) RecordPageView()              { m.pageViews.Inc() }

func (m *Metrics) ObserveUpstream(d time.Duration) {
	m.upstreamDuration.Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
