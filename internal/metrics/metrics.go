package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "eam"

// Metrics holds the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	requests             *prometheus.CounterVec
	latency              *prometheus.HistogramVec
	maintenanceRedirects prometheus.Counter
	attachmentUploads    *prometheus.CounterVec
	draftSaves           *prometheus.CounterVec
	proxyRequests        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		maintenanceRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_redirects_total",
			Help:      "Requests redirected to the maintenance page.",
		}),
		attachmentUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_uploads_total",
			Help:      "Attachment uploads by outcome.",
		}, []string{"outcome"}),
		draftSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "draft_saves_total",
			Help:      "Work order draft saves by outcome.",
		}, []string{"outcome"}),
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Proxied upstream requests by proxy and outcome.",
		}, []string{"proxy", "outcome"}),
	}

	reg.MustRegister(
		m.requests,
		m.latency,
		m.maintenanceRedirects,
		m.attachmentUploads,
		m.draftSaves,
		m.proxyRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveRequest(route, method, code string, seconds float64) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(route, method, code).Inc()
	m.latency.WithLabelValues(route, method).Observe(seconds)
}

func (m *Metrics) MaintenanceRedirect() {
	if m == nil {
		return
	}
	m.maintenanceRedirects.Inc()
}

func (m *Metrics) AttachmentUpload(outcome string) {
	if m == nil {
		return
	}
	m.attachmentUploads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) DraftSave(outcome string) {
	if m == nil {
		return
	}
	m.draftSaves.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProxyRequest(proxy, outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(proxy, outcome).Inc()
}
