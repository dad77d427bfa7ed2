package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"share-drop/internal/config"
)

// Metrics holds the service's Prometheus collectors. Each Metrics has its
// own registry so several servers can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	uploads     *prometheus.CounterVec
	uploadBytes prometheus.Counter
	downloads   *prometheus.CounterVec
	deletes     *prometheus.CounterVec
	logins      *prometheus.CounterVec
}

// NewMetrics registers all collectors, including Go runtime and process
// metrics, on a fresh registry.
func NewMetrics(build config.BuildInfo) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "share_http_requests_total",
			Help: "HTTP requests by status code.",
		}, []string{"code"}),
		uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "share_uploads_total",
			Help: "Upload attempts by result.",
		}, []string{"result"}),
		uploadBytes: f.NewCounter(prometheus.CounterOpts{
			Name: "share_upload_bytes_total",
			Help: "Bytes received in successful uploads.",
		}),
		downloads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "share_downloads_total",
			Help: "Download attempts by result.",
		}, []string{"result"}),
		deletes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "share_deletes_total",
			Help: "Delete attempts by result.",
		}, []string{"result"}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "share_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
	}

	f.NewGaugeVec(prometheus.GaugeOpts{
		Name: "share_build_info",
		Help: "Build information of the running binary.",
	}, []string{"version", "commit"}).WithLabelValues(build.Version, build.Commit).Set(1)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// resultLabel buckets an HTTP status into a metrics result label.
func resultLabel(status int) string {
	switch {
	case status < 300:
		return "ok"
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "denied"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusRequestEntityTooLarge:
		return "too_large"
	case status < 500:
		return "rejected"
	default:
		return "error"
	}
}
