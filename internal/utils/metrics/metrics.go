package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all application metrics.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Upload metrics
	UploadsTotal   *prometheus.CounterVec
	UploadBytes    *prometheus.CounterVec
	UploadParts    *prometheus.CounterVec
	UploadDuration *prometheus.HistogramVec

	// Broker metrics
	AuthorizationsTotal *prometheus.CounterVec

	namespace string
	gatherer  prometheus.Gatherer
}

// New creates metrics registered on reg. A nil reg uses a fresh registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if namespace == "" {
		namespace = "mediaupload"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Upload metrics
		UploadsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "uploads_total",
				Help:      "Total number of finished uploads",
			},
			[]string{"strategy", "status"}, // strategy: single, chunked
		),
		UploadBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "bytes_total",
				Help:      "Total bytes of successfully uploaded files",
			},
			[]string{"strategy"},
		),
		UploadParts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "parts_total",
				Help:      "Total number of part transfers",
			},
			[]string{"status"},
		),
		UploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "upload",
				Name:      "duration_seconds",
				Help:      "Upload duration in seconds",
				Buckets:   []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
			},
			[]string{"strategy"},
		),

		// Broker metrics
		AuthorizationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "authorizations_total",
				Help:      "Total number of storage authorizations issued",
			},
			[]string{"operation", "status"},
		),

		namespace: namespace,
		gatherer:  reg,
	}
}

// Handler serves the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// UploadSummary totals the finished uploads recorded on a registry.
type UploadSummary struct {
	Succeeded int
	Failed    int
	Bytes     int64
	Parts     int
}

// UploadSummary gathers the upload counters back from the registry.
func (m *Metrics) UploadSummary() (UploadSummary, error) {
	var s UploadSummary
	families, err := m.gatherer.Gather()
	if err != nil {
		return s, err
	}

	prefix := m.namespace + "_upload_"
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value := metric.GetCounter().GetValue()
			switch mf.GetName() {
			case prefix + "uploads_total":
				switch labelValue(metric.GetLabel(), "status") {
				case "succeeded":
					s.Succeeded += int(value)
				case "failed":
					s.Failed += int(value)
				}
			case prefix + "bytes_total":
				s.Bytes += int64(value)
			case prefix + "parts_total":
				s.Parts += int(value)
			}
		}
	}
	return s, nil
}

// --- Convenience methods ---

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCodeToString(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload records a finished upload. Bytes are counted only for
// successful uploads.
func (m *Metrics) RecordUpload(strategy, status string, bytes int64, duration time.Duration) {
	m.UploadsTotal.WithLabelValues(strategy, status).Inc()
	if bytes > 0 {
		m.UploadBytes.WithLabelValues(strategy).Add(float64(bytes))
	}
	m.UploadDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordPart records one part transfer.
func (m *Metrics) RecordPart(status string) {
	m.UploadParts.WithLabelValues(status).Inc()
}

// RecordAuthorization records one broker authorization.
func (m *Metrics) RecordAuthorization(operation, status string) {
	m.AuthorizationsTotal.WithLabelValues(operation, status).Inc()
}

func labelValue(labels []*dto.LabelPair, name string) string {
	for _, l := range labels {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// statusCodeToString converts an HTTP status code to a string category.
func statusCodeToString(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

