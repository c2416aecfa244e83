package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Streaming counters
	FramesServed  atomic.Uint64
	FramesSkipped atomic.Uint64
	BytesSent     atomic.Uint64

	// Error counters
	CaptureErrors atomic.Uint64
	EncodeErrors  atomic.Uint64
	AuthFailures  atomic.Uint64

	// Viewer tracking
	ActiveViewers atomic.Uint64
	TotalViewers  atomic.Uint64

	// Encode latency
	EncodeLatencyMs atomic.Uint64

	// Mode flags (0/1)
	SimulationActive atomic.Uint64
	TLSEnabled       atomic.Uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name string
		help string
		load func() uint64
	}{
		{"camera_frames_served_total", "Total multipart frames written to viewers", m.FramesServed.Load},
		{"camera_frames_skipped_total", "Total ticks skipped because no frame was available", m.FramesSkipped.Load},
		{"camera_stream_bytes_sent_total", "Total encoded image bytes written to viewers", m.BytesSent.Load},
		{"camera_capture_errors_total", "Total frame capture failures", m.CaptureErrors.Load},
		{"camera_encode_errors_total", "Total JPEG encode failures", m.EncodeErrors.Load},
		{"camera_auth_failures_total", "Total rejected digest authentication attempts", m.AuthFailures.Load},
		{"camera_active_viewers", "Number of connected stream viewers", m.ActiveViewers.Load},
		{"camera_total_viewers", "Total stream viewers since startup", m.TotalViewers.Load},
		{"camera_encode_latency_ms", "Latest JPEG encode latency in milliseconds", m.EncodeLatencyMs.Load},
		{"camera_simulation_active", "Synthetic frame generation active (0=device, 1=simulated)", m.SimulationActive.Load},
		{"camera_tls_enabled", "TLS listener enabled (0=disabled, 1=enabled)", m.TLSEnabled.Load},
	}

	for _, g := range gauges {
		load := g.load
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(load()) },
		))
	}
}

// ViewerConnected records a new stream viewer.
func (m *Metrics) ViewerConnected() {
	m.ActiveViewers.Add(1)
	m.TotalViewers.Add(1)
}

// ViewerDisconnected records a viewer leaving.
func (m *Metrics) ViewerDisconnected() {
	// Decrement via two's complement add
	m.ActiveViewers.Add(^uint64(0))
}

// UpdateEncodeLatency records the latest encode duration.
func (m *Metrics) UpdateEncodeLatency(d time.Duration) {
	m.EncodeLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer starts the metrics HTTP server
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}
