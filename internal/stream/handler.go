// Package stream implements the per-connection MJPEG handler: it
// negotiates the multipart response and pumps encoded frames to the
// peer until disconnect or shutdown.
package stream

import (
	"fmt"
	"net/http"
	"time"

	"virtual-camera/internal/camera"
	"virtual-camera/internal/encoder"
	"virtual-camera/internal/logger"
	"virtual-camera/internal/metrics"
)

// Boundary is the multipart boundary token agreed in the preamble.
const Boundary = "frame"

// DefaultInterval paces the stream at roughly 30 frames per second.
const DefaultInterval = 33 * time.Millisecond

// writeTimeout bounds a single blocked socket write so a stalled peer
// cannot pin a streaming goroutine past shutdown.
const writeTimeout = 10 * time.Second

// Handler serves the stream path, the landing page and the 404
// fallback. One Handler is shared by every listener; each accepted
// connection gets its own streaming loop.
type Handler struct {
	camera   *camera.Camera
	encoder  *encoder.Encoder
	metrics  *metrics.Metrics
	interval time.Duration
	auth     *DigestAuth
}

// NewHandler wires the shared camera and encoder into a handler.
func NewHandler(cam *camera.Camera, enc *encoder.Encoder, m *metrics.Metrics, interval time.Duration) *Handler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Handler{
		camera:   cam,
		encoder:  enc,
		metrics:  m,
		interval: interval,
	}
}

// SetAuth layers digest authentication in front of every route. A nil
// auth leaves the server open, which is the default.
func (h *Handler) SetAuth(a *DigestAuth) {
	h.auth = a
}

// Routes builds the HTTP mux for one listener.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/stream", h.guard(h.handleStream))
	mux.HandleFunc("/", h.guard(h.handleIndex))
	return mux
}

func (h *Handler) guard(next http.HandlerFunc) http.HandlerFunc {
	if h.auth == nil {
		return next
	}
	return h.auth.Middleware(h.metrics, next)
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		logger.Debug("HTTP", "%s - GET %s 404", r.RemoteAddr, r.URL.Path)
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}

	logger.Info("HTTP", "%s - GET /", r.RemoteAddr)
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(renderIndex(requestScheme(r), r.Host)))
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	logger.Info("HTTP", "%s - GET /stream", r.RemoteAddr)
	h.metrics.ViewerConnected()
	defer h.metrics.ViewerDisconnected()

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		frame, err := h.camera.Fetch()
		switch {
		case err != nil:
			// Transient capture failure: skip this tick.
			h.metrics.CaptureErrors.Add(1)
			h.metrics.FramesSkipped.Add(1)
		default:
			start := time.Now()
			data, err := h.encoder.Encode(frame)
			if err != nil {
				h.metrics.EncodeErrors.Add(1)
				h.metrics.FramesSkipped.Add(1)
				logger.Warn("Stream", "Encode failure on frame %d: %v", frame.FrameNum, err)
				break
			}
			h.metrics.UpdateEncodeLatency(time.Since(start))

			_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := writePart(w, data); err != nil {
				// Peer reset or pipe closure: expected, never an error.
				logger.Debug("Stream", "Client %s disconnected: %v", r.RemoteAddr, err)
				return
			}
			flusher.Flush()
			h.metrics.FramesServed.Add(1)
			h.metrics.BytesSent.Add(uint64(len(data)))
		}

		select {
		case <-ctx.Done():
			logger.Debug("Stream", "Shutting down stream to %s", r.RemoteAddr)
			return
		case <-ticker.C:
		}
	}
}

// writePart emits one self-delimiting part: boundary marker, per-part
// headers, the encoded bytes and the trailing delimiter.
func writePart(w http.ResponseWriter, data []byte) error {
	if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(data)); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write([]byte("\r\n"))
	return err
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}
