// Package server owns the listener lifecycle: up to two concurrent
// listeners (plain HTTP and TLS) backed by one shared camera, with
// graceful degradation when TLS cannot be provisioned and an
// idempotent stop that in-flight stream loops observe within a tick.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"virtual-camera/internal/camera"
	"virtual-camera/internal/encoder"
	"virtual-camera/internal/logger"
	"virtual-camera/internal/metrics"
	"virtual-camera/internal/stream"
	"virtual-camera/internal/tlsutil"
	"virtual-camera/pkg/types"
)

// ErrNoListeners reports a configuration with neither listener
// enabled, or a startup where no enabled listener could bind.
var ErrNoListeners = errors.New("server: no listener could be started")

// Defaults matching the CLI surface.
const (
	DefaultHTTPSPort = 8080
	DefaultHTTPPort  = 8081
	DefaultCertFile  = "certs/virtual_camera.crt"
	DefaultKeyFile   = "certs/virtual_camera.key"
)

// shutdownTimeout bounds graceful shutdown of each listener.
const shutdownTimeout = 5 * time.Second

// Config controls the server runtime behaviour.
type Config struct {
	HTTPSPort int
	HTTPPort  int
	UseHTTPS  bool
	UseHTTP   bool
	CertFile  string
	KeyFile   string
	Hostname  string
	Camera    types.CameraConfig
	Quality   int
	Interval  time.Duration
	AuthUser  string
	AuthPass  string
}

// DefaultConfig returns a config serving HTTPS on 8080 and HTTP on
// 8081 with auto-generated certificates.
func DefaultConfig() Config {
	return Config{
		HTTPSPort: DefaultHTTPSPort,
		HTTPPort:  DefaultHTTPPort,
		UseHTTPS:  true,
		UseHTTP:   true,
		CertFile:  DefaultCertFile,
		KeyFile:   DefaultKeyFile,
		Hostname:  "localhost",
		Camera:    types.DefaultCameraConfig(),
		Quality:   encoder.DefaultQuality,
		Interval:  stream.DefaultInterval,
	}
}

type listener struct {
	name string
	ln   net.Listener
	srv  *http.Server
}

// Server runs the enabled listeners over one shared camera.
type Server struct {
	cfg       Config
	metrics   *metrics.Metrics
	camera    *camera.Camera
	listeners []listener
	group     *errgroup.Group
	cancel    context.CancelFunc
	stopOnce  sync.Once
	started   bool
	tlsActive bool
}

// New builds an unstarted server.
func New(cfg Config, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{cfg: cfg, metrics: m}
}

// Start constructs the shared camera, provisions TLS if requested, and
// brings up each enabled listener. It returns once every surviving
// listener is accepting; the caller blocks on Wait. A TLS provisioning
// failure degrades to HTTP only. Start fails only when no listener
// could be enabled.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.UseHTTP && !s.cfg.UseHTTPS {
		return fmt.Errorf("%w: both HTTP and HTTPS disabled", ErrNoListeners)
	}

	s.camera = camera.New(s.cfg.Camera)
	if s.camera.Simulated() {
		s.metrics.SimulationActive.Store(1)
	}

	handler := stream.NewHandler(s.camera, encoder.New(s.cfg.Quality), s.metrics, s.cfg.Interval)
	if s.cfg.AuthUser != "" {
		handler.SetAuth(stream.NewDigestAuth(s.cfg.AuthUser, s.cfg.AuthPass))
		logger.Info("Server", "Digest authentication enabled for user %q", s.cfg.AuthUser)
	}
	routes := handler.Routes()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	var tlsCfg *tls.Config
	if s.cfg.UseHTTPS {
		identity, err := tlsutil.Ensure(s.cfg.KeyFile, s.cfg.CertFile, s.cfg.Hostname)
		if err != nil {
			logger.Warn("Server", "TLS provisioning failed, disabling HTTPS for this run: %v", err)
		} else {
			tlsCfg = tlsutil.ServerConfig(identity)
		}
	}

	if tlsCfg != nil {
		addr := fmt.Sprintf(":%d", s.cfg.HTTPSPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Server", "HTTPS listener failed to bind %s: %v", addr, err)
		} else {
			s.addListener("HTTPS", tls.NewListener(ln, tlsCfg), routes, runCtx)
			s.tlsActive = true
			s.metrics.TLSEnabled.Store(1)
		}
	}

	if s.cfg.UseHTTP {
		addr := fmt.Sprintf(":%d", s.cfg.HTTPPort)
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Error("Server", "HTTP listener failed to bind %s: %v", addr, err)
		} else {
			s.addListener("HTTP", ln, routes, runCtx)
		}
	}

	if len(s.listeners) == 0 {
		cancel()
		s.camera.Release()
		return ErrNoListeners
	}

	group, _ := errgroup.WithContext(runCtx)
	s.group = group
	for i := range s.listeners {
		l := s.listeners[i]
		logger.Info("Server", "%s server started on %s", l.name, l.ln.Addr())
		group.Go(func() error {
			if err := l.srv.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("%s listener: %w", l.name, err)
			}
			return nil
		})
	}

	s.started = true
	s.logBanner()
	return nil
}

func (s *Server) addListener(name string, ln net.Listener, routes http.Handler, ctx context.Context) {
	srv := &http.Server{
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams are unbounded; per-write deadlines live in the
		// stream handler instead of a server-wide WriteTimeout.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}
	s.listeners = append(s.listeners, listener{name: name, ln: ln, srv: srv})
}

// Wait blocks until every listener loop has exited.
func (s *Server) Wait() error {
	if s.group == nil {
		return nil
	}
	return s.group.Wait()
}

// Stop shuts the server down: listeners stop accepting, in-flight
// stream loops observe the cancelled base context within one tick, and
// the camera is released. Safe to call repeatedly and from any
// goroutine.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		for _, l := range s.listeners {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := l.srv.Shutdown(ctx); err != nil {
				logger.Warn("Server", "%s shutdown: %v", l.name, err)
			} else {
				logger.Info("Server", "%s server stopped", l.name)
			}
			cancel()
		}

		if s.camera != nil {
			s.camera.Release()
		}
	})
}

// TLSActive reports whether the TLS listener came up.
func (s *Server) TLSActive() bool {
	return s.tlsActive
}

// Addr returns the bound address of the named listener ("HTTP" or
// "HTTPS"), or nil if it is not running. Lets tests bind port 0.
func (s *Server) Addr(name string) net.Addr {
	for _, l := range s.listeners {
		if l.name == name {
			return l.ln.Addr()
		}
	}
	return nil
}

func (s *Server) logBanner() {
	logger.Info("Server", "============================================================")
	logger.Info("Server", "Virtual Security Camera Server Started")
	logger.Info("Server", "============================================================")
	logger.Info("Server", "Camera source: %s", s.cfg.Camera.Source)
	logger.Info("Server", "Simulation mode: %v", s.camera.Simulated())
	for _, l := range s.listeners {
		scheme := "http"
		if l.name == "HTTPS" {
			scheme = "https"
		}
		logger.Info("Server", "%s Stream URL: %s://%s:%d/stream", l.name, scheme, s.cfg.Hostname, tcpPort(l.ln.Addr()))
	}
	if s.tlsActive {
		logger.Info("Server", "Using self-signed certificate - browser may show security warning")
		logger.Info("Server", "Certificate file: %s", s.cfg.CertFile)
		logger.Info("Server", "Private key file: %s", s.cfg.KeyFile)
	}
	logger.Info("Server", "============================================================")
}

func tcpPort(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
