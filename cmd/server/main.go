package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"virtual-camera/internal/logger"
	"virtual-camera/internal/metrics"
	"virtual-camera/internal/server"
	"virtual-camera/pkg/types"
)

var (
	// Command-line flags
	httpsPort   = flag.Int("https-port", server.DefaultHTTPSPort, "Port for HTTPS server")
	httpPort    = flag.Int("http-port", server.DefaultHTTPPort, "Port for HTTP server")
	cameraSrc   = flag.String("camera", "0", "Camera source: device index, or path to a video/image file")
	simulation  = flag.Bool("simulation", false, "Run in simulation mode (generate synthetic frames)")
	httpsOnly   = flag.Bool("https-only", false, "Run only HTTPS server (disable HTTP)")
	httpOnly    = flag.Bool("http-only", false, "Run only HTTP server (disable HTTPS)")
	certFile    = flag.String("cert", server.DefaultCertFile, "Path to SSL certificate file (auto-generated if missing)")
	keyFile     = flag.String("key", server.DefaultKeyFile, "Path to SSL private key file (auto-generated if missing)")
	hostname    = flag.String("hostname", "localhost", "Hostname for the generated certificate")
	quality     = flag.Int("quality", 85, "JPEG quality (1-100)")
	metricsAddr = flag.String("metrics", "", "Metrics server address (e.g. :9090, disabled if empty)")
	authUser    = flag.String("auth-user", "", "Enable digest authentication with this username")
	authPass    = flag.String("auth-pass", "", "Password for digest authentication")
	verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error, silent)")
	logColor    = flag.Bool("log-color", true, "Enable colored log output")
)

func main() {
	flag.Parse()

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		level = logger.DEBUG
	}
	logger.Init(level, os.Stderr, *logColor)

	if *httpsOnly && *httpOnly {
		fmt.Fprintln(os.Stderr, "--https-only and --http-only are mutually exclusive")
		os.Exit(1)
	}

	cfg := server.DefaultConfig()
	cfg.HTTPSPort = *httpsPort
	cfg.HTTPPort = *httpPort
	cfg.UseHTTPS = !*httpOnly
	cfg.UseHTTP = !*httpsOnly
	cfg.CertFile = *certFile
	cfg.KeyFile = *keyFile
	cfg.Hostname = *hostname
	cfg.Quality = *quality
	cfg.AuthUser = *authUser
	cfg.AuthPass = *authPass
	cfg.Camera = types.CameraConfig{
		Source:     *cameraSrc,
		Simulation: *simulation,
		Width:      types.DefaultCameraConfig().Width,
		Height:     types.DefaultCameraConfig().Height,
		FPS:        types.DefaultCameraConfig().FPS,
	}

	m := metrics.New()
	if *metricsAddr != "" {
		go func() {
			logger.Info("Main", "Starting metrics server on %s", *metricsAddr)
			if err := m.StartServer(*metricsAddr); err != nil {
				logger.Error("Main", "Metrics server error: %v", err)
			}
		}()
	}

	srv := server.New(cfg, m)
	if err := srv.Start(context.Background()); err != nil {
		logger.Error("Main", "Failed to start server: %v", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() { done <- srv.Wait() }()

	select {
	case <-sigChan:
		logger.Info("Main", "Shutting down server(s)...")
		srv.Stop()
		if err := <-done; err != nil {
			logger.Error("Main", "Error during shutdown: %v", err)
			os.Exit(1)
		}
	case err := <-done:
		// Every listener died without a signal.
		srv.Stop()
		if err != nil {
			logger.Error("Main", "Server error: %v", err)
			os.Exit(1)
		}
	}

	logger.Info("Main", "All servers stopped")
}
