package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"virtual-camera/pkg/types"
)

// testConfig returns a simulation-mode config with both listeners on
// ephemeral ports and certificates under a per-test directory.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.HTTPSPort = 0
	cfg.HTTPPort = 0
	cfg.CertFile = filepath.Join(t.TempDir(), "server.crt")
	cfg.KeyFile = filepath.Join(filepath.Dir(cfg.CertFile), "server.key")
	cfg.Camera = types.CameraConfig{Simulation: true, Width: 160, Height: 120}
	cfg.Interval = 5 * time.Millisecond
	return cfg
}

func startServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	srv := New(cfg, nil)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

// readOnePart checks the stream preamble and consumes a single frame.
func readOnePart(t *testing.T, resp *http.Response) {
	t.Helper()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("Content-Type = %q", ct)
	}

	br := bufio.NewReader(resp.Body)
	line, err := br.ReadString('\n')
	if err != nil {
		t.Fatalf("read boundary: %v", err)
	}
	if !strings.HasPrefix(line, "--frame") {
		t.Fatalf("boundary line = %q", line)
	}
	for {
		header, err := br.ReadString('\n')
		if err != nil {
			t.Fatalf("read part header: %v", err)
		}
		if header == "\r\n" {
			break
		}
	}
	buf := make([]byte, 2)
	if _, err := io.ReadFull(br, buf); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if buf[0] != 0xFF || buf[1] != 0xD8 {
		t.Fatal("part body is not a JPEG")
	}
}

func TestServerHTTPOnly(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTPS = false
	srv := startServer(t, cfg)

	if srv.TLSActive() {
		t.Error("TLS reported active without an HTTPS listener")
	}
	if srv.Addr("HTTPS") != nil {
		t.Error("HTTPS listener bound despite being disabled")
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/stream", tcpPort(srv.Addr("HTTP")))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	readOnePart(t, resp)
	resp.Body.Close()
}

func TestServerProvisionsTLS(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTP = false
	srv := startServer(t, cfg)

	if !srv.TLSActive() {
		t.Fatal("TLS listener did not come up")
	}
	if _, err := os.Stat(cfg.CertFile); err != nil {
		t.Fatalf("certificate not written: %v", err)
	}
	if _, err := os.Stat(cfg.KeyFile); err != nil {
		t.Fatalf("key not written: %v", err)
	}

	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}}
	url := fmt.Sprintf("https://127.0.0.1:%d/stream", tcpPort(srv.Addr("HTTPS")))
	resp, err := client.Get(url)
	if err != nil {
		t.Fatalf("get stream over TLS: %v", err)
	}
	readOnePart(t, resp)
	resp.Body.Close()
}

func TestServerDegradesWithoutCertificates(t *testing.T) {
	cfg := testConfig(t)
	// A regular file where the certificate directory should go makes
	// provisioning fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.CertFile = filepath.Join(blocker, "server.crt")
	cfg.KeyFile = filepath.Join(blocker, "server.key")

	srv := startServer(t, cfg)
	if srv.TLSActive() {
		t.Error("TLS active despite provisioning failure")
	}
	if srv.Addr("HTTP") == nil {
		t.Fatal("HTTP listener missing after TLS degradation")
	}

	url := fmt.Sprintf("http://127.0.0.1:%d/", tcpPort(srv.Addr("HTTP")))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get index: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestServerRejectsNoListeners(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTP = false
	cfg.UseHTTPS = false

	srv := New(cfg, nil)
	if err := srv.Start(context.Background()); !errors.Is(err, ErrNoListeners) {
		t.Fatalf("start = %v, want ErrNoListeners", err)
	}
}

func TestServerFailsWhenPortOccupied(t *testing.T) {
	blockerLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer blockerLn.Close()

	cfg := testConfig(t)
	cfg.UseHTTPS = false
	cfg.HTTPPort = blockerLn.Addr().(*net.TCPAddr).Port

	srv := New(cfg, nil)
	err = srv.Start(context.Background())
	if !errors.Is(err, ErrNoListeners) {
		srv.Stop()
		t.Fatalf("start = %v, want ErrNoListeners", err)
	}
}

func TestServerStopIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTPS = false
	srv := startServer(t, cfg)

	srv.Stop()
	srv.Stop()
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait after stop: %v", err)
	}
}

func TestServerStopTerminatesActiveStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTPS = false
	srv := startServer(t, cfg)

	url := fmt.Sprintf("http://127.0.0.1:%d/stream", tcpPort(srv.Addr("HTTP")))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()
	readOnePart(t, resp)

	done := make(chan error, 1)
	go func() {
		_, err := io.Copy(io.Discard, resp.Body)
		done <- err
	}()

	srv.Stop()

	select {
	case <-done:
		// Any outcome, clean EOF or reset, means the stream ended.
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not terminate on server stop")
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestServerDigestGatesStream(t *testing.T) {
	cfg := testConfig(t)
	cfg.UseHTTPS = false
	cfg.AuthUser = "viewer"
	cfg.AuthPass = "secret"
	srv := startServer(t, cfg)

	url := fmt.Sprintf("http://127.0.0.1:%d/stream", tcpPort(srv.Addr("HTTP")))
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get stream: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if ch := resp.Header.Get("WWW-Authenticate"); !strings.HasPrefix(ch, "Digest ") {
		t.Fatalf("WWW-Authenticate = %q", ch)
	}
}
