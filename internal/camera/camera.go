package camera

import (
	"errors"
	"sync"
	"time"

	"virtual-camera/internal/logger"
	"virtual-camera/pkg/types"
)

// ErrUnavailable reports that no frame could be produced for this tick.
// Callers must skip the tick and retry; it is never fatal.
var ErrUnavailable = errors.New("camera: frame unavailable")

// Camera is the single frame producer shared by every viewer
// connection. All access to the underlying capture or generator is
// serialized by an internal mutex, so concurrent Fetch calls never
// interleave a physical read.
type Camera struct {
	mu        sync.Mutex
	cfg       types.CameraConfig
	capture   Capture
	synth     *Synthetic
	simulated bool
	frameNum  uint64
	released  bool
	now       func() time.Time
}

// New constructs the camera from its configuration. If the configured
// source cannot be opened the camera falls back permanently to the
// synthetic generator; startup never fails on a missing device.
func New(cfg types.CameraConfig) *Camera {
	def := types.DefaultCameraConfig()
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = def.Height
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}

	c := &Camera{
		cfg:   cfg,
		synth: NewSynthetic(cfg.Width, cfg.Height),
		now:   time.Now,
	}

	if cfg.Simulation {
		c.simulated = true
		return c
	}

	cap, err := OpenCapture(cfg.Source)
	if err != nil {
		logger.Error("Camera", "Failed to open camera source %q: %v", cfg.Source, err)
		logger.Info("Camera", "Falling back to simulation mode")
		c.simulated = true
		return c
	}

	c.capture = cap
	logger.Info("Camera", "Camera initialized successfully: %s", cfg.Source)
	return c
}

// Fetch returns the next frame. A transient capture failure yields
// ErrUnavailable for that call only.
func (c *Camera) Fetch() (*types.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return nil, ErrUnavailable
	}

	if c.simulated {
		frame := c.synth.Generate(c.frameNum, c.now())
		c.frameNum++
		return frame, nil
	}

	img, err := c.capture.Read()
	if err != nil {
		logger.Warn("Camera", "Failed to read frame from camera: %v", err)
		return nil, ErrUnavailable
	}

	frame := &types.Frame{
		Image:     img,
		Timestamp: c.now(),
		FrameNum:  c.frameNum,
	}
	c.frameNum++
	return frame, nil
}

// Simulated reports whether frames come from the synthetic generator,
// either by configuration or after a device open failure.
func (c *Camera) Simulated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simulated
}

// Source returns the configured source identifier.
func (c *Camera) Source() string {
	return c.cfg.Source
}

// Release closes the underlying capture. Safe to call multiple times,
// or never, if no capture was opened.
func (c *Camera) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return
	}
	c.released = true

	if c.capture != nil {
		if err := c.capture.Close(); err != nil {
			logger.Warn("Camera", "Error releasing camera: %v", err)
			return
		}
		logger.Info("Camera", "Camera resources released")
	}
}
