package types

import (
	"image"
	"time"
)

// Frame is a single raster image pulled from the camera. It is a
// read-only snapshot: the producer hands it off and never touches it
// again, and consumers must not mutate the pixel data.
type Frame struct {
	Image     *image.RGBA // Raw pixel data (RGBA, stride = 4*width)
	Timestamp time.Time   // Capture timestamp
	FrameNum  uint64      // Sequential frame number
	Synthetic bool        // True if generated rather than captured
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dx()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	if f == nil || f.Image == nil {
		return 0
	}
	return f.Image.Rect.Dy()
}

// CameraConfig selects and tunes the frame source. It is built once at
// startup and never mutated.
type CameraConfig struct {
	Source     string // Device index ("0") or path to a video/image file
	Simulation bool   // Force the synthetic generator
	Width      int    // Target frame width hint
	Height     int    // Target frame height hint
	FPS        int    // Target frame rate hint
}

// DefaultCameraConfig returns the tuning the server applies when the
// caller leaves the hints zero: 640x480 at 30fps.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Source: "0",
		Width:  640,
		Height: 480,
		FPS:    30,
	}
}
