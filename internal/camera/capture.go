package camera

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Capture is the external collaborator that pulls raw images from a
// real source. Implementations hold an exclusive handle on the source
// for their lifetime.
type Capture interface {
	// Read pulls the next image, or fails transiently.
	Read() (*image.RGBA, error)
	Close() error
}

// OpenCapture opens the configured source. Numeric identifiers name a
// hardware device, which has no portable pure-Go backend; they fail
// here so the camera takes its synthetic fallback. File paths are
// served by the looping file captures.
func OpenCapture(source string) (Capture, error) {
	if _, err := strconv.Atoi(source); err == nil {
		return nil, fmt.Errorf("no capture backend for device index %s", source)
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("open camera source: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("camera source %s is a directory", source)
	}

	switch strings.ToLower(filepath.Ext(source)) {
	case ".mjpeg", ".mjpg":
		return openMJPEGFile(source)
	case ".jpg", ".jpeg", ".png":
		return openStillImage(source)
	default:
		return nil, fmt.Errorf("unsupported camera source format: %s", source)
	}
}
