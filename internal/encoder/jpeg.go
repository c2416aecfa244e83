// Package encoder compresses raw frames into transmittable JPEG
// payloads at a fixed quality.
package encoder

import (
	"bytes"
	"errors"
	"image/jpeg"

	"virtual-camera/pkg/types"
)

// DefaultQuality matches the stream's configured JPEG quality.
const DefaultQuality = 85

// ErrEmptyFrame reports a frame with no pixel data. The caller must
// skip the frame rather than emit a malformed part.
var ErrEmptyFrame = errors.New("encoder: empty frame")

// Encoder compresses frames at a fixed quality on a 0-100 scale.
type Encoder struct {
	Quality int
}

// New returns an encoder at the given quality, clamped to [1, 100].
func New(quality int) *Encoder {
	if quality < 1 || quality > 100 {
		quality = DefaultQuality
	}
	return &Encoder{Quality: quality}
}

// Encode compresses the frame to JPEG bytes.
func (e *Encoder) Encode(frame *types.Frame) ([]byte, error) {
	if frame == nil || frame.Image == nil || frame.Width() == 0 || frame.Height() == 0 {
		return nil, ErrEmptyFrame
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
