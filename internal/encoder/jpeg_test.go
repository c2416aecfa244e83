package encoder

import (
	"bytes"
	"errors"
	"image"
	"testing"
	"time"

	"virtual-camera/pkg/types"
)

func testFrame() *types.Frame {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return &types.Frame{Image: img, Timestamp: time.Unix(0, 0)}
}

func TestEncodeProducesJPEG(t *testing.T) {
	data, err := New(85).Encode(testFrame())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.HasPrefix(data, []byte{0xFF, 0xD8}) {
		t.Fatalf("output missing JPEG SOI marker: % x", data[:2])
	}
	if !bytes.HasSuffix(data, []byte{0xFF, 0xD9}) {
		t.Fatal("output missing JPEG EOI marker")
	}
}

func TestEncodeRejectsEmptyFrames(t *testing.T) {
	enc := New(85)

	cases := []struct {
		name  string
		frame *types.Frame
	}{
		{"nil frame", nil},
		{"nil image", &types.Frame{}},
		{"zero size", &types.Frame{Image: image.NewRGBA(image.Rect(0, 0, 0, 0))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := enc.Encode(tc.frame); !errors.Is(err, ErrEmptyFrame) {
				t.Fatalf("err = %v, want ErrEmptyFrame", err)
			}
		})
	}
}

func TestNewClampsQuality(t *testing.T) {
	if q := New(0).Quality; q != DefaultQuality {
		t.Fatalf("quality 0 clamped to %d, want %d", q, DefaultQuality)
	}
	if q := New(101).Quality; q != DefaultQuality {
		t.Fatalf("quality 101 clamped to %d, want %d", q, DefaultQuality)
	}
	if q := New(70).Quality; q != 70 {
		t.Fatalf("quality 70 changed to %d", q)
	}
}
