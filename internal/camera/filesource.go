package camera

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	_ "image/png"
	"os"
)

// JPEG start-of-image and end-of-image markers.
var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// mjpegFileCapture replays a raw MJPEG file (concatenated JPEG images)
// in a loop, one image per Read.
type mjpegFileCapture struct {
	data   []byte
	frames [][2]int // [start, end) offsets into data
	next   int
	closed bool
}

func openMJPEGFile(path string) (*mjpegFileCapture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mjpeg file: %w", err)
	}

	var frames [][2]int
	for off := 0; off < len(data); {
		start := bytes.Index(data[off:], jpegSOI)
		if start < 0 {
			break
		}
		start += off
		end := bytes.Index(data[start:], jpegEOI)
		if end < 0 {
			break
		}
		end += start + len(jpegEOI)
		frames = append(frames, [2]int{start, end})
		off = end
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("no JPEG images found in %s", path)
	}

	return &mjpegFileCapture{data: data, frames: frames}, nil
}

func (c *mjpegFileCapture) Read() (*image.RGBA, error) {
	if c.closed {
		return nil, fmt.Errorf("capture closed")
	}

	span := c.frames[c.next]
	c.next = (c.next + 1) % len(c.frames)

	img, err := jpeg.Decode(bytes.NewReader(c.data[span[0]:span[1]]))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	return toRGBA(img), nil
}

func (c *mjpegFileCapture) Close() error {
	c.closed = true
	c.data = nil
	c.frames = nil
	return nil
}

// stillCapture serves a single decoded image on every Read, turning a
// static picture into an endless stream.
type stillCapture struct {
	img    *image.RGBA
	closed bool
}

func openStillImage(path string) (*stillCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return &stillCapture{img: toRGBA(img)}, nil
}

func (c *stillCapture) Read() (*image.RGBA, error) {
	if c.closed {
		return nil, fmt.Errorf("capture closed")
	}
	return c.img, nil
}

func (c *stillCapture) Close() error {
	c.closed = true
	c.img = nil
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(img.Bounds())
	draw.Draw(out, out.Rect, img, img.Bounds().Min, draw.Src)
	return out
}
