package camera

import (
	"image"
	"image/color"
	"math"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"virtual-camera/pkg/types"
)

// Synthetic generates procedural frames for simulation mode: a gradient
// background, a wall-clock timestamp, an orbiting marker driven by the
// frame counter, and overlay captions. Output is a pure function of
// (counter, instant) so it is reproducible in tests.
type Synthetic struct {
	width  int
	height int
}

// NewSynthetic returns a generator producing width x height frames.
func NewSynthetic(width, height int) *Synthetic {
	return &Synthetic{width: width, height: height}
}

// Marker orbit amplitudes, relative to the frame center.
const (
	orbitRadiusX = 200
	orbitRadiusY = 100
	markerRadius = 20
)

// Generate renders the frame for the given counter and instant.
func (s *Synthetic) Generate(counter uint64, at time.Time) *types.Frame {
	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))

	// Gradient background: green rises with x, blue with y.
	for y := 0; y < s.height; y++ {
		g := uint8(0)
		b := uint8(50 + y*50/s.height)
		for x := 0; x < s.width; x++ {
			g = uint8(50 + x*50/s.width)
			i := img.PixOffset(x, y)
			img.Pix[i+0] = 100
			img.Pix[i+1] = g
			img.Pix[i+2] = b
			img.Pix[i+3] = 255
		}
	}

	// Orbiting marker, sinusoidal in the frame counter.
	cx := s.width/2 + int(orbitRadiusX*math.Sin(float64(counter)*0.05))
	cy := s.height/2 + int(orbitRadiusY*math.Cos(float64(counter)*0.03))
	fillCircle(img, cx, cy, markerRadius, color.RGBA{G: 255, A: 255})

	drawText(img, 10, 30, at.Format("2006-01-02 15:04:05"), color.RGBA{R: 255, G: 255, B: 255, A: 255})
	drawText(img, 10, s.height-60, "SIMULATION MODE", color.RGBA{G: 255, B: 255, A: 255})
	drawText(img, 10, s.height-30, "VIRTUAL SECURITY CAMERA", color.RGBA{R: 255, G: 255, A: 255})

	return &types.Frame{
		Image:     img,
		Timestamp: at,
		FrameNum:  counter,
		Synthetic: true,
	}
}

func fillCircle(img *image.RGBA, cx, cy, r int, c color.RGBA) {
	bounds := img.Rect
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy > r*r {
				continue
			}
			x, y := cx+dx, cy+dy
			if (image.Point{X: x, Y: y}).In(bounds) {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
