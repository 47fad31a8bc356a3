package render

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"
)

var ErrInvalidSize = errors.New("surface size must be positive")

// Surface is the pixel buffer a cover is painted into. Drawing
// coordinates are display pixels; the backing buffer is display size
// times the device pixel ratio.
type Surface struct {
	width, height float64
	ratio         float64

	img *image.RGBA
	dc  *gg.Context
}

func NewSurface(width, height int, ratio float64) (*Surface, error) {
	s := &Surface{}
	if err := s.Resize(width, height, ratio); err != nil {
		return nil, err
	}
	return s, nil
}

// Resize reallocates the backing buffer for a new display size or pixel
// ratio. Contents are discarded.
func (s *Surface) Resize(width, height int, ratio float64) error {
	if width <= 0 || height <= 0 || !(ratio > 0) || math.IsInf(ratio, 0) {
		return fmt.Errorf("%w: %dx%d @%v", ErrInvalidSize, width, height, ratio)
	}
	bw := int(math.Round(float64(width) * ratio))
	bh := int(math.Round(float64(height) * ratio))
	if bw <= 0 || bh <= 0 {
		return fmt.Errorf("%w: backing %dx%d", ErrInvalidSize, bw, bh)
	}
	s.width, s.height, s.ratio = float64(width), float64(height), ratio
	s.img = image.NewRGBA(image.Rect(0, 0, bw, bh))
	s.dc = gg.NewContextForRGBA(s.img)
	return nil
}

// Size is the display size.
func (s *Surface) Size() (width, height float64) { return s.width, s.height }

func (s *Surface) Ratio() float64 { return s.ratio }

// BackingSize is the pixel size of Image.
func (s *Surface) BackingSize() (width, height int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Image returns the backing buffer. It is overwritten by the next render.
func (s *Surface) Image() *image.RGBA { return s.img }

// prepare resets the transform so one drawing unit is one display pixel
// and drops any clip left by a previous paint.
func (s *Surface) prepare() *gg.Context {
	s.dc.Identity()
	s.dc.ResetClip()
	s.dc.ClearPath()
	s.dc.Scale(s.ratio, s.ratio)
	return s.dc
}
