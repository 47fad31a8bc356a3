package layout

import (
	"image"
	"math"
)

// Point is a position in display pixels.
type Point struct {
	X, Y float64
}

// Rect is an axis-aligned box in display pixels.
type Rect struct {
	X, Y, W, H float64
}

// Canvas returns the rectangle covering a width x height surface.
func Canvas(width, height float64) Rect {
	return Rect{W: width, H: height}
}

// Normalize ensures W and H are non-negative, keeping the covered area.
func Normalize(r Rect) Rect {
	if r.W < 0 {
		r.X, r.W = r.X+r.W, -r.W
	}
	if r.H < 0 {
		r.Y, r.H = r.Y+r.H, -r.H
	}
	return r
}

// Inset shrinks r by padding on all sides.
func Inset(r Rect, padding float64) Rect {
	if padding <= 0 {
		return r
	}
	return Normalize(Rect{X: r.X + padding, Y: r.Y + padding, W: r.W - 2*padding, H: r.H - 2*padding})
}

// TopBand returns a band of height h inset by margin from the top and sides of r.
func TopBand(r Rect, margin, h float64) Rect {
	return Normalize(Rect{X: r.X + margin, Y: r.Y + margin, W: r.W - 2*margin, H: h})
}

// AnchorBottomLeft places a w x h box marginX from the left edge and
// marginBottom above the bottom edge of r.
func AnchorBottomLeft(r Rect, marginX, marginBottom, w, h float64) Rect {
	return Rect{X: r.X + marginX, Y: r.Y + r.H - marginBottom - h, W: w, H: h}
}

// AnchorBottomRight mirrors AnchorBottomLeft against the right edge.
func AnchorBottomRight(r Rect, marginX, marginBottom, w, h float64) Rect {
	return Rect{X: r.X + r.W - marginX - w, Y: r.Y + r.H - marginBottom - h, W: w, H: h}
}

// SquareAround is the bounding square of a circle.
func SquareAround(center Point, radius float64) Rect {
	return Rect{X: center.X - radius, Y: center.Y - radius, W: 2 * radius, H: 2 * radius}
}

// CornerRadius limits radius so opposite corners of r never overlap.
func CornerRadius(r Rect, radius float64) float64 {
	r = Normalize(r)
	return math.Max(0, math.Min(radius, math.Min(r.W/2, r.H/2)))
}

// Device converts r to whole device pixels at the given scale.
func Device(r Rect, scale float64) image.Rectangle {
	r = Normalize(r)
	x0 := int(math.Round(r.X * scale))
	y0 := int(math.Round(r.Y * scale))
	x1 := int(math.Round((r.X + r.W) * scale))
	y1 := int(math.Round((r.Y + r.H) * scale))
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	return image.Rect(x0, y0, x1, y1)
}

// Fit scales a w x h box uniformly to fit inside bounds, centered.
func Fit(bounds image.Rectangle, w, h int) image.Rectangle {
	if w <= 0 || h <= 0 || bounds.Empty() {
		return image.Rectangle{Min: bounds.Min, Max: bounds.Min}
	}
	scale := math.Min(float64(bounds.Dx())/float64(w), float64(bounds.Dy())/float64(h))
	sw := int(float64(w) * scale)
	sh := int(float64(h) * scale)
	x := bounds.Min.X + (bounds.Dx()-sw)/2
	y := bounds.Min.Y + (bounds.Dy()-sh)/2
	return image.Rect(x, y, x+sw, y+sh)
}

// SplitVertical splits r into left and right parts.
// leftWidth is clamped to [0, r.Dx()].
func SplitVertical(r image.Rectangle, leftWidth int) (left, right image.Rectangle) {
	r = r.Canon()
	if leftWidth < 0 {
		leftWidth = 0
	}
	if leftWidth > r.Dx() {
		leftWidth = r.Dx()
	}
	left = image.Rect(r.Min.X, r.Min.Y, r.Min.X+leftWidth, r.Max.Y)
	right = image.Rect(r.Min.X+leftWidth, r.Min.Y, r.Max.X, r.Max.Y)
	return left, right
}
