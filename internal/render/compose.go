package render

import (
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/rook-computer/cornerbox/internal/render/layout"
	"github.com/rook-computer/cornerbox/internal/settings"
)

// Measurer reports the advance width of text, in display pixels.
type Measurer interface {
	MeasureText(text string, kind FontKind, px float64) float64
}

// TextRun is one line of text anchored at the top-left of its em box.
type TextRun struct {
	Text  string
	Kind  FontKind
	Size  float64
	X, Y  float64
	Color color.NRGBA
}

// LabelBox is the white caption box used for the issue and price.
type LabelBox struct {
	Rect        layout.Rect
	Radius      float64
	Stroke      float64
	Fill        color.NRGBA
	StrokeColor color.NRGBA
	Caption     TextRun
	Value       TextRun
}

// Accent is the style-dependent panel. Only the fields of its Style are set.
type Accent struct {
	Style settings.Style
	Color color.NRGBA

	Rect    layout.Rect    // classic
	Polygon []layout.Point // slanted
	Center  layout.Point   // circle
	Radius  float64        // circle
}

// Placement is where a head image lands: scaled by Scale to W x H with its
// top-left corner at X, Y.
type Placement struct {
	Scale      float64
	X, Y, W, H float64
}

type Head struct {
	Center      layout.Point
	Radius      float64
	Stroke      float64
	Placeholder color.NRGBA
	Image       image.Image
	Placement   Placement
}

// Plan is the complete geometry of one cover, in display pixels.
type Plan struct {
	Width, Height float64

	Card       layout.Rect
	CardRadius float64
	Background color.NRGBA

	Accent Accent

	// Outline is the clamped card stroke width; zero means no stroke.
	Outline      float64
	OutlineColor color.NRGBA

	Title     TextRun
	Publisher TextRun
	Issue     LabelBox
	Price     LabelBox
	Head      Head
}

// Compose lays out s on a width x height surface. It performs no drawing.
func Compose(s settings.Settings, width, height float64, m Measurer) Plan {
	canvas := layout.Canvas(width, height)
	style := s.Style.Normalize()
	textColor := settings.MustColor(s.TextColor, Ink)

	p := Plan{
		Width:        width,
		Height:       height,
		Card:         layout.Inset(canvas, cardInset),
		Background:   settings.MustColor(s.BG, Paper),
		Outline:      s.OutlineWidth(),
		OutlineColor: Ink,
	}
	p.CardRadius = layout.CornerRadius(p.Card, cardRadius)
	p.Accent = composeAccent(style, settings.MustColor(s.Accent, Paper), width)

	title := strings.ToUpper(s.Title)
	titleTop := float64(titleYOther)
	if style == settings.StyleClassic {
		titleTop = titleYClassic
	}
	p.Title = TextRun{
		Text:  title,
		Kind:  FontTitle,
		Size:  FitTitleSize(title, width-titleSideRoom, m),
		X:     titleX,
		Y:     titleTop,
		Color: textColor,
	}

	pubColor := textColor
	pubColor.A = uint8(math.Round(publisherAlpha * 255))
	p.Publisher = TextRun{
		Text:  s.Publisher,
		Kind:  FontBody,
		Size:  publisherSize,
		X:     titleX,
		Y:     accentMargin + accentHeight + 8,
		Color: pubColor,
	}

	issueRect := layout.AnchorBottomLeft(canvas, boxSideMargin, boxBottomMargin, boxWidth, boxHeight)
	p.Issue = labelBox(issueRect, "ISSUE", strconv.Itoa(s.DisplayIssue()), issueValueSize, issueValueTop)
	priceRect := layout.AnchorBottomRight(canvas, boxSideMargin, boxBottomMargin, boxWidth, boxHeight)
	p.Price = labelBox(priceRect, "PRICE", s.Price, priceValueSize, priceValueTop)

	center := layout.Point{X: width / 2, Y: height - headFromBottom}
	p.Head = Head{
		Center:      center,
		Radius:      headRadius,
		Stroke:      headStroke,
		Placeholder: Placeholder,
		Image:       s.Head,
	}
	if s.Head != nil {
		b := s.Head.Bounds()
		p.Head.Placement = CoverFit(float64(b.Dx()), float64(b.Dy()), 2*headRadius, center)
	}
	return p
}

func composeAccent(style settings.Style, c color.NRGBA, width float64) Accent {
	a := Accent{Style: style, Color: c}
	switch style {
	case settings.StyleSlanted:
		left, right := float64(accentMargin), width-accentMargin
		a.Polygon = []layout.Point{
			{X: left, Y: accentMargin},
			{X: right, Y: accentMargin + slantDropTop},
			{X: right, Y: slantBottomR},
			{X: left, Y: slantBottomL},
		}
	case settings.StyleCircle:
		a.Center = layout.Point{X: width - circleOffset, Y: circleOffset}
		a.Radius = circleRadius
	default:
		a.Rect = layout.TopBand(layout.Canvas(width, 0), accentMargin, accentHeight)
	}
	return a
}

func labelBox(r layout.Rect, caption, value string, valueSize, valueTop float64) LabelBox {
	return LabelBox{
		Rect:        r,
		Radius:      layout.CornerRadius(r, boxRadius),
		Stroke:      boxStroke,
		Fill:        Paper,
		StrokeColor: Ink,
		Caption:     TextRun{Text: caption, Kind: FontBold, Size: captionSize, X: r.X + boxPad, Y: r.Y + boxPad, Color: Ink},
		Value:       TextRun{Text: value, Kind: FontBold, Size: valueSize, X: r.X + boxPad, Y: r.Y + valueTop, Color: Ink},
	}
}

// FitTitleSize shrinks the title from 64px in 2px steps until it fits
// maxWidth or reaches 28px. An empty title keeps the starting size.
func FitTitleSize(title string, maxWidth float64, m Measurer) float64 {
	size := float64(titleMaxSize)
	if title == "" || m == nil {
		return size
	}
	for size > titleMinSize && m.MeasureText(title, FontTitle, size) > maxWidth {
		size -= titleStep
	}
	return size
}

// CoverFit scales a w x h image uniformly so it covers a square of side
// diameter centered on center. Only the part over the square is drawn.
func CoverFit(w, h, diameter float64, center layout.Point) Placement {
	if w <= 0 || h <= 0 {
		return Placement{}
	}
	scale := math.Max(diameter/w, diameter/h)
	dw, dh := w*scale, h*scale
	return Placement{
		Scale: scale,
		X:     center.X - dw/2,
		Y:     center.Y - dh/2,
		W:     dw,
		H:     dh,
	}
}
