// Package render paints a cover corner box into a Surface. Compose computes
// the geometry; Renderer turns a Plan into pixels with fogleman/gg for
// shapes and font.Drawer for text.
package render

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/rook-computer/cornerbox/internal/render/layout"
	"github.com/rook-computer/cornerbox/internal/settings"
)

// Renderer paints settings into a surface. It keeps no state between calls
// besides its font cache.
type Renderer struct {
	Fonts  *Fonts
	Logger Logger
	Debug  bool
}

func NewRenderer(fonts *Fonts, log Logger) *Renderer {
	return &Renderer{Fonts: fonts, Logger: log}
}

// Render waits for fonts, then clears the surface and repaints the whole
// cover. The returned Plan describes what was drawn.
func (r *Renderer) Render(ctx context.Context, s settings.Settings, surface *Surface) (Plan, error) {
	if surface == nil || surface.img == nil {
		return Plan{}, fmt.Errorf("render: %w", ErrInvalidSize)
	}
	if err := r.Fonts.Wait(ctx); err != nil {
		return Plan{}, fmt.Errorf("render: waiting for fonts: %w", err)
	}

	dc := surface.prepare()
	w, h := surface.Size()
	ratio := surface.Ratio()
	plan := Compose(s, w, h, scaledMeasurer{fonts: r.Fonts, ratio: ratio})

	dc.SetColor(color.Transparent)
	dc.Clear()

	dc.SetColor(plan.Background)
	drawRoundedRect(dc, plan.Card, plan.CardRadius)
	dc.Fill()

	r.paintAccent(dc, plan.Accent)

	if plan.Outline > 0 {
		dc.SetColor(plan.OutlineColor)
		dc.SetLineWidth(plan.Outline * ratio)
		drawRoundedRect(dc, plan.Card, plan.CardRadius)
		dc.Stroke()
	}

	img := surface.Image()
	r.drawText(img, plan.Title, ratio)
	r.drawText(img, plan.Publisher, ratio)

	r.paintLabelBox(dc, img, plan.Issue, ratio)
	r.paintLabelBox(dc, img, plan.Price, ratio)

	r.paintHead(dc, plan.Head, ratio)

	if r.Debug && r.Logger != nil {
		bw, bh := surface.BackingSize()
		r.Logger.Infof("render", "painted %s %q at %vpx into %dx%d", plan.Accent.Style, plan.Title.Text, plan.Title.Size, bw, bh)
	}
	return plan, nil
}

func drawRoundedRect(dc *gg.Context, rect layout.Rect, radius float64) {
	if radius > 0 {
		dc.DrawRoundedRectangle(rect.X, rect.Y, rect.W, rect.H, radius)
		return
	}
	dc.DrawRectangle(rect.X, rect.Y, rect.W, rect.H)
}

func (r *Renderer) paintAccent(dc *gg.Context, a Accent) {
	dc.SetColor(a.Color)
	switch a.Style {
	case settings.StyleSlanted:
		for i, pt := range a.Polygon {
			if i == 0 {
				dc.MoveTo(pt.X, pt.Y)
			} else {
				dc.LineTo(pt.X, pt.Y)
			}
		}
		dc.ClosePath()
	case settings.StyleCircle:
		dc.DrawCircle(a.Center.X, a.Center.Y, a.Radius)
	default:
		dc.DrawRectangle(a.Rect.X, a.Rect.Y, a.Rect.W, a.Rect.H)
	}
	dc.Fill()
}

func (r *Renderer) paintLabelBox(dc *gg.Context, img *image.RGBA, box LabelBox, ratio float64) {
	drawRoundedRect(dc, box.Rect, box.Radius)
	dc.SetColor(box.Fill)
	dc.FillPreserve()
	dc.SetColor(box.StrokeColor)
	dc.SetLineWidth(box.Stroke * ratio)
	dc.Stroke()
	r.drawText(img, box.Caption, ratio)
	r.drawText(img, box.Value, ratio)
}

func (r *Renderer) paintHead(dc *gg.Context, head Head, ratio float64) {
	dc.Push()
	dc.DrawCircle(head.Center.X, head.Center.Y, head.Radius)
	dc.Clip()

	sq := layout.SquareAround(head.Center, head.Radius)
	dc.SetColor(head.Placeholder)
	dc.DrawRectangle(sq.X, sq.Y, sq.W, sq.H)
	dc.Fill()

	if head.Image != nil && head.Placement.Scale > 0 {
		// Fill crops to the square before scaling, so the work is bounded
		// by the head size whatever the source aspect ratio.
		dst := layout.Device(sq, ratio)
		scaled := imaging.Fill(head.Image, dst.Dx(), dst.Dy(), imaging.Center, imaging.Lanczos)
		// the clip mask lives in device space, so draw untransformed
		dc.Identity()
		dc.DrawImage(scaled, dst.Min.X, dst.Min.Y)
	}
	dc.Pop()

	dc.SetColor(Ink)
	dc.SetLineWidth(head.Stroke * ratio)
	dc.DrawCircle(head.Center.X, head.Center.Y, head.Radius)
	dc.Stroke()
}

// drawText draws run directly at device resolution; gg would scale the
// glyph masks and blur them on high-density surfaces.
func (r *Renderer) drawText(img *image.RGBA, run TextRun, ratio float64) {
	if run.Text == "" {
		return
	}
	face := r.Fonts.Face(run.Kind, run.Size*ratio)
	ascent := face.Metrics().Ascent
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(run.Color),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.Int26_6(math.Round(run.X * ratio * 64)),
			Y: fixed.Int26_6(math.Round(run.Y*ratio*64)) + ascent,
		},
	}
	d.DrawString(run.Text)
}
