package render

import (
	"image"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/rook-computer/cornerbox/internal/render/layout"
)

const previewPad = 16

// ComposePreview paints the preview screen into frame: the cover
// letterboxed on the backdrop and, when qr is given, the QR code in a
// right-hand panel a third of the width.
func ComposePreview(frame *image.RGBA, cover image.Image, qr image.Image) {
	bounds := frame.Bounds()
	draw.Draw(frame, bounds, &image.Uniform{C: PreviewBackdrop}, image.Point{}, draw.Src)

	coverArea := bounds
	if qr != nil {
		var qrArea image.Rectangle
		coverArea, qrArea = layout.SplitVertical(bounds, bounds.Dx()*2/3)
		placeScaled(frame, qrArea.Inset(previewPad), qr, xdraw.NearestNeighbor)
	}
	if cover != nil {
		placeScaled(frame, coverArea.Inset(previewPad), cover, xdraw.ApproxBiLinear)
	}
}

func placeScaled(dst *image.RGBA, area image.Rectangle, src image.Image, scaler xdraw.Scaler) {
	sb := src.Bounds()
	target := layout.Fit(area, sb.Dx(), sb.Dy())
	if target.Empty() {
		return
	}
	scaler.Scale(dst, target, src, sb, xdraw.Over, nil)
}
