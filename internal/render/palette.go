package render

import "image/color"

// Fixed colors of the corner box; user colors come from settings.
var (
	Ink         = color.NRGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xFF} // #000000
	Paper       = color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF} // #ffffff
	Placeholder = color.NRGBA{R: 0xDD, G: 0xDD, B: 0xDD, A: 0xFF} // #dddddd

	// PreviewBackdrop fills the framebuffer around the previewed cover.
	PreviewBackdrop = color.RGBA{R: 0x20, G: 0x20, B: 0x24, A: 0xFF}
)

// Geometry of the composition, in display pixels.
const (
	cardInset  = 8
	cardRadius = 18

	accentMargin  = 24
	accentHeight  = 96
	circleOffset  = 96
	circleRadius  = 72
	slantDropTop  = 40  // right edge of the slanted panel starts this far below the left
	slantBottomL  = 180 // left bottom corner y
	slantBottomR  = 220 // right bottom corner y
	titleX        = 32
	titleYClassic = 36
	titleYOther   = 40
	titleMaxSize  = 64
	titleMinSize  = 28
	titleStep     = 2
	titleSideRoom = 48

	publisherSize  = 12
	publisherAlpha = 0.9

	boxWidth        = 120
	boxHeight       = 60
	boxRadius       = 10
	boxStroke       = 3
	boxSideMargin   = 32
	boxBottomMargin = 80
	boxPad          = 10
	captionSize     = 14
	issueValueSize  = 30
	issueValueTop   = 28
	priceValueSize  = 28
	priceValueTop   = 30

	headRadius     = 84
	headFromBottom = 112
	headStroke     = 8
)
