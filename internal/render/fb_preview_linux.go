package render

import (
	"fmt"
	"image"
	"image/color"

	fb "github.com/gonutz/framebuffer"
)

// Preview shows rendered covers on a Linux framebuffer device, with an
// optional QR code panel on the right.
type Preview struct {
	dev    *fb.Device
	frame  *image.RGBA
	Logger Logger
}

func OpenPreview(device string, log Logger) (*Preview, error) {
	dev, err := fb.Open(device)
	if err != nil {
		return nil, fmt.Errorf("open framebuffer %s: %w", device, err)
	}
	bounds := dev.Bounds()
	if log != nil {
		log.Infof("fb", "framebuffer open, bounds=%dx%d", bounds.Dx(), bounds.Dy())
	}
	return &Preview{
		dev:    dev,
		frame:  image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy())),
		Logger: log,
	}, nil
}

// Show letterboxes cover onto the framebuffer. When qr is non-nil the
// right third of the screen is given to it.
func (p *Preview) Show(cover image.Image, qr image.Image) error {
	if p == nil || p.dev == nil {
		return nil
	}
	ComposePreview(p.frame, cover, qr)
	blitToFB(p.dev, p.frame)
	if p.Logger != nil {
		p.Logger.Infof("fb", "preview updated")
	}
	return nil
}

func (p *Preview) Close() error {
	if p == nil || p.dev == nil {
		return nil
	}
	p.dev.Close()
	p.dev = nil
	return nil
}

func blitToFB(dev *fb.Device, frame *image.RGBA) {
	bounds := dev.Bounds()
	for y := 0; y < bounds.Dy() && y < frame.Rect.Dy(); y++ {
		for x := 0; x < bounds.Dx() && x < frame.Rect.Dx(); x++ {
			px := frame.RGBAAt(x, y)
			dev.Set(bounds.Min.X+x, bounds.Min.Y+y, color.RGBA{R: px.R, G: px.G, B: px.B, A: 0xFF})
		}
	}
}
