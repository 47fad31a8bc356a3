//go:build !linux

package render

import (
	"errors"
	"image"
)

var errNoFramebuffer = errors.New("framebuffer preview is only available on linux")

type Preview struct {
	Logger Logger
}

func OpenPreview(device string, log Logger) (*Preview, error) {
	return nil, errNoFramebuffer
}

func (p *Preview) Show(cover image.Image, qr image.Image) error { return errNoFramebuffer }

func (p *Preview) Close() error { return nil }
