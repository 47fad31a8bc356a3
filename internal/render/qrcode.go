package render

import (
	"errors"
	"image"

	"github.com/skip2/go-qrcode"

	"github.com/rook-computer/cornerbox/internal/settings"
)

const defaultQRCodeSizePx = 256

var errEmptyPayload = errors.New("qr payload is empty")

// GenerateQRCodeImage returns a QR code image for payload.
func GenerateQRCodeImage(payload string, sizePx int) (image.Image, error) {
	if payload == "" {
		return nil, errEmptyPayload
	}
	if sizePx <= 0 {
		sizePx = defaultQRCodeSizePx
	}

	qrCode, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qrCode.Image(sizePx), nil
}

// ShareCode encodes the share link of s as a QR code image.
func ShareCode(s settings.Settings, sizePx int) (image.Image, error) {
	return GenerateQRCodeImage(settings.Link(s), sizePx)
}

// WriteShareCode writes the share code of s to path as PNG.
func WriteShareCode(path string, s settings.Settings, sizePx int) error {
	if sizePx <= 0 {
		sizePx = defaultQRCodeSizePx
	}
	return qrcode.WriteFile(settings.Link(s), qrcode.Medium, sizePx, path)
}
