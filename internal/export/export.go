// Package export turns a rendered surface into a PNG download. The binary
// path is tried first; if it is unsupported, yields nothing, errors or
// panics, the image is re-encoded as a base64 data URL and handed to the
// sink's Open instead.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/rook-computer/cornerbox/internal/settings"
)

const DataURLPrefix = "data:image/png;base64,"

var (
	// ErrUnsupported is returned by a sink or encoder that cannot serve a path.
	ErrUnsupported = errors.New("export path unsupported")
	ErrEmpty       = errors.New("encoder produced no data")
)

// Sink receives finished downloads.
type Sink interface {
	// Save stores PNG bytes under name.
	Save(ctx context.Context, name string, data []byte) error
	// Open presents a data URL so the user can save it by hand.
	Open(ctx context.Context, name string, dataURL string) error
}

// ExportError is returned when both paths failed.
type ExportError struct {
	Filename string
	Primary  error
	Fallback error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s failed: %v; fallback: %v", e.Filename, e.Primary, e.Fallback)
}

func (e *ExportError) Unwrap() []error { return []error{e.Primary, e.Fallback} }

type Method string

const (
	MethodBinary  Method = "binary"
	MethodDataURL Method = "data-url"
)

type Result struct {
	Filename string
	Method   Method
	// Size is the PNG size in bytes.
	Size int
	// PrimaryErr is why the binary path was abandoned, nil on success.
	PrimaryErr error
}

type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

// Exporter runs the two export paths against a Sink.
type Exporter struct {
	Sink Sink
	// Encode overrides the binary encoder; nil uses imaging's PNG encoder.
	Encode func(img image.Image) ([]byte, error)
	Logger Logger
}

func New(sink Sink, log Logger) *Exporter {
	return &Exporter{Sink: sink, Logger: log}
}

// Filename is the download name for an issue, clamped like the printed
// issue number.
func Filename(issue int) string {
	return fmt.Sprintf("cornerbox-issue-%d.png", settings.Settings{Issue: issue}.DisplayIssue())
}

// Export writes img as the download for issue.
func (e *Exporter) Export(ctx context.Context, img image.Image, issue int) (Result, error) {
	name := Filename(issue)
	if img == nil || img.Bounds().Empty() {
		return Result{}, &ExportError{Filename: name, Primary: ErrEmpty, Fallback: ErrEmpty}
	}

	size, primaryErr := e.binary(ctx, img, name)
	if primaryErr == nil {
		e.infof("saved %s (%d bytes)", name, size)
		return Result{Filename: name, Method: MethodBinary, Size: size}, nil
	}
	e.errorf("binary export of %s failed, trying data URL: %v", name, primaryErr)

	size, fallbackErr := e.dataURL(ctx, img, name)
	if fallbackErr == nil {
		e.infof("opened %s as data URL (%d bytes)", name, size)
		return Result{Filename: name, Method: MethodDataURL, Size: size, PrimaryErr: primaryErr}, nil
	}
	err := &ExportError{Filename: name, Primary: primaryErr, Fallback: fallbackErr}
	e.errorf("%v", err)
	return Result{Filename: name}, err
}

func (e *Exporter) binary(ctx context.Context, img image.Image, name string) (size int, err error) {
	defer recoverInto(&err)
	encode := e.Encode
	if encode == nil {
		encode = EncodePNG
	}
	data, err := encode(img)
	if err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	if len(data) == 0 {
		return 0, ErrEmpty
	}
	if err := e.Sink.Save(ctx, name, data); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	return len(data), nil
}

func (e *Exporter) dataURL(ctx context.Context, img image.Image, name string) (size int, err error) {
	defer recoverInto(&err)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encode: %w", err)
	}
	if buf.Len() == 0 {
		return 0, ErrEmpty
	}
	url := DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
	if err := e.Sink.Open(ctx, name, url); err != nil {
		return 0, fmt.Errorf("open: %w", err)
	}
	return buf.Len(), nil
}

// EncodePNG is the binary encoder.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeDataURL returns the PNG bytes of a data URL built by Export.
func DecodeDataURL(url string) ([]byte, error) {
	if len(url) < len(DataURLPrefix) || url[:len(DataURLPrefix)] != DataURLPrefix {
		return nil, fmt.Errorf("not a PNG data URL")
	}
	return base64.StdEncoding.DecodeString(url[len(DataURLPrefix):])
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("panic: %v", r)
	}
}

func (e *Exporter) infof(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Infof("export", format, args...)
	}
}

func (e *Exporter) errorf(format string, args ...interface{}) {
	if e.Logger != nil {
		e.Logger.Errorf("export", format, args...)
	}
}
