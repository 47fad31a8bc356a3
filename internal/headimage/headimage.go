// Package headimage decodes character portraits from files, URLs or
// readers.
package headimage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/disintegration/imaging"
	"github.com/hashicorp/go-retryablehttp"
	_ "golang.org/x/image/webp"
)

var (
	// ErrNotAccepted is wrapped when a local path does not match the
	// accepted image pattern.
	ErrNotAccepted = errors.New("not an accepted image file")
	ErrEmptyImage  = errors.New("image has no pixels")
	// ErrTooLarge is wrapped when the image header declares more pixels
	// than the loader allows.
	ErrTooLarge = errors.New("image dimensions too large")
)

// DefaultMaxPixels caps decoded images at 50 megapixels.
const DefaultMaxPixels = 50_000_000

// DecodeError reports a source that could not be turned into an image.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode head image %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode reads one image of at most DefaultMaxPixels from r, applying EXIF
// orientation. PNG, JPEG, GIF, BMP, TIFF and WebP are understood.
func Decode(r io.Reader, source string) (image.Image, error) {
	return DecodeLimited(r, source, DefaultMaxPixels)
}

// DecodeLimited is Decode with a pixel cap. The header is checked before
// any pixel buffer is allocated.
func DecodeLimited(r io.Reader, source string, maxPixels int64) (image.Image, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, &DecodeError{Source: source, Err: fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxPixels)}
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Source: source, Err: err}
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, &DecodeError{Source: source, Err: ErrEmptyImage}
	}
	return img, nil
}

type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

type Options struct {
	// Accept is a doublestar pattern local paths must match.
	Accept   string
	Timeout  time.Duration
	RetryMax int
	// MaxBytes caps downloaded images.
	MaxBytes int64
	// MaxPixels caps width*height; zero means DefaultMaxPixels.
	MaxPixels int64
}

const defaultMaxBytes = 32 << 20

// Loader resolves head image sources: local paths and http(s) URLs.
type Loader struct {
	accept    string
	maxBytes  int64
	maxPixels int64
	client    *retryablehttp.Client
	Logger    Logger
}

func NewLoader(opts Options) *Loader {
	client := retryablehttp.NewClient()
	client.RetryMax = opts.RetryMax
	if opts.Timeout > 0 {
		client.HTTPClient.Timeout = opts.Timeout
	}
	client.Logger = nil
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	if opts.MaxPixels <= 0 {
		opts.MaxPixels = DefaultMaxPixels
	}
	return &Loader{accept: opts.Accept, maxBytes: opts.MaxBytes, maxPixels: opts.MaxPixels, client: client}
}

// Load decodes source. Every failure is a *DecodeError.
func (l *Loader) Load(ctx context.Context, source string) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	if isURL(source) {
		img, err = l.fetch(ctx, source)
	} else {
		img, err = l.open(source)
	}
	if err != nil {
		if l.Logger != nil {
			l.Logger.Errorf("head", "%v", err)
		}
		return nil, err
	}
	if l.Logger != nil {
		b := img.Bounds()
		l.Logger.Infof("head", "decoded %s (%dx%d)", source, b.Dx(), b.Dy())
	}
	return img, nil
}

// Result is the outcome of an asynchronous load.
type Result struct {
	Source string
	Image  image.Image
	Err    error
}

// LoadAsync runs Load in the background. The channel receives exactly one
// Result and is then closed.
func (l *Loader) LoadAsync(ctx context.Context, source string) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		img, err := l.Load(ctx, source)
		out <- Result{Source: source, Image: img, Err: err}
	}()
	return out
}

// Accepts reports whether path matches the accepted pattern.
func (l *Loader) Accepts(path string) bool {
	if l.accept == "" {
		return true
	}
	name := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(path)), "/")
	ok, err := doublestar.Match(l.accept, name)
	return err == nil && ok
}

func (l *Loader) open(path string) (image.Image, error) {
	if !l.Accepts(path) {
		return nil, &DecodeError{Source: path, Err: fmt.Errorf("%w: %q", ErrNotAccepted, l.accept)}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	defer f.Close()
	return DecodeLimited(f, path, l.maxPixels)
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DecodeError{Source: url, Err: err}
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &DecodeError{Source: url, Err: fmt.Errorf("GET: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &DecodeError{Source: url, Err: fmt.Errorf("GET: status %d", resp.StatusCode)}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, &DecodeError{Source: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if int64(len(body)) > l.maxBytes {
		return nil, &DecodeError{Source: url, Err: fmt.Errorf("body exceeds %d bytes", l.maxBytes)}
	}
	return DecodeLimited(bytes.NewReader(body), url, l.maxPixels)
}

func isURL(source string) bool {
	s := strings.ToLower(source)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
