package render

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontKind selects one of the three faces a cover uses.
type FontKind int

const (
	FontTitle FontKind = iota
	FontBody
	FontBold
	fontKinds
)

func (k FontKind) String() string {
	switch k {
	case FontTitle:
		return "title"
	case FontBody:
		return "body"
	case FontBold:
		return "bold"
	default:
		return fmt.Sprintf("FontKind(%d)", int(k))
	}
}

// FontPaths overrides the built-in Go fonts. Empty entries keep the default.
type FontPaths struct {
	Title, Body, Bold string
}

// Logger is the component-scoped logging interface used across cornerbox.
type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

type fontFile interface {
	face(px float64) (font.Face, error)
}

type ttFile struct{ f *truetype.Font }

func (t ttFile) face(px float64) (font.Face, error) {
	return truetype.NewFace(t.f, &truetype.Options{Size: px, DPI: 72, Hinting: font.HintingNone}), nil
}

type otFile struct{ f *sfnt.Font }

func (o otFile) face(px float64) (font.Face, error) {
	return opentype.NewFace(o.f, &opentype.FaceOptions{Size: px, DPI: 72, Hinting: font.HintingNone})
}

type faceKey struct {
	kind FontKind
	px   float64
}

// Fonts hands out faces by kind and pixel size once loading has finished.
// A nil *Fonts, or one built by BasicFonts, uses basicfont.Face7x13.
type Fonts struct {
	ready chan struct{}
	files [fontKinds]fontFile

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// LoadFonts parses the configured font files in the background. A file that
// cannot be read or parsed falls back to the built-in Go font for its kind.
func LoadFonts(paths FontPaths, log Logger) *Fonts {
	f := &Fonts{ready: make(chan struct{}), faces: make(map[faceKey]font.Face)}
	go func() {
		defer close(f.ready)
		f.files[FontTitle] = loadFontFile(paths.Title, gobold.TTF, log)
		f.files[FontBody] = loadFontFile(paths.Body, goregular.TTF, log)
		f.files[FontBold] = loadFontFile(paths.Bold, gobold.TTF, log)
		if log != nil {
			log.Infof("fonts", "fonts ready")
		}
	}()
	return f
}

// BasicFonts is ready immediately and draws every kind with the fixed
// 7x13 bitmap face.
func BasicFonts() *Fonts {
	f := &Fonts{ready: make(chan struct{}), faces: make(map[faceKey]font.Face)}
	close(f.ready)
	return f
}

func loadFontFile(path string, builtin []byte, log Logger) fontFile {
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var ff fontFile
			if ff, err = parseFont(data); err == nil {
				if log != nil {
					log.Infof("fonts", "loaded %s", path)
				}
				return ff
			}
		}
		if log != nil {
			log.Errorf("fonts", "font %s unusable, using built-in: %v", path, err)
		}
	}
	ff, err := parseFont(builtin)
	if err != nil {
		if log != nil {
			log.Errorf("fonts", "built-in font parse failed, using basicfont: %v", err)
		}
		return nil
	}
	return ff
}

// parseFont tries freetype first and x/image's sfnt parser for OpenType
// files freetype does not understand.
func parseFont(data []byte) (fontFile, error) {
	tt, err := truetype.Parse(data)
	if err == nil {
		return ttFile{f: tt}, nil
	}
	ot, oerr := opentype.Parse(data)
	if oerr != nil {
		return nil, fmt.Errorf("truetype: %v; opentype: %w", err, oerr)
	}
	return otFile{f: ot}, nil
}

// Ready is closed once faces are available.
func (f *Fonts) Ready() <-chan struct{} {
	if f == nil {
		return nil
	}
	return f.ready
}

// Wait blocks until the fonts are ready or ctx is done.
func (f *Fonts) Wait(ctx context.Context) error {
	if f == nil || f.ready == nil {
		return nil
	}
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Face returns the face of kind at px pixels. Faces are cached; callers
// must not use one face from several goroutines at once.
func (f *Fonts) Face(kind FontKind, px float64) font.Face {
	if f == nil || kind < 0 || kind >= fontKinds || !(px > 0) {
		return basicfont.Face7x13
	}
	select {
	case <-f.ready:
	default:
		return basicfont.Face7x13
	}
	ff := f.files[kind]
	if ff == nil {
		return basicfont.Face7x13
	}

	key := faceKey{kind: kind, px: math.Round(px*64) / 64}
	f.mu.Lock()
	defer f.mu.Unlock()
	if face, ok := f.faces[key]; ok {
		return face
	}
	face, err := ff.face(key.px)
	if err != nil {
		return basicfont.Face7x13
	}
	f.faces[key] = face
	return face
}

// MeasureText is the advance width of text at size px.
func (f *Fonts) MeasureText(text string, kind FontKind, px float64) float64 {
	if text == "" {
		return 0
	}
	adv := font.MeasureString(f.Face(kind, px), text)
	return float64(adv) / 64
}

// scaledMeasurer measures at device resolution and reports display pixels,
// so fit decisions match the glyphs that are actually drawn.
type scaledMeasurer struct {
	fonts *Fonts
	ratio float64
}

func (m scaledMeasurer) MeasureText(text string, kind FontKind, px float64) float64 {
	return m.fonts.MeasureText(text, kind, px*m.ratio) / m.ratio
}
