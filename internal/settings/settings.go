package settings

import (
	"errors"
	"fmt"
	"image"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
)

// Style selects the accent panel geometry.
type Style string

const (
	StyleClassic Style = "classic"
	StyleSlanted Style = "slanted"
	StyleCircle  Style = "circle"
)

// Normalize maps unrecognized styles to StyleClassic.
func (s Style) Normalize() Style {
	switch s {
	case StyleSlanted, StyleCircle:
		return s
	default:
		return StyleClassic
	}
}

// Field names an input that can be changed through Store.Set.
type Field string

const (
	FieldTitle     Field = "title"
	FieldIssue     Field = "issue"
	FieldPrice     Field = "price"
	FieldPublisher Field = "publisher"
	FieldStyle     Field = "style"
	FieldOutline   Field = "outline"
	FieldBG        Field = "bg"
	FieldAccent    Field = "accent"
	FieldTextColor Field = "textColor"
)

// Fields lists every settable field in form order.
var Fields = []Field{
	FieldTitle, FieldIssue, FieldPrice, FieldPublisher, FieldStyle,
	FieldOutline, FieldBG, FieldAccent, FieldTextColor,
}

var ErrUnknownField = errors.New("unknown settings field")

// ParseField resolves a field name. Matching ignores case, '-' and '_',
// so "text-color", "text_color" and "textColor" are the same field.
func ParseField(name string) (Field, error) {
	key := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(strings.TrimSpace(name)))
	for _, f := range Fields {
		if strings.ToLower(string(f)) == key {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

const (
	MinIssue   = 1
	MaxIssue   = 9999
	MinOutline = 0.0
	MaxOutline = 20.0

	// stored issue values are bounded so float input never overflows int
	issueStoreLimit = 1e9
)

// Settings is the flat record every render reads.
type Settings struct {
	Title     string
	Issue     int
	Price     string
	Publisher string
	Style     Style
	Outline   float64
	BG        string
	Accent    string
	TextColor string

	// Head is the decoded character portrait; nil means placeholder only.
	Head image.Image
}

// Defaults returns the initial settings of a fresh session.
func Defaults() Settings {
	return Settings{
		Title:     "Nova",
		Issue:     1,
		Price:     "$3.99",
		Publisher: "",
		Style:     StyleClassic,
		Outline:   4,
		BG:        "#ffffff",
		Accent:    "#f5c518",
		TextColor: "#000000",
	}
}

// DisplayIssue is the issue number as printed, clamped to [MinIssue, MaxIssue].
func (s Settings) DisplayIssue() int {
	return clampInt(s.Issue, MinIssue, MaxIssue)
}

// OutlineWidth is the card stroke width, clamped to [MinOutline, MaxOutline].
func (s Settings) OutlineWidth() float64 {
	v := s.Outline
	if math.IsNaN(v) {
		return MinOutline
	}
	return math.Max(MinOutline, math.Min(MaxOutline, v))
}

// Store holds the live settings record. All mutations are validated;
// invalid numeric or color input keeps the previous value.
type Store struct {
	mu       sync.RWMutex
	settings Settings
}

func NewStore(initial Settings) *Store {
	return &Store{settings: initial}
}

func (store *Store) Snapshot() Settings {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.settings
}

// Set coerces raw into field. applied is false when the input failed
// validation and the previous value was kept. The only error is
// ErrUnknownField.
func (store *Store) Set(field Field, raw string) (applied bool, err error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	s := &store.settings
	switch field {
	case FieldTitle:
		s.Title = raw
	case FieldPrice:
		s.Price = raw
	case FieldPublisher:
		s.Publisher = raw
	case FieldStyle:
		s.Style = Style(strings.TrimSpace(raw))
	case FieldIssue:
		v, ok := parseNumber(raw)
		if !ok {
			return false, nil
		}
		v = math.Max(-issueStoreLimit, math.Min(issueStoreLimit, math.Trunc(v)))
		s.Issue = int(v)
	case FieldOutline:
		v, ok := parseNumber(raw)
		if !ok {
			return false, nil
		}
		s.Outline = v
	case FieldBG, FieldAccent, FieldTextColor:
		hex, ok := NormalizeHex(raw)
		if !ok {
			return false, nil
		}
		switch field {
		case FieldBG:
			s.BG = hex
		case FieldAccent:
			s.Accent = hex
		default:
			s.TextColor = hex
		}
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	return true, nil
}

// SetHeadImage replaces the portrait. A nil image clears it.
func (store *Store) SetHeadImage(img image.Image) {
	store.mu.Lock()
	store.settings.Head = img
	store.mu.Unlock()
}

// Randomize picks new background and accent colors and resets the text
// color to black.
func (store *Store) Randomize(rng *rand.Rand) {
	store.mu.Lock()
	store.settings.BG = randomHex(rng)
	store.settings.Accent = randomHex(rng)
	store.settings.TextColor = "#000000"
	store.mu.Unlock()
}

func randomHex(rng *rand.Rand) string {
	return fmt.Sprintf("#%06x", rng.Intn(0xffffff))
}

func parseNumber(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
