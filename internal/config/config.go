// Package config loads cornerbox's application configuration and settings
// files. Both are TOML. A missing application config file yields
// DefaultConfig.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
)

const (
	EnvOutDir   = "CORNERBOX_OUT"
	EnvLogLevel = "CORNERBOX_LOG_LEVEL"
	EnvFBDevice = "CORNERBOX_FB"
)

// Config is the top-level application configuration.
type Config struct {
	Surface SurfaceConfig `toml:"surface"`
	Fonts   FontsConfig   `toml:"fonts"`
	Head    HeadConfig    `toml:"head"`
	Export  ExportConfig  `toml:"export"`
	Preview PreviewConfig `toml:"preview"`
	Log     LogConfig     `toml:"log"`
}

// SurfaceConfig is the display size of the canvas.
type SurfaceConfig struct {
	// Width and Height are in display pixels.
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// Ratio is the device pixel ratio; the PNG is Width*Ratio by Height*Ratio.
	Ratio float64 `toml:"ratio"`
}

// FontsConfig overrides the built-in Go fonts with TTF/OTF files.
// Empty paths keep the built-in faces.
type FontsConfig struct {
	Title string `toml:"title"`
	Body  string `toml:"body"`
	Bold  string `toml:"bold"`
}

// HeadConfig controls how head images are loaded.
type HeadConfig struct {
	// Accept is a doublestar pattern local head image paths must match.
	Accept string `toml:"accept"`
	// FetchTimeoutSeconds bounds each HTTP attempt for URL sources.
	FetchTimeoutSeconds int `toml:"fetch_timeout_seconds"`
	// RetryMax is the number of retries for URL sources.
	RetryMax int `toml:"retry_max"`
	// MaxPixels rejects images whose header declares more pixels.
	MaxPixels int64 `toml:"max_pixels"`
}

type ExportConfig struct {
	// Dir receives exported PNG files.
	Dir string `toml:"dir"`
}

type PreviewConfig struct {
	// Device is the framebuffer device used by -preview.
	Device string `toml:"device"`
	// ShareQR shows the settings share code next to the preview.
	ShareQR bool `toml:"share_qr"`
}

type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `toml:"level"`
	// File, when set, receives logs instead of stderr.
	File      string `toml:"file"`
	MaxSizeMB int    `toml:"max_size_mb"`
}

// DefaultAccept matches the image types the decoder understands.
const DefaultAccept = "**/*.{png,PNG,jpg,JPG,jpeg,JPEG,gif,GIF,bmp,BMP,tif,TIF,tiff,TIFF,webp,WEBP}"

func DefaultConfig() *Config {
	return &Config{
		Surface: SurfaceConfig{Width: 320, Height: 420, Ratio: 1},
		Head: HeadConfig{
			Accept:              DefaultAccept,
			FetchTimeoutSeconds: 10,
			RetryMax:            2,
			MaxPixels:           50_000_000,
		},
		Export:  ExportConfig{Dir: "."},
		Preview: PreviewConfig{Device: "/dev/fb0", ShareQR: true},
		Log:     LogConfig{Level: "info", MaxSizeMB: 10},
	}
}

// Load reads the configuration at path on top of DefaultConfig.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CORNERBOX_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvOutDir); v != "" {
		c.Export.Dir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvFBDevice); v != "" {
		c.Preview.Device = v
	}
}

// Validate reports every invalid field.
func (c *Config) Validate() error {
	var errs []error
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		errs = append(errs, fmt.Errorf("surface size must be positive (got %dx%d)", c.Surface.Width, c.Surface.Height))
	}
	if c.Surface.Ratio <= 0 || c.Surface.Ratio > 8 {
		errs = append(errs, fmt.Errorf("surface ratio must be in (0, 8] (got %v)", c.Surface.Ratio))
	}
	if !doublestar.ValidatePattern(c.Head.Accept) {
		errs = append(errs, fmt.Errorf("head accept pattern %q is malformed", c.Head.Accept))
	}
	if c.Head.MaxPixels <= 0 {
		errs = append(errs, fmt.Errorf("head max_pixels must be positive (got %d)", c.Head.MaxPixels))
	}
	if c.Head.RetryMax < 0 {
		errs = append(errs, fmt.Errorf("head retry_max must not be negative (got %d)", c.Head.RetryMax))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	return errors.Join(errs...)
}

// FieldValue is one raw input destined for the settings store.
type FieldValue struct {
	Name string
	Raw  string
}

// SettingsFile is a parsed settings input file.
type SettingsFile struct {
	// Values are the scalar fields in key order, rendered as raw text.
	Values []FieldValue
	// Head is a path or URL for the head image, empty when absent.
	Head string
}

// settingsKeyOrder keeps application order stable across map iteration.
var settingsKeyOrder = []string{
	"title", "issue", "price", "publisher", "style", "outline", "bg", "accent", "text_color", "textColor",
}

// LoadSettingsFile parses a flat TOML table of settings fields. Numbers and
// strings are both accepted; their text form is passed on unvalidated.
func LoadSettingsFile(path string) (SettingsFile, error) {
	var raw map[string]any
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return SettingsFile{}, fmt.Errorf("parse settings file: %w", err)
	}

	var out SettingsFile
	if h, ok := raw["head"]; ok {
		s, ok := h.(string)
		if !ok {
			return SettingsFile{}, fmt.Errorf("settings head must be a string (got %T)", h)
		}
		out.Head = s
	}
	for _, key := range settingsKeyOrder {
		v, ok := raw[key]
		if !ok {
			continue
		}
		text, err := scalarText(v)
		if err != nil {
			return SettingsFile{}, fmt.Errorf("settings %s: %w", key, err)
		}
		out.Values = append(out.Values, FieldValue{Name: key, Raw: text})
	}
	return out, nil
}

func scalarText(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(x), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
