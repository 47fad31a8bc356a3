// Package logger formats log records as
//
//	2006-01-02T15:04:05.000Z [LEVEL] component: message | key=value, key2=value2
//
// and exposes them through the component-scoped Infof/Errorf/Debugf shape
// the rest of cornerbox logs with.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// componentKey is the attribute Handler lifts in front of the message.
const componentKey = "component"

func levelName(l slog.Level) string {
	switch {
	case l <= slog.LevelDebug:
		return "DEBUG"
	case l <= slog.LevelInfo:
		return "INFO"
	case l <= slog.LevelWarn:
		return "WARN"
	default:
		return "ERROR"
	}
}

// ParseLevel converts debug, info, warn or error (any case) to a level.
// Unrecognized strings yield slog.LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler is a slog.Handler writing one line per record.
type Handler struct {
	w     io.Writer
	mu    *sync.Mutex
	level slog.Level
	attrs []slog.Attr
}

func NewHandler(w io.Writer, level slog.Level) *Handler {
	return &Handler{w: w, level: level, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	all := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	all = append(all, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		all = append(all, a)
		return true
	})

	var buf strings.Builder
	buf.WriteString(r.Time.UTC().Format("2006-01-02T15:04:05.000Z"))
	buf.WriteString(" [")
	buf.WriteString(levelName(r.Level))
	buf.WriteString("] ")

	rest := all[:0:0]
	for _, a := range all {
		if a.Key == componentKey {
			buf.WriteString(a.Value.String())
			buf.WriteString(": ")
			continue
		}
		rest = append(rest, a)
	}
	buf.WriteString(r.Message)

	if len(rest) > 0 {
		buf.WriteString(" | ")
		for i, a := range rest {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(a.Key)
			buf.WriteString("=")
			buf.WriteString(a.Value.String())
		}
	}
	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	merged = append(merged, attrs...)
	return &Handler{w: h.w, mu: h.mu, level: h.level, attrs: merged}
}

// WithGroup is a no-op; cornerbox does not log grouped attributes.
func (h *Handler) WithGroup(string) slog.Handler { return h }

// Logger adapts a *slog.Logger to the component-scoped printf style.
type Logger struct {
	slog *slog.Logger
}

// New returns a Logger writing to w at or above level.
func New(w io.Writer, level slog.Level) Logger {
	return Logger{slog: slog.New(NewHandler(w, level))}
}

// NewFile returns a Logger writing to a size-rotated file. The returned
// io.Closer flushes and closes the file.
func NewFile(path string, level slog.Level, maxSizeMB int) (Logger, io.Closer) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
		MaxAge:     28,
	}
	return New(lj, level), lj
}

// Slog exposes the underlying structured logger.
func (l Logger) Slog() *slog.Logger { return l.slog }

func (l Logger) Debugf(component, format string, args ...interface{}) {
	l.log(slog.LevelDebug, component, format, args...)
}

func (l Logger) Infof(component, format string, args ...interface{}) {
	l.log(slog.LevelInfo, component, format, args...)
}

func (l Logger) Errorf(component, format string, args ...interface{}) {
	l.log(slog.LevelError, component, format, args...)
}

func (l Logger) log(level slog.Level, component, format string, args ...interface{}) {
	if l.slog == nil || !l.slog.Enabled(context.Background(), level) {
		return
	}
	l.slog.Log(context.Background(), level, fmt.Sprintf(format, args...), componentKey, component)
}
