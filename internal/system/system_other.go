//go:build !linux

package system

import "context"

type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

const (
	KeyEsc = 1
	KeyQ   = 16
	KeyF4  = 62
)

// EnterGraphics is a no-op off Linux.
func EnterGraphics(log Logger) (restore func()) { return func() {} }

// WatchExitKeys is a no-op off Linux; exit with a signal instead.
func WatchExitKeys(ctx context.Context, log Logger, onExit func(), keys ...uint16) {
	if log != nil {
		log.Infof("input", "exit keys are only read on linux")
	}
}
