// Package system holds the console plumbing the framebuffer preview needs:
// graphics-mode switching on the active virtual terminal and an exit key
// read straight from evdev.
package system

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// KD console modes from linux/kd.h
const (
	kdText     = 0x00
	kdGraphics = 0x01
	kdSetMode  = 0x4B3A // KDSETMODE ioctl
)

var consolePaths = []string{"/dev/tty", "/dev/tty0"}

type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

func setConsoleMode(mode int) error {
	var errs []error
	for _, p := range consolePaths {
		fd, err := unix.Open(p, unix.O_RDONLY, 0)
		if err != nil {
			errs = append(errs, fmt.Errorf("open %s: %w", p, err))
			continue
		}
		err = unix.IoctlSetInt(fd, kdSetMode, mode)
		unix.Close(fd)
		if err != nil {
			errs = append(errs, fmt.Errorf("KDSETMODE %d on %s: %w", mode, p, err))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}

func writeVT(s string) error {
	var errs []error
	for _, p := range consolePaths {
		f, err := os.OpenFile(p, os.O_WRONLY, 0)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		_, err = f.WriteString(s)
		f.Close()
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("write VT: %w", errors.Join(errs...))
}

// EnterGraphics switches the console to KD_GRAPHICS and hides the cursor so
// the preview is not overdrawn by the text console. The returned func
// restores text mode; it is safe to call when switching failed.
func EnterGraphics(log Logger) (restore func()) {
	graphics := true
	if err := setConsoleMode(kdGraphics); err != nil {
		graphics = false
		if log != nil {
			log.Errorf("tty", "KD_GRAPHICS failed: %v", err)
		}
	} else if log != nil {
		log.Infof("tty", "KD_GRAPHICS set")
	}
	if err := writeVT("\x1b[?25l"); err != nil && log != nil {
		log.Errorf("tty", "hide cursor failed: %v", err)
	}

	return func() {
		if err := writeVT("\x1b[?25h"); err != nil && log != nil {
			log.Errorf("tty", "show cursor failed: %v", err)
		}
		if !graphics {
			return
		}
		if err := setConsoleMode(kdText); err != nil {
			if log != nil {
				log.Errorf("tty", "KD_TEXT failed: %v", err)
			}
		} else if log != nil {
			log.Infof("tty", "KD_TEXT restored")
		}
	}
}
