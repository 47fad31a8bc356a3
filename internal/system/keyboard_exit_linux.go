//go:build linux

package system

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	evKey = 0x01

	// Linux input-event-codes.h
	KeyEsc = 1
	KeyQ   = 16
	KeyF4  = 62
)

// eventLayout describes struct input_event on this platform:
// timeval, u16 type, u16 code, s32 value.
type eventLayout struct {
	tvSize int
	size   int
}

func nativeEventLayout() eventLayout {
	tv := binary.Size(unix.Timeval{})
	if tv <= 0 {
		tv = 16
	}
	return eventLayout{tvSize: tv, size: tv + 8}
}

// keyPressed reports whether buf holds a press (value 1) of any of keys.
// Trailing partial records are ignored.
func (l eventLayout) keyPressed(buf []byte, keys []uint16) bool {
	for off := 0; off+l.size <= len(buf); off += l.size {
		rec := buf[off : off+l.size]
		typ := binary.LittleEndian.Uint16(rec[l.tvSize:])
		code := binary.LittleEndian.Uint16(rec[l.tvSize+2:])
		value := int32(binary.LittleEndian.Uint32(rec[l.tvSize+4:]))
		if typ != evKey || value != 1 {
			continue
		}
		for _, k := range keys {
			if code == k {
				return true
			}
		}
	}
	return false
}

// WatchExitKeys reads every /dev/input/event* device and calls onExit once
// when one of keys is pressed. It returns immediately; readers stop when
// ctx is done. Missing devices are logged and otherwise ignored.
func WatchExitKeys(ctx context.Context, log Logger, onExit func(), keys ...uint16) {
	if onExit == nil {
		return
	}
	if len(keys) == 0 {
		keys = []uint16{KeyF4}
	}
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil || len(paths) == 0 {
		if log != nil {
			log.Infof("input", "no evdev devices found; exit keys disabled")
		}
		return
	}

	layout := nativeEventLayout()
	var once sync.Once
	trigger := func() {
		once.Do(func() {
			if log != nil {
				log.Infof("input", "exit key pressed")
			}
			onExit()
		})
	}
	for _, p := range paths {
		go readExitKeys(ctx, p, layout, keys, trigger)
	}
}

func readExitKeys(ctx context.Context, path string, layout eventLayout, keys []uint16, trigger func()) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	buf := make([]byte, 64*layout.size)
	for ctx.Err() == nil {
		fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, 250); err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		if fds[0].Revents&unix.POLLIN == 0 {
			continue
		}
		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EINTR {
				continue
			}
			return
		}
		if layout.keyPressed(buf[:n], keys) {
			trigger()
			return
		}
	}
}
