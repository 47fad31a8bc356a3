// Package watch signals when a settings file changes on disk.
package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

type Logger interface {
	Infof(component, format string, args ...interface{})
	Errorf(component, format string, args ...interface{})
}

// DefaultPollInterval is used when fsnotify is unavailable.
const DefaultPollInterval = time.Second

// Watcher reports changes to one file. It watches the parent directory so
// editors that save by renaming a temp file over the original are seen.
type Watcher struct {
	path string
	name string

	// changes is buffered to 1; bursts of writes coalesce into one signal.
	changes chan struct{}
	done    chan struct{}
	once    sync.Once

	fsw          *fsnotify.Watcher
	polling      atomic.Bool
	pollInterval time.Duration
	log          Logger
}

type Options struct {
	PollInterval time.Duration
	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
	Logger       Logger
}

func New(path string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	w := &Watcher{
		path:         abs,
		name:         filepath.Base(abs),
		changes:      make(chan struct{}, 1),
		done:         make(chan struct{}),
		pollInterval: opts.PollInterval,
		log:          opts.Logger,
	}
	if opts.ForcePolling {
		w.startPolling("polling requested")
		return w, nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.startPolling(fmt.Sprintf("fsnotify unavailable: %v", err))
		return w, nil
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		w.startPolling(fmt.Sprintf("cannot watch %s: %v", filepath.Dir(abs), err))
		return w, nil
	}
	w.fsw = fsw
	go w.watch(fsw)
	return w, nil
}

// Changes delivers a signal after the file was written, created or
// replaced.
func (w *Watcher) Changes() <-chan struct{} { return w.changes }

func (w *Watcher) Polling() bool { return w.polling.Load() }

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.fsw != nil {
			if cerr := w.fsw.Close(); cerr != nil {
				err = fmt.Errorf("close fsnotify watcher: %w", cerr)
			}
		}
	})
	return err
}

func (w *Watcher) watch(fsw *fsnotify.Watcher) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != w.name {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.notify()
			}
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.startPolling(fmt.Sprintf("fsnotify error: %v", err))
			return
		}
	}
}

func (w *Watcher) startPolling(reason string) {
	if w.log != nil {
		w.log.Infof("watch", "%s; polling %s every %v", reason, w.path, w.pollInterval)
	}
	w.polling.Store(true)
	go w.poll()
}

// poll compares modification time and size, since coarse mtimes can miss
// two writes within one tick.
func (w *Watcher) poll() {
	lastMod, lastSize := w.stat()
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			mod, size := w.stat()
			if mod.IsZero() {
				continue
			}
			if !mod.Equal(lastMod) || size != lastSize {
				lastMod, lastSize = mod, size
				w.notify()
			}
		}
	}
}

func (w *Watcher) stat() (time.Time, int64) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, 0
	}
	return info.ModTime(), info.Size()
}

func (w *Watcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}
