package app

import (
	"fmt"
	"io"
	"sync"
)

// Logger is the component-scoped logging interface used across cornerbox.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type NoopLogger struct{}

func (NoopLogger) Infof(component, format string, args ...interface{})  {}
func (NoopLogger) Errorf(component, format string, args ...interface{}) {}

type NoopNotifier struct{}

func (NoopNotifier) Notify(string) {}

// WriterNotifier prints each notice on its own line.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterNotifier(w io.Writer) *WriterNotifier { return &WriterNotifier{w: w} }

func (n *WriterNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.w, "cornerbox:", message)
}
