package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/rook-computer/cornerbox/internal/export"
	"github.com/rook-computer/cornerbox/internal/headimage"
	"github.com/rook-computer/cornerbox/internal/render"
	"github.com/rook-computer/cornerbox/internal/settings"
)

// ErrSuperseded is reported for a head image whose load finished after a
// newer one was requested. Its result is discarded.
var ErrSuperseded = errors.New("head image request superseded")

// HeadLoader decodes head images in the background.
type HeadLoader interface {
	LoadAsync(ctx context.Context, source string) <-chan headimage.Result
}

type Exporter interface {
	Export(ctx context.Context, img image.Image, issue int) (export.Result, error)
}

// Previewer displays each finished render. qr may be nil.
type Previewer interface {
	Show(cover image.Image, qr image.Image) error
}

// Notifier shows messages to the user.
type Notifier interface {
	Notify(message string)
}

// Controller owns the settings record and the surface, and re-renders after
// every change. Mutations and renders are serialised, so at most one
// render touches the surface at a time.
type Controller struct {
	Store    *settings.Store
	Renderer *render.Renderer
	Surface  *render.Surface
	Heads    HeadLoader
	Exporter Exporter
	Preview  Previewer
	Notifier Notifier
	Logger   Logger
	// ShareQR adds the share code panel to previews.
	ShareQR bool
	Debug   bool

	mu       sync.Mutex
	headGen  atomic.Uint64
	renders  atomic.Uint64
	lastPlan render.Plan

	exitOnce atomic.Bool
	exitCh   chan error
}

func New(store *settings.Store, renderer *render.Renderer, surface *render.Surface) *Controller {
	return &Controller{
		Store:    store,
		Renderer: renderer,
		Surface:  surface,
		Logger:   NoopLogger{},
		Notifier: NoopNotifier{},
		exitCh:   make(chan error, 1),
	}
}

// OnFieldChanged applies one raw input and re-renders. Input that fails
// validation keeps the previous value and is not an error.
func (c *Controller) OnFieldChanged(ctx context.Context, name, raw string) error {
	field, err := settings.ParseField(name)
	if err != nil {
		return err
	}
	applied, err := c.Store.Set(field, raw)
	if err != nil {
		return err
	}
	if !applied {
		c.debugf("settings", "%s: kept previous value, rejected %q", field, raw)
	} else if c.Debug {
		c.Logger.Infof("settings", "%s = %q", field, raw)
	}
	return c.Render(ctx)
}

// LoadHead starts decoding source. When it resolves, and no newer request
// was made in the meantime, the head image is replaced and the cover is
// re-rendered. A failed decode keeps the previous head image and notifies
// the user. The returned channel yields the outcome once.
func (c *Controller) LoadHead(ctx context.Context, source string) <-chan error {
	done := make(chan error, 1)
	if c.Heads == nil {
		done <- errors.New("no head image loader configured")
		close(done)
		return done
	}
	gen := c.headGen.Add(1)
	results := c.Heads.LoadAsync(ctx, source)

	go func() {
		defer close(done)
		var res headimage.Result
		select {
		case r, ok := <-results:
			if !ok {
				done <- fmt.Errorf("head image %s: loader closed without a result", source)
				return
			}
			res = r
		case <-ctx.Done():
			done <- ctx.Err()
			return
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.headGen.Load() != gen {
			c.debugf("head", "discarding stale result for %s", source)
			done <- ErrSuperseded
			return
		}
		if res.Err != nil {
			c.Logger.Errorf("head", "load %s: %v", source, res.Err)
			c.Notifier.Notify(fmt.Sprintf("Could not load head image %s. Pick a PNG, JPEG, GIF or WebP file.", source))
			done <- res.Err
			return
		}
		c.Store.SetHeadImage(res.Image)
		done <- c.renderLocked(ctx)
	}()
	return done
}

// ClearHead removes the head image and re-renders. Pending loads are
// discarded.
func (c *Controller) ClearHead(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headGen.Add(1)
	c.Store.SetHeadImage(nil)
	return c.renderLocked(ctx)
}

// Randomize picks new background and accent colors and re-renders.
func (c *Controller) Randomize(ctx context.Context, rng *rand.Rand) error {
	c.Store.Randomize(rng)
	s := c.Store.Snapshot()
	c.Logger.Infof("settings", "randomized bg=%s accent=%s", s.BG, s.Accent)
	return c.Render(ctx)
}

// Resize changes the display size or pixel ratio and repaints.
func (c *Controller) Resize(ctx context.Context, width, height int, ratio float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.Surface.Resize(width, height, ratio); err != nil {
		return err
	}
	return c.renderLocked(ctx)
}

// Render repaints the surface from the current settings.
func (c *Controller) Render(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderLocked(ctx)
}

func (c *Controller) renderLocked(ctx context.Context) error {
	s := c.Store.Snapshot()
	plan, err := c.Renderer.Render(ctx, s, c.Surface)
	if err != nil {
		c.Logger.Errorf("render", "render failed: %v", err)
		return err
	}
	c.lastPlan = plan
	n := c.renders.Add(1)
	c.debugf("render", "frame %d: style=%s title=%q size=%v", n, plan.Accent.Style, plan.Title.Text, plan.Title.Size)

	if c.Preview != nil {
		var qr image.Image
		if c.ShareQR {
			if qr, err = render.ShareCode(s, 0); err != nil {
				c.Logger.Errorf("preview", "share code: %v", err)
				qr = nil
			}
		}
		if err := c.Preview.Show(c.Surface.Image(), qr); err != nil {
			c.Logger.Errorf("preview", "show: %v", err)
		}
	}
	return nil
}

// Download exports the current surface. Falling back to the data URL path
// and total failure are both reported to the user.
func (c *Controller) Download(ctx context.Context) (export.Result, error) {
	if c.Exporter == nil {
		return export.Result{}, errors.New("no exporter configured")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.renders.Load() == 0 {
		if err := c.renderLocked(ctx); err != nil {
			return export.Result{}, err
		}
	}
	s := c.Store.Snapshot()
	res, err := c.Exporter.Export(ctx, c.Surface.Image(), s.Issue)
	if err != nil {
		c.Notifier.Notify(fmt.Sprintf("Export blocked: %v. If the head image came from an external URL, try a local file instead.", err))
		return res, err
	}
	if res.Method == export.MethodDataURL {
		c.Notifier.Notify(fmt.Sprintf("Saving %s directly failed (%v); it was opened as a data URL instead so you can save it by hand.", res.Filename, res.PrimaryErr))
	}
	c.Logger.Infof("export", "%s via %s", res.Filename, res.Method)
	return res, nil
}

// LastPlan is the geometry of the most recent render.
func (c *Controller) LastPlan() render.Plan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPlan
}

// Exit asks Run to return. Only the first call has an effect.
func (c *Controller) Exit(err error) {
	if c.exitCh == nil {
		return
	}
	if !c.exitOnce.CompareAndSwap(false, true) {
		return
	}
	select {
	case c.exitCh <- err:
	default:
	}
}

// Run re-applies the settings source every time changes fires, until ctx
// is done or Exit is called. reload is expected to feed the source through
// OnFieldChanged / LoadHead.
func (c *Controller) Run(ctx context.Context, changes <-chan struct{}, reload func(context.Context) error) error {
	if c.exitCh == nil {
		c.exitCh = make(chan error, 1)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-c.exitCh:
			return err
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if reload == nil {
				continue
			}
			if err := reload(ctx); err != nil {
				c.Logger.Errorf("watch", "reload failed: %v", err)
				c.Notifier.Notify(fmt.Sprintf("Settings not reloaded: %v", err))
			}
		}
	}
}

func (c *Controller) debugf(component, format string, args ...interface{}) {
	if d, ok := c.Logger.(interface {
		Debugf(string, string, ...interface{})
	}); ok {
		d.Debugf(component, format, args...)
	}
}
