package app

import (
	"context"
	"errors"
	"image"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rook-computer/cornerbox/internal/export"
	"github.com/rook-computer/cornerbox/internal/headimage"
	"github.com/rook-computer/cornerbox/internal/render"
	"github.com/rook-computer/cornerbox/internal/settings"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(m string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, m)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

// gatedLoader hands out one result channel per source; tests decide when
// each load resolves.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan headimage.Result
}

func (l *gatedLoader) gate(source string) chan headimage.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.gates == nil {
		l.gates = map[string]chan headimage.Result{}
	}
	if _, ok := l.gates[source]; !ok {
		l.gates[source] = make(chan headimage.Result, 1)
	}
	return l.gates[source]
}

func (l *gatedLoader) LoadAsync(_ context.Context, source string) <-chan headimage.Result {
	return l.gate(source)
}

type memSink struct {
	saveErr, openErr error
	saved            map[string][]byte
}

func (m *memSink) Save(_ context.Context, name string, data []byte) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[name] = data
	return nil
}

func (m *memSink) Open(_ context.Context, name, url string) error {
	if m.openErr != nil {
		return m.openErr
	}
	return m.Save(context.Background(), name, []byte(url))
}

func newController(t *testing.T) (*Controller, *recordingNotifier) {
	t.Helper()
	surface, err := render.NewSurface(320, 420, 1)
	if err != nil {
		t.Fatal(err)
	}
	c := New(settings.NewStore(settings.Defaults()), render.NewRenderer(render.BasicFonts(), nil), surface)
	n := &recordingNotifier{}
	c.Notifier = n
	return c, n
}

func wait(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
		return nil
	}
}

func img(w, h int) image.Image { return image.NewRGBA(image.Rect(0, 0, w, h)) }

func TestOnFieldChangedKeepsValidIssue(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()
	if err := c.OnFieldChanged(ctx, "issue", "7"); err != nil {
		t.Fatal(err)
	}
	if err := c.OnFieldChanged(ctx, "issue", "abc"); err != nil {
		t.Fatalf("invalid input surfaced an error: %v", err)
	}
	if got := c.Store.Snapshot().Issue; got != 7 {
		t.Errorf("issue = %d, want 7", got)
	}
	if got := c.LastPlan().Issue.Value.Text; got != "7" {
		t.Errorf("rendered issue = %q", got)
	}
}

func TestOnFieldChangedRendersEveryEdit(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()
	for _, in := range []struct{ field, raw string }{
		{"title", "nova"},
		{"style", "circle"},
		{"text-color", "#ff0000"},
		{"outline", "999"},
	} {
		if err := c.OnFieldChanged(ctx, in.field, in.raw); err != nil {
			t.Fatalf("%s: %v", in.field, err)
		}
	}
	p := c.LastPlan()
	if p.Title.Text != "NOVA" || p.Accent.Style != settings.StyleCircle || p.Outline != 20 || p.Title.Color.R != 0xff {
		t.Errorf("plan = title %q style %s outline %v color %v", p.Title.Text, p.Accent.Style, p.Outline, p.Title.Color)
	}
	if err := c.OnFieldChanged(ctx, "font", "x"); !errors.Is(err, settings.ErrUnknownField) {
		t.Errorf("err = %v, want ErrUnknownField", err)
	}
}

func TestLoadHead(t *testing.T) {
	c, n := newController(t)
	loader := &gatedLoader{}
	c.Heads = loader
	ctx := context.Background()

	loader.gate("a.png") <- headimage.Result{Source: "a.png", Image: img(40, 20)}
	if err := wait(t, c.LoadHead(ctx, "a.png")); err != nil {
		t.Fatalf("LoadHead: %v", err)
	}
	first := c.Store.Snapshot().Head
	if first == nil || c.LastPlan().Head.Placement.Scale == 0 {
		t.Fatal("head image not applied")
	}

	// A failed decode keeps the previous head and tells the user.
	bad := &headimage.DecodeError{Source: "b.png", Err: errors.New("bad data")}
	loader.gate("b.png") <- headimage.Result{Source: "b.png", Err: bad}
	if err := wait(t, c.LoadHead(ctx, "b.png")); !errors.As(err, new(*headimage.DecodeError)) {
		t.Fatalf("err = %v, want DecodeError", err)
	}
	if c.Store.Snapshot().Head != first {
		t.Error("failed decode replaced the head image")
	}
	if msgs := n.all(); len(msgs) != 1 || !strings.Contains(msgs[0], "b.png") {
		t.Errorf("notices = %q", msgs)
	}
}

func TestLoadHeadDiscardsStaleResult(t *testing.T) {
	c, n := newController(t)
	loader := &gatedLoader{}
	c.Heads = loader
	ctx := context.Background()

	older := c.LoadHead(ctx, "old.png")
	newer := c.LoadHead(ctx, "new.png")

	fresh := img(10, 10)
	loader.gate("new.png") <- headimage.Result{Source: "new.png", Image: fresh}
	if err := wait(t, newer); err != nil {
		t.Fatal(err)
	}
	loader.gate("old.png") <- headimage.Result{Source: "old.png", Image: img(99, 99)}
	if err := wait(t, older); !errors.Is(err, ErrSuperseded) {
		t.Fatalf("older err = %v, want ErrSuperseded", err)
	}
	if c.Store.Snapshot().Head != fresh {
		t.Error("stale decode overwrote the newer head image")
	}
	if len(n.all()) != 0 {
		t.Errorf("unexpected notices %q", n.all())
	}
}

func TestHeadSurvivesFieldEdits(t *testing.T) {
	c, _ := newController(t)
	loader := &gatedLoader{}
	c.Heads = loader
	ctx := context.Background()
	loader.gate("a.png") <- headimage.Result{Image: img(5, 5)}
	if err := wait(t, c.LoadHead(ctx, "a.png")); err != nil {
		t.Fatal(err)
	}
	_ = c.OnFieldChanged(ctx, "title", "Other")
	_ = c.Randomize(ctx, rand.New(rand.NewSource(1)))
	if c.Store.Snapshot().Head == nil {
		t.Fatal("head image lost")
	}
	if err := c.ClearHead(ctx); err != nil || c.Store.Snapshot().Head != nil {
		t.Fatalf("ClearHead: %v", err)
	}
}

func TestRandomize(t *testing.T) {
	c, _ := newController(t)
	ctx := context.Background()
	_ = c.OnFieldChanged(ctx, "textColor", "#123456")
	before := c.Store.Snapshot()
	if err := c.Randomize(ctx, rand.New(rand.NewSource(7))); err != nil {
		t.Fatal(err)
	}
	after := c.Store.Snapshot()
	if after.TextColor != "#000000" {
		t.Errorf("text color = %s", after.TextColor)
	}
	if after.BG == before.BG && after.Accent == before.Accent {
		t.Error("colors unchanged")
	}
	if _, ok := settings.NormalizeHex(after.BG); !ok {
		t.Errorf("bg %q is not a hex color", after.BG)
	}
}

func TestResize(t *testing.T) {
	c, _ := newController(t)
	if err := c.Resize(context.Background(), 400, 500, 2); err != nil {
		t.Fatal(err)
	}
	if w, h := c.Surface.BackingSize(); w != 800 || h != 1000 {
		t.Errorf("backing = %dx%d", w, h)
	}
	if p := c.LastPlan(); p.Width != 400 || p.Head.Center.Y != 500-112 {
		t.Errorf("plan = %vx%v head %+v", p.Width, p.Height, p.Head.Center)
	}
	if err := c.Resize(context.Background(), 0, 10, 1); !errors.Is(err, render.ErrInvalidSize) {
		t.Errorf("err = %v", err)
	}
}

func TestDownload(t *testing.T) {
	c, n := newController(t)
	sink := &memSink{}
	c.Exporter = export.New(sink, nil)
	ctx := context.Background()
	_ = c.OnFieldChanged(ctx, "issue", "42")

	res, err := c.Download(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Filename != "cornerbox-issue-42.png" || len(sink.saved[res.Filename]) == 0 {
		t.Errorf("result = %+v", res)
	}
	if len(n.all()) != 0 {
		t.Errorf("notices on success: %q", n.all())
	}
}

func TestDownloadFallbackAndFailureNotify(t *testing.T) {
	c, n := newController(t)
	sink := &memSink{saveErr: export.ErrUnsupported}
	c.Exporter = export.New(sink, nil)
	ctx := context.Background()

	res, err := c.Download(ctx)
	if err != nil || res.Method != export.MethodDataURL {
		t.Fatalf("fallback: %+v, %v", res, err)
	}
	if msgs := n.all(); len(msgs) != 1 || !strings.Contains(msgs[0], "data URL") {
		t.Errorf("fallback notices = %q", msgs)
	}

	sink.openErr = errors.New("blocked")
	_, err = c.Download(ctx)
	if !errors.As(err, new(*export.ExportError)) {
		t.Fatalf("err = %v, want ExportError", err)
	}
	if msgs := n.all(); len(msgs) != 2 || !strings.Contains(msgs[1], "blocked") {
		t.Errorf("failure notices = %q", msgs)
	}
}

type countingPreview struct {
	mu    sync.Mutex
	shown int
	qr    bool
}

func (p *countingPreview) Show(cover, qr image.Image) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown++
	p.qr = qr != nil
	return nil
}

func TestPreviewReceivesEveryRender(t *testing.T) {
	c, _ := newController(t)
	p := &countingPreview{}
	c.Preview = p
	c.ShareQR = true
	ctx := context.Background()
	_ = c.Render(ctx)
	_ = c.OnFieldChanged(ctx, "title", "x")
	if p.shown != 2 || !p.qr {
		t.Errorf("shown=%d qr=%v", p.shown, p.qr)
	}
}

func TestRunReloadsUntilExit(t *testing.T) {
	c, _ := newController(t)
	changes := make(chan struct{}, 1)
	reloaded := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- c.Run(context.Background(), changes, func(ctx context.Context) error {
			reloaded <- struct{}{}
			return c.OnFieldChanged(ctx, "title", "reloaded")
		})
	}()

	changes <- struct{}{}
	select {
	case <-reloaded:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload")
	}

	want := errors.New("F4")
	c.Exit(want)
	c.Exit(errors.New("second"))
	if err := wait(t, done); err != want {
		t.Fatalf("Run = %v, want %v", err, want)
	}
}
