package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rook-computer/cornerbox/internal/app"
	"github.com/rook-computer/cornerbox/internal/config"
	"github.com/rook-computer/cornerbox/internal/export"
	"github.com/rook-computer/cornerbox/internal/headimage"
	"github.com/rook-computer/cornerbox/internal/logger"
	"github.com/rook-computer/cornerbox/internal/render"
	"github.com/rook-computer/cornerbox/internal/settings"
	"github.com/rook-computer/cornerbox/internal/system"
	"github.com/rook-computer/cornerbox/internal/watch"
)

const envStdioLog = "CORNERBOX_STDIO_LOG"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// fieldFlags maps command-line flags onto settings fields, in the order
// they are applied.
var fieldFlags = []struct {
	flag  string
	field settings.Field
	usage string
}{
	{"title", settings.FieldTitle, "cover title (drawn uppercased)"},
	{"issue", settings.FieldIssue, "issue number, printed clamped to 1..9999"},
	{"price", settings.FieldPrice, "price text, printed verbatim"},
	{"publisher", settings.FieldPublisher, "publisher line"},
	{"style", settings.FieldStyle, "accent style: classic | slanted | circle"},
	{"outline", settings.FieldOutline, "card outline width, clamped to 0..20"},
	{"bg", settings.FieldBG, "card background color (#rrggbb)"},
	{"accent", settings.FieldAccent, "accent color (#rrggbb)"},
	{"text-color", settings.FieldTextColor, "title and publisher color (#rrggbb)"},
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("cornerbox", flag.ContinueOnError)
	fs.SetOutput(stderr)

	type fieldFlag struct {
		field settings.Field
		value *string
	}
	fieldValues := make(map[string]fieldFlag, len(fieldFlags))
	for _, f := range fieldFlags {
		fieldValues[f.flag] = fieldFlag{field: f.field, value: fs.String(f.flag, "", f.usage)}
	}
	head := fs.String("head", "", "head image file or http(s) URL")
	shareLink := fs.String("link", "", "apply a "+settings.LinkScheme+" share link before the field flags")
	settingsPath := fs.String("settings", "", "TOML settings file applied before the field flags")
	watchFile := fs.Bool("watch", false, "re-render and re-export whenever -settings changes")
	randomize := fs.Bool("randomize", false, "pick random background and accent colors")
	outDir := fs.String("out", "", "directory receiving the PNG; also configurable via "+config.EnvOutDir)
	noExport := fs.Bool("no-export", false, "render without writing a PNG")
	width := fs.Int("width", 0, "display width in pixels (default from config)")
	height := fs.Int("height", 0, "display height in pixels (default from config)")
	ratio := fs.Float64("ratio", 0, "device pixel ratio (default from config)")
	preview := fs.Bool("preview", false, "show the cover on the framebuffer until F4 or Ctrl-C")
	fbDevice := fs.String("fb", "", "framebuffer device for -preview; also configurable via "+config.EnvFBDevice)
	shareQR := fs.String("share-qr", "", "write a QR code of the settings share link to this PNG file")
	configPath := fs.String("config", "", "application config file (TOML)")
	logLevel := fs.String("log-level", "", "debug | info | warn | error; also configurable via "+config.EnvLogLevel)
	logFile := fs.String("log-file", "", "write logs to this rotating file instead of stderr")
	stdioLog := fs.String("stdio-log", "", "redirect stdout+stderr (including panics) to this file; also configurable via "+envStdioLog)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Best-effort: keep panics diagnosable while the console is in graphics mode.
	stdioPath := *stdioLog
	if stdioPath == "" {
		stdioPath = os.Getenv(envStdioLog)
	}
	if stdioPath != "" {
		if err := redirectStdIO(stdioPath); err != nil {
			fmt.Fprintln(stderr, "stdio log redirect error:", err)
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return 2
	}
	cfg.ApplyEnv()
	overrideString(&cfg.Export.Dir, *outDir)
	overrideString(&cfg.Preview.Device, *fbDevice)
	overrideString(&cfg.Log.Level, *logLevel)
	overrideString(&cfg.Log.File, *logFile)
	if *width > 0 {
		cfg.Surface.Width = *width
	}
	if *height > 0 {
		cfg.Surface.Height = *height
	}
	if *ratio > 0 {
		cfg.Surface.Ratio = *ratio
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "config error:", err)
		return 2
	}

	log := logger.New(stderr, logger.ParseLevel(cfg.Log.Level))
	if cfg.Log.File != "" {
		fileLog, closer := logger.NewFile(cfg.Log.File, logger.ParseLevel(cfg.Log.Level), cfg.Log.MaxSizeMB)
		defer closer.Close()
		log = fileLog
	}
	log.Infof("main", "cornerbox starting, surface=%dx%d@%v", cfg.Surface.Width, cfg.Surface.Height, cfg.Surface.Ratio)

	fonts := render.LoadFonts(render.FontPaths{Title: cfg.Fonts.Title, Body: cfg.Fonts.Body, Bold: cfg.Fonts.Bold}, log)
	surface, err := render.NewSurface(cfg.Surface.Width, cfg.Surface.Height, cfg.Surface.Ratio)
	if err != nil {
		fmt.Fprintln(stderr, "surface error:", err)
		return 1
	}

	loader := headimage.NewLoader(headimage.Options{
		Accept:    cfg.Head.Accept,
		Timeout:   time.Duration(cfg.Head.FetchTimeoutSeconds) * time.Second,
		RetryMax:  cfg.Head.RetryMax,
		MaxPixels: cfg.Head.MaxPixels,
	})
	loader.Logger = log

	debug := debugEnabled(cfg.Log.Level)
	renderer := render.NewRenderer(fonts, log)
	renderer.Debug = debug

	ctrl := app.New(settings.NewStore(settings.Defaults()), renderer, surface)
	ctrl.Heads = loader
	ctrl.Exporter = export.New(export.FileSink{Dir: cfg.Export.Dir, KeepDataURL: true}, log)
	ctrl.Notifier = app.NewWriterNotifier(stderr)
	ctrl.Logger = log
	ctrl.Debug = debug

	if *preview {
		p, err := render.OpenPreview(cfg.Preview.Device, log)
		if err != nil {
			fmt.Fprintln(stderr, "preview error:", err)
			return 1
		}
		defer p.Close()
		restore := system.EnterGraphics(log)
		defer restore()
		system.WatchExitKeys(ctx, log, func() { ctrl.Exit(nil) }, system.KeyF4)
		ctrl.Preview = p
		ctrl.ShareQR = cfg.Preview.ShareQR
	}

	// apply feeds every input source through the controller, lowest
	// precedence first: settings file, then flags, then actions.
	apply := func(ctx context.Context, includeFlags bool) error {
		if *settingsPath != "" {
			sf, err := config.LoadSettingsFile(*settingsPath)
			if err != nil {
				return err
			}
			for _, v := range sf.Values {
				if err := ctrl.OnFieldChanged(ctx, v.Name, v.Raw); err != nil {
					return err
				}
			}
			if sf.Head != "" && (!includeFlags || *head == "") {
				if err := <-ctrl.LoadHead(ctx, sf.Head); err != nil && !errors.Is(err, app.ErrSuperseded) {
					log.Errorf("main", "head %s: %v", sf.Head, err)
				}
			}
		}
		if includeFlags {
			if *shareLink != "" {
				if err := settings.ApplyLink(ctrl.Store, *shareLink); err != nil {
					return err
				}
			}
			var setErr error
			fs.Visit(func(f *flag.Flag) {
				if v, ok := fieldValues[f.Name]; ok && setErr == nil {
					setErr = ctrl.OnFieldChanged(ctx, string(v.field), *v.value)
				}
			})
			if setErr != nil {
				return setErr
			}
			if *head != "" {
				if err := <-ctrl.LoadHead(ctx, *head); err != nil {
					log.Errorf("main", "head %s: %v", *head, err)
				}
			}
			if *randomize {
				if err := ctrl.Randomize(ctx, rand.New(rand.NewSource(time.Now().UnixNano()))); err != nil {
					return err
				}
			}
		}
		if err := ctrl.Render(ctx); err != nil {
			return err
		}
		if !*noExport {
			if _, err := ctrl.Download(ctx); err != nil {
				return err
			}
		}
		if *shareQR != "" {
			if err := render.WriteShareCode(*shareQR, ctrl.Store.Snapshot(), 0); err != nil {
				return fmt.Errorf("share code: %w", err)
			}
		}
		return nil
	}

	if err := apply(ctx, true); err != nil {
		fmt.Fprintln(stderr, "cornerbox:", err)
		return 1
	}

	if !*watchFile && !*preview {
		return 0
	}

	var changes <-chan struct{}
	if *watchFile && *settingsPath != "" {
		w, err := watch.New(*settingsPath, watch.Options{Logger: log})
		if err != nil {
			fmt.Fprintln(stderr, "watch error:", err)
			return 1
		}
		defer w.Close()
		changes = w.Changes()
		log.Infof("main", "watching %s", *settingsPath)
	}
	// Reloads re-apply only the file; flag values stay as first applied
	// unless the file overrides them.
	err = ctrl.Run(ctx, changes, func(ctx context.Context) error { return apply(ctx, false) })
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "cornerbox:", err)
		return 1
	}
	return 0
}

func debugEnabled(level string) bool {
	return logger.ParseLevel(level) <= slog.LevelDebug
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
