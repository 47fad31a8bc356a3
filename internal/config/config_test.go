package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Surface.Width != 320 || cfg.Surface.Height != 420 || cfg.Surface.Ratio != 1 {
		t.Errorf("surface defaults = %+v", cfg.Surface)
	}
	if cfg.Head.Accept != DefaultAccept {
		t.Errorf("accept = %q", cfg.Head.Accept)
	}
	if cfg.Head.MaxPixels != 50_000_000 {
		t.Errorf("max pixels = %d", cfg.Head.MaxPixels)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeFile(t, "cornerbox.toml", `
[surface]
width = 640
ratio = 2.0

[log]
level = "debug"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Surface.Width != 640 || cfg.Surface.Height != 420 || cfg.Surface.Ratio != 2 {
		t.Errorf("surface = %+v", cfg.Surface)
	}
	if cfg.Log.Level != "debug" || cfg.Log.MaxSizeMB != 10 {
		t.Errorf("log = %+v", cfg.Log)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := writeFile(t, "bad.toml", `
[surface]
width = -1
ratio = 0.0

[log]
level = "loud"

[head]
max_pixels = 0
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"surface size", "surface ratio", "log level", "max_pixels"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvOutDir, "/tmp/covers")
	t.Setenv(EnvLogLevel, "error")
	cfg := DefaultConfig()
	cfg.ApplyEnv()
	if cfg.Export.Dir != "/tmp/covers" || cfg.Log.Level != "error" {
		t.Errorf("env not applied: %+v %+v", cfg.Export, cfg.Log)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	path := writeFile(t, "nova.toml", `
title = "Nova"
issue = 7
price = "$3.99"
style = "circle"
outline = 4.5
text_color = "#000000"
head = "heads/nova.png"
`)
	sf, err := LoadSettingsFile(path)
	if err != nil {
		t.Fatalf("LoadSettingsFile: %v", err)
	}
	want := []FieldValue{
		{"title", "Nova"},
		{"issue", "7"},
		{"price", "$3.99"},
		{"style", "circle"},
		{"outline", "4.5"},
		{"text_color", "#000000"},
	}
	if len(sf.Values) != len(want) {
		t.Fatalf("values = %+v", sf.Values)
	}
	for i := range want {
		if sf.Values[i] != want[i] {
			t.Errorf("value %d = %+v, want %+v", i, sf.Values[i], want[i])
		}
	}
	if sf.Head != "heads/nova.png" {
		t.Errorf("head = %q", sf.Head)
	}
}

func TestLoadSettingsFileRejectsTables(t *testing.T) {
	path := writeFile(t, "odd.toml", "title = [\"a\", \"b\"]\n")
	if _, err := LoadSettingsFile(path); err == nil {
		t.Fatal("expected error for array title")
	}
}
