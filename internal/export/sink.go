package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes downloads into Dir. Both paths produce the same file;
// Open additionally leaves the data URL next to it as name+".url" so it
// can be pasted into a browser.
type FileSink struct {
	Dir string
	// KeepDataURL writes the .url companion file on the fallback path.
	KeepDataURL bool
}

func (s FileSink) Save(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return writeFileAtomic(s.path(name), data, 0o644)
}

func (s FileSink) Open(ctx context.Context, name string, dataURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := DecodeDataURL(dataURL)
	if err != nil {
		return err
	}
	if s.KeepDataURL {
		if err := writeFileAtomic(s.path(name)+".url", []byte(dataURL), 0o644); err != nil {
			return err
		}
	}
	return writeFileAtomic(s.path(name), data, 0o644)
}

func (s FileSink) path(name string) string {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, filepath.Base(name))
}

// writeFileAtomic writes data to a temp file beside path and renames it
// into place, so readers never see a partial PNG.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	done := false
	defer func() {
		if !done {
			os.Remove(tmp)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	done = true
	return nil
}
