package headimage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"
)

const acceptImages = "**/*.{png,PNG,jpg,jpeg}"

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 0xcc, 0xff
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecode(t *testing.T) {
	img, err := Decode(bytes.NewReader(pngBytes(t, 12, 7)), "mem")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 7 {
		t.Errorf("bounds = %v", b)
	}
	if r, _, _, a := img.At(3, 3).RGBA(); r>>8 != 0xcc || a>>8 != 0xff {
		t.Errorf("pixel r=%#x a=%#x", r>>8, a>>8)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("definitely not an image")), "junk.png")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *DecodeError", err)
	}
	if de.Source != "junk.png" {
		t.Errorf("source = %q", de.Source)
	}
}

// withDimensions rewrites the IHDR of an encoded PNG to claim w x h
// pixels, leaving the pixel data untouched.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	out := append([]byte(nil), data...)
	if len(out) < 33 || string(out[12:16]) != "IHDR" {
		t.Fatalf("unexpected PNG layout")
	}
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsHugeHeader(t *testing.T) {
	data := withDimensions(t, pngBytes(t, 1, 1), 20000, 20000)

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := Decode(bytes.NewReader(data), "huge.png")
	runtime.ReadMemStats(&after)

	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Source != "huge.png" {
		t.Fatalf("err = %#v, want *DecodeError for huge.png", err)
	}
	if alloc := after.TotalAlloc - before.TotalAlloc; alloc > 8<<20 {
		t.Errorf("rejecting the header allocated %d MB", alloc>>20)
	}
}

func TestLoaderMaxPixels(t *testing.T) {
	path := writeTemp(t, "wide.png", pngBytes(t, 40, 30))
	l := NewLoader(Options{Accept: acceptImages, MaxPixels: 1000})
	if _, err := l.Load(context.Background(), path); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err = %v, want ErrTooLarge", err)
	}
	l = NewLoader(Options{Accept: acceptImages, MaxPixels: 1200})
	if _, err := l.Load(context.Background(), path); err != nil {
		t.Fatalf("Load at the limit: %v", err)
	}
}

func TestLoaderLoadsFile(t *testing.T) {
	path := writeTemp(t, "nova.png", pngBytes(t, 20, 10))
	l := NewLoader(Options{Accept: acceptImages})
	img, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if img.Bounds().Dx() != 20 {
		t.Errorf("bounds = %v", img.Bounds())
	}
}

func TestLoaderRejectsUnacceptedPath(t *testing.T) {
	path := writeTemp(t, "notes.txt", pngBytes(t, 2, 2))
	l := NewLoader(Options{Accept: acceptImages})
	_, err := l.Load(context.Background(), path)
	if !errors.Is(err, ErrNotAccepted) {
		t.Fatalf("err = %v, want ErrNotAccepted", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("err = %T, want *DecodeError", err)
	}
}

func TestLoaderMissingFile(t *testing.T) {
	l := NewLoader(Options{Accept: acceptImages})
	_, err := l.Load(context.Background(), filepath.Join(t.TempDir(), "gone.png"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestAccepts(t *testing.T) {
	l := NewLoader(Options{Accept: acceptImages})
	for path, want := range map[string]bool{
		"nova.png":           true,
		"/abs/dir/nova.JPG":  false,
		"/abs/dir/nova.jpg":  true,
		"heads/nova.jpeg":    true,
		"heads/nova.png.txt": false,
		"heads/archive.tar":  false,
	} {
		if got := l.Accepts(path); got != want {
			t.Errorf("Accepts(%q) = %v, want %v", path, got, want)
		}
	}
	if !NewLoader(Options{}).Accepts("anything.bin") {
		t.Error("empty pattern should accept everything")
	}
}

func TestLoaderFetchesURL(t *testing.T) {
	data := pngBytes(t, 8, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nova.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(Options{Timeout: 5 * time.Second})
	img, err := l.Load(context.Background(), srv.URL+"/nova.png")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 8 || b.Dy() != 16 {
		t.Errorf("bounds = %v", b)
	}

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("404: err = %v, want *DecodeError", err)
	}
}

func TestLoaderLimitsBody(t *testing.T) {
	data := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	l := NewLoader(Options{MaxBytes: 16})
	if _, err := l.Load(context.Background(), srv.URL); err == nil {
		t.Fatal("expected size limit error")
	}
}

func TestLoadAsync(t *testing.T) {
	path := writeTemp(t, "nova.png", pngBytes(t, 4, 4))
	l := NewLoader(Options{Accept: acceptImages})

	ch := l.LoadAsync(context.Background(), path)
	select {
	case res, ok := <-ch:
		if !ok {
			t.Fatal("channel closed without a result")
		}
		if res.Err != nil || res.Image == nil || res.Source != path {
			t.Fatalf("result = %+v", res)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for decode")
	}
	if _, ok := <-ch; ok {
		t.Error("channel delivered more than one result")
	}
}
