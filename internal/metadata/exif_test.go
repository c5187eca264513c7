package metadata

import (
	"bytes"
	"errors"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/pxm/internal/shared"
	tu "github.com/desertthunder/pxm/internal/testing"
)

var taken = time.Date(2019, 7, 14, 18, 30, 5, 0, time.UTC)

func TestInsertDateTimeOriginal(t *testing.T) {
	t.Run("adds an exif segment to a bare jpeg", func(t *testing.T) {
		src := tu.JPEG(t)
		out, changed, err := InsertDateTimeOriginal(src, taken)
		if err != nil {
			t.Fatalf("InsertDateTimeOriginal() error = %v", err)
		}
		if !changed {
			t.Fatal("expected bare jpeg to be changed")
		}

		got, ok := DateTimeOriginal(out)
		if !ok || !got.Equal(taken) {
			t.Errorf("DateTimeOriginal() = %v, %v; want %v", got, ok, taken)
		}

		if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
			t.Errorf("stamped jpeg no longer decodes: %v", err)
		}
	})

	t.Run("keeps an existing DateTimeOriginal", func(t *testing.T) {
		first, _, _ := InsertDateTimeOriginal(tu.JPEG(t), taken)
		second, changed, err := InsertDateTimeOriginal(first, taken.Add(time.Hour))
		if err != nil {
			t.Fatalf("InsertDateTimeOriginal() error = %v", err)
		}
		if changed || !bytes.Equal(first, second) {
			t.Error("existing DateTimeOriginal should be preserved")
		}
	})

	t.Run("adds DateTimeOriginal to exif without one", func(t *testing.T) {
		src := jpegWithSoftware(t, "camflow 1.2")
		if _, ok := DateTimeOriginal(src); ok {
			t.Fatal("fixture should not carry DateTimeOriginal")
		}

		out, changed, err := InsertDateTimeOriginal(src, taken)
		if err != nil {
			t.Fatalf("InsertDateTimeOriginal() error = %v", err)
		}
		if !changed {
			t.Fatal("expected exif without DateTimeOriginal to be changed")
		}

		got, ok := DateTimeOriginal(out)
		if !ok || !got.Equal(taken) {
			t.Errorf("DateTimeOriginal() = %v, %v; want %v", got, ok, taken)
		}
		if sw := software(t, out); sw != "camflow 1.2" {
			t.Errorf("Software = %q, existing tags should be kept", sw)
		}
		if _, err := jpeg.Decode(bytes.NewReader(out)); err != nil {
			t.Errorf("stamped jpeg no longer decodes: %v", err)
		}
	})

	t.Run("rejects non-jpeg data", func(t *testing.T) {
		if _, _, err := InsertDateTimeOriginal([]byte("GIF89a...."), taken); err == nil {
			t.Error("expected error for non-jpeg input")
		}
	})

}

func TestStamper(t *testing.T) {
	t.Run("stamps jpeg with existing exif", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "p0.jpg")
		tu.MustWriteFile(t, path, jpegWithSoftware(t, "Flickr"))

		if err := (Stamper{}).Stamp(path, taken); err != nil {
			t.Fatalf("Stamp() error = %v", err)
		}
		got, ok := DateTimeOriginal([]byte(tu.MustReadFile(t, path)))
		if !ok || !got.Equal(taken) {
			t.Errorf("DateTimeOriginal() = %v, %v; want %v", got, ok, taken)
		}
	})


	t.Run("stamps jpeg and file times", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "p1.jpg")
		tu.MustWriteFile(t, path, tu.JPEG(t))

		if err := (Stamper{}).Stamp(path, taken); err != nil {
			t.Fatalf("Stamp() error = %v", err)
		}

		got, ok := DateTimeOriginal([]byte(tu.MustReadFile(t, path)))
		if !ok || !got.Equal(taken) {
			t.Errorf("DateTimeOriginal() = %v, %v", got, ok)
		}

		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if !info.ModTime().Equal(taken) {
			t.Errorf("mtime = %v, want %v", info.ModTime(), taken)
		}

		entries, _ := os.ReadDir(filepath.Dir(path))
		if len(entries) != 1 {
			t.Errorf("stamping should leave exactly one file, found %d", len(entries))
		}
	})

	t.Run("non-jpeg images only get file times", func(t *testing.T) {
		png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
		path := filepath.Join(t.TempDir(), "p2.jpg")
		tu.MustWriteFile(t, path, png)

		if err := (Stamper{}).Stamp(path, taken); err != nil {
			t.Fatalf("Stamp() error = %v", err)
		}
		if got := tu.MustReadFile(t, path); got != string(png) {
			t.Error("png content should not change")
		}
		info, _ := os.Stat(path)
		if !info.ModTime().Equal(taken) {
			t.Errorf("mtime = %v, want %v", info.ModTime(), taken)
		}
	})

	t.Run("fails on html error pages", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "p3.jpg")
		tu.MustWriteFile(t, path, []byte("<html><body>rate limited</body></html>"))

		if err := (Stamper{}).Stamp(path, taken); !errors.Is(err, shared.ErrStampFailed) {
			t.Errorf("expected ErrStampFailed, got %v", err)
		}
	})

	t.Run("fails on empty and missing files", func(t *testing.T) {
		dir := t.TempDir()
		empty := filepath.Join(dir, "empty.jpg")
		tu.MustWriteFile(t, empty, nil)

		for _, path := range []string{empty, filepath.Join(dir, "missing.jpg")} {
			if err := (Stamper{}).Stamp(path, taken); !errors.Is(err, shared.ErrStampFailed) {
				t.Errorf("Stamp(%s) expected ErrStampFailed, got %v", filepath.Base(path), err)
			}
		}
	})

	t.Run("zero capture time leaves file untouched", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "p4.jpg")
		src := tu.JPEG(t)
		tu.MustWriteFile(t, path, src)

		if err := (Stamper{}).Stamp(path, time.Time{}); err != nil {
			t.Fatalf("Stamp() error = %v", err)
		}
		if tu.MustReadFile(t, path) != string(src) {
			t.Error("file should not change without a capture time")
		}
	})
}

// jpegWithSoftware returns a JPEG whose EXIF holds only the IFD0 Software tag.
func jpegWithSoftware(t *testing.T, name string) []byte {
	t.Helper()
	sl, err := parseJPEG(tu.JPEG(t))
	if err != nil {
		t.Fatalf("parseJPEG() error = %v", err)
	}
	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		t.Fatalf("ConstructExifBuilder() error = %v", err)
	}
	if err := rootIb.SetStandardWithName("Software", name); err != nil {
		t.Fatalf("SetStandardWithName() error = %v", err)
	}
	if err := sl.SetExif(rootIb); err != nil {
		t.Fatalf("SetExif() error = %v", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	return buf.Bytes()
}

func software(t *testing.T, data []byte) string {
	t.Helper()
	sl, err := parseJPEG(data)
	if err != nil {
		t.Fatalf("parseJPEG() error = %v", err)
	}
	rootIfd, _, err := sl.Exif()
	if err != nil {
		t.Fatalf("Exif() error = %v", err)
	}
	entries, err := rootIfd.FindTagWithName("Software")
	if err != nil || len(entries) == 0 {
		t.Fatalf("Software tag missing: %v", err)
	}
	value, err := entries[0].Value()
	if err != nil {
		t.Fatalf("Value() error = %v", err)
	}
	s, _ := value.(string)
	return strings.TrimRight(s, "\x00")
}
