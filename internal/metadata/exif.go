// Package metadata stamps capture dates into staged photo files.
package metadata

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/desertthunder/pxm/internal/shared"
	exif "github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

const (
	exifLayout  = "2006:01:02 15:04:05"
	exifIfdPath = "IFD/Exif"

	tagDateTimeOriginal = "DateTimeOriginal"
)

// Stamper writes a capture date into a photo on disk.
//
// JPEG files without a DateTimeOriginal get one; other EXIF tags are kept as they are.
// Every image gets its access and modification times set to the capture date.
type Stamper struct{}

// Stamp applies capturedAt to the file at path. Files that do not sniff as images fail with [shared.ErrStampFailed].
func (Stamper) Stamp(path string, capturedAt time.Time) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStampFailed, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s is empty", shared.ErrStampFailed, filepath.Base(path))
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return fmt.Errorf("%w: %s is %s, not an image", shared.ErrStampFailed, filepath.Base(path), contentType)
	}

	if contentType == "image/jpeg" && !capturedAt.IsZero() {
		stamped, changed, err := InsertDateTimeOriginal(data, capturedAt)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrStampFailed, err)
		}
		if changed {
			if err := replaceFile(path, stamped); err != nil {
				return fmt.Errorf("%w: %v", shared.ErrStampFailed, err)
			}
		}
	}

	if capturedAt.IsZero() {
		return nil
	}
	if err := os.Chtimes(path, capturedAt, capturedAt); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStampFailed, err)
	}
	return nil
}

// InsertDateTimeOriginal returns data with capturedAt written as the EXIF DateTimeOriginal.
//
// Existing EXIF tags are kept and the Exif IFD is created when missing. A file that already carries a
// DateTimeOriginal is returned unchanged with changed=false.
func InsertDateTimeOriginal(data []byte, capturedAt time.Time) (out []byte, changed bool, err error) {
	sl, err := parseJPEG(data)
	if err != nil {
		return nil, false, err
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read exif: %w", err)
	}

	exifIb, err := exif.GetOrCreateIbFromRootIb(rootIb, exifIfdPath)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open exif ifd: %w", err)
	}
	if _, err := exifIb.FindTagWithName(tagDateTimeOriginal); err == nil {
		return data, false, nil
	}

	if err := exifIb.SetStandardWithName(tagDateTimeOriginal, capturedAt.Format(exifLayout)); err != nil {
		return nil, false, fmt.Errorf("failed to set %s: %w", tagDateTimeOriginal, err)
	}
	if err := sl.SetExif(rootIb); err != nil {
		return nil, false, fmt.Errorf("failed to update exif: %w", err)
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return nil, false, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), true, nil
}

// DateTimeOriginal reads the EXIF DateTimeOriginal of a JPEG.
func DateTimeOriginal(data []byte) (time.Time, bool) {
	sl, err := parseJPEG(data)
	if err != nil {
		return time.Time{}, false
	}

	rootIfd, _, err := sl.Exif()
	if err != nil {
		return time.Time{}, false
	}
	exifIfd, err := exif.FindIfdFromRootIfd(rootIfd, exifIfdPath)
	if err != nil {
		return time.Time{}, false
	}
	entries, err := exifIfd.FindTagWithName(tagDateTimeOriginal)
	if err != nil || len(entries) == 0 {
		return time.Time{}, false
	}

	value, err := entries[0].Value()
	if err != nil {
		return time.Time{}, false
	}
	phrase, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}

	t, err := time.Parse(exifLayout, strings.TrimRight(phrase, "\x00"))
	return t, err == nil
}

func parseJPEG(data []byte) (*jpegstructure.SegmentList, error) {
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		return nil, fmt.Errorf("not a jpeg")
	}

	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("malformed jpeg: %w", err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("malformed jpeg: unexpected parse result %T", mc)
	}
	return sl, nil
}

func replaceFile(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".stamp")
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
