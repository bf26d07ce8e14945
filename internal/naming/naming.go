// Package naming decides the file name an output image is written under.
//
// A Mode picks the stem (the name without extension): the original stem, a
// slug of it, a content hash, or the capture date. Resolver then keeps two
// inputs from claiming the same output path.
package naming

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/spaolacci/murmur3"
)

// Mode selects how output files are named.
type Mode string

const (
	ModeNone Mode = "none" // Keep the original stem.
	ModeSlug Mode = "slug" // Lowercase, non-alphanumerics collapsed to "-".
	ModeHash Mode = "hash" // Content hash of the source file.
	ModeDate Mode = "date" // EXIF capture time, else modification time.
)

// DateLayout formats stems produced by ModeDate.
const DateLayout = "20060102-150405"

// hashLen is the number of hex digits kept from the 128-bit hash.
const hashLen = 16

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeNone, ModeSlug, ModeHash, ModeDate:
		return true
	}
	return false
}

// Stem returns the output stem for the source file at path. data holds the
// file contents when the caller already has them; it may be nil.
func (m Mode) Stem(path string, data []byte) (string, error) {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	switch m {
	case ModeNone, "":
		return stem, nil
	case ModeSlug:
		if s := Slugify(stem); s != "" {
			return s, nil
		}
		return stem, nil
	case ModeHash:
		if data == nil {
			var err error
			if data, err = os.ReadFile(path); err != nil {
				return "", fmt.Errorf("failed to read %s for hashing: %w", path, err)
			}
		}
		return ContentHash(data), nil
	case ModeDate:
		t, err := CaptureTime(path)
		if err != nil {
			return "", err
		}
		return t.Format(DateLayout), nil
	}
	return "", fmt.Errorf("unknown rename mode %q", string(m))
}

// Slugify lowercases s and collapses every run of characters that are not
// letters or digits into a single "-". Leading and trailing dashes are
// trimmed.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// ContentHash returns the first 16 hex digits of the murmur3 128-bit hash of
// data.
func ContentHash(data []byte) string {
	h1, h2 := murmur3.Sum128(data)
	return fmt.Sprintf("%016x%016x", h1, h2)[:hashLen]
}

// CaptureTime returns the EXIF DateTimeOriginal of the image at path, falling
// back to the file's modification time when the file carries no usable EXIF
// data.
func CaptureTime(path string) (time.Time, error) {
	if t, err := exifTime(path); err == nil {
		return t, nil
	}

	fi, err := os.Stat(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return fi.ModTime(), nil
}

func exifTime(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, err
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return time.Time{}, err
	}
	return x.DateTime()
}
