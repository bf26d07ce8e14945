package imaging

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when a path or name does not map to a
// supported image format.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format identifies an image container.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	GIF  Format = "gif"
	WebP Format = "webp"
	BMP  Format = "bmp"
	TIFF Format = "tiff"
)

var formatExts = map[string]Format{
	".jpg":  JPEG,
	".jpeg": JPEG,
	".png":  PNG,
	".gif":  GIF,
	".webp": WebP,
	".bmp":  BMP,
	".tif":  TIFF,
	".tiff": TIFF,
}

// FormatFromPath returns the format for the extension of path. The match is
// case-insensitive.
func FormatFromPath(path string) (Format, error) {
	if f, ok := formatExts[strings.ToLower(filepath.Ext(path))]; ok {
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// IsImage reports whether path has a supported image extension.
func IsImage(path string) bool {
	_, err := FormatFromPath(path)
	return err == nil
}

// ParseFormat accepts a format name as written on the command line. Both
// "jpg" and "jpeg", and both "tif" and "tiff" are accepted.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if f, ok := formatExts["."+name]; ok {
		return f, nil
	}
	return "", ErrUnsupportedFormat
}

// Ext returns the canonical file extension for f, including the dot.
func (f Format) Ext() string {
	switch f {
	case JPEG:
		return ".jpg"
	case TIFF:
		return ".tiff"
	case "":
		return ""
	}
	return "." + string(f)
}
