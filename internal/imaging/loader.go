package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"os"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Source is a decoded input image together with the raw bytes it was read
// from.
//
// The raw bytes are kept so callers can write the original file through
// unchanged (animated GIFs) without a second read.
type Source struct {
	// Image is the decoded image. For GIFs this is the first frame drawn
	// onto the logical screen.
	Image image.Image

	// Animated is true for GIFs carrying more than one frame.
	Animated bool

	// Data holds the undecoded file contents.
	Data []byte

	// Info describes the decoded image.
	Info ImageInfo
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width and Height are the pixel dimensions after auto-orientation.
	Width  int
	Height int

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64
}

// Load reads and decodes the image at path.
//
// Parameters:
//   - path: Path to the image file. The extension selects the format.
//   - autoOrient: When true, the EXIF orientation tag of JPEG files is
//     applied so the decoded image is upright.
//
// Returns:
//   - *Source: The decoded image and its raw bytes.
//   - error: ErrUnsupportedFormat for unknown extensions, otherwise a wrapped
//     I/O or decode error.
func Load(path string, autoOrient bool) (*Source, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	src := &Source{Data: data}

	if format == GIF {
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		if len(g.Image) == 0 {
			return nil, fmt.Errorf("failed to decode image: gif has no frames")
		}
		src.Image = firstFrame(g)
		src.Animated = len(g.Image) > 1
	} else {
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(autoOrient))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		src.Image = img
	}

	bounds := src.Image.Bounds()
	src.Info = ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		FileSizeBytes: int64(len(data)),
	}

	return src, nil
}

// firstFrame returns the first frame of g as it appears on the logical
// screen. Frames may be smaller than the screen or offset within it.
func firstFrame(g *gif.GIF) image.Image {
	frame := g.Image[0]
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() || frame.Bounds() == screen {
		return frame
	}
	canvas := imaging.New(screen.Dx(), screen.Dy(), color.Transparent)
	return imaging.Paste(canvas, frame, frame.Bounds().Min)
}

// HasAlpha reports whether img contains any pixel that is not fully opaque.
//
// Images that can answer the question themselves (every image type in the
// standard library) are asked directly; others are scanned.
func HasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
