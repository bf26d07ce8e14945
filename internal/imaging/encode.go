package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/unixpickle/smallpng/smallpng"
)

// EncodeOptions carries the per-format encoder settings.
type EncodeOptions struct {
	// JPEGQuality ranges from 1 to 100.
	JPEGQuality int

	// WebPQuality ranges from 0 to 100 and is ignored when WebPLossless is set.
	WebPQuality  float32
	WebPLossless bool

	PNGCompression png.CompressionLevel

	// Quantize reduces PNG output to a 256-colour palette chosen by k-means
	// clustering; QuantizeIters bounds the clustering iterations.
	Quantize      bool
	QuantizeIters int

	// Background fills transparent areas when encoding to a format without
	// alpha. Nil means white.
	Background color.Color
}

// Encode writes img to w in format f.
//
// Format rules:
//   - JPEG: encoded at JPEGQuality; transparency is flattened onto Background.
//   - PNG: encoded at PNGCompression, palette-quantized when Quantize is set.
//   - WebP: lossy at WebPQuality, or lossless.
//   - GIF: up to 256 colours.
//   - BMP, TIFF: lossless, TIFF with deflate compression.
func Encode(w io.Writer, img image.Image, f Format, opts EncodeOptions) error {
	var err error
	switch f {
	case JPEG:
		if HasAlpha(img) {
			bg := opts.Background
			if bg == nil {
				bg = color.White
			}
			img = Flatten(img, bg)
		}
		err = imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.JPEGQuality))
	case PNG:
		if opts.Quantize {
			iters := opts.QuantizeIters
			if iters < 1 {
				iters = smallpng.DefaultMaxKMeansIters
			}
			enc := png.Encoder{CompressionLevel: opts.PNGCompression}
			err = enc.Encode(w, smallpng.PaletteImage(img, iters))
		} else {
			err = imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(opts.PNGCompression))
		}
	case WebP:
		err = webp.Encode(w, img, &webp.Options{
			Lossless: opts.WebPLossless,
			Quality:  opts.WebPQuality,
		})
	case GIF:
		err = imaging.Encode(w, img, imaging.GIF, imaging.GIFNumColors(256))
	case BMP:
		err = imaging.Encode(w, img, imaging.BMP)
	case TIFF:
		err = imaging.Encode(w, img, imaging.TIFF)
	default:
		return fmt.Errorf("cannot encode %q: %w", f, ErrUnsupportedFormat)
	}

	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", f, err)
	}
	return nil
}
