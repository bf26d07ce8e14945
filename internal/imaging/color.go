package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
)

// ParseHexColor parses a colour written as "#RRGGBB" or "#RGB". The leading
// '#' is optional.
func ParseHexColor(hex string) (color.Color, error) {
	hex = strings.TrimSpace(hex)
	if hex == "" {
		return nil, fmt.Errorf("empty color string")
	}
	if hex[0] != '#' {
		hex = "#" + hex
	}

	c, err := colorful.Hex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid hex color %q: %w", hex, err)
	}

	r, g, b := c.RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}, nil
}

// Flatten composites img over a solid background, producing a fully opaque
// image of the same size. Formats without an alpha channel (JPEG) need this,
// otherwise transparent areas come out black.
func Flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	dst := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(dst, img, image.Pt(0, 0), 1.0)
}
