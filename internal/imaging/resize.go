package imaging

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"
)

// Filter is a resampling filter used when downscaling.
type Filter = imaging.ResampleFilter

var filters = map[string]Filter{
	"lanczos":    imaging.Lanczos,
	"catmullrom": imaging.CatmullRom,
	"linear":     imaging.Linear,
	"box":        imaging.Box,
	"nearest":    imaging.NearestNeighbor,
}

// ParseFilter returns the resample filter registered under name.
func ParseFilter(name string) (Filter, error) {
	f, ok := filters[strings.ToLower(name)]
	if !ok {
		return Filter{}, fmt.Errorf("unknown resample filter: %s", name)
	}
	return f, nil
}

// FitSize computes the size of a w x h image scaled down to fit inside a
// maxW x maxH box.
//
// A bound of zero (or less) leaves that axis unconstrained. The image is
// never enlarged, the aspect ratio is kept, and neither returned dimension
// is smaller than 1. The boolean result reports whether the size changed.
func FitSize(w, h, maxW, maxH int) (int, int, bool) {
	if w <= 0 || h <= 0 {
		return w, h, false
	}

	scale := 1.0
	if maxW > 0 && w > maxW {
		scale = math.Min(scale, float64(maxW)/float64(w))
	}
	if maxH > 0 && h > maxH {
		scale = math.Min(scale, float64(maxH)/float64(h))
	}
	if scale >= 1.0 {
		return w, h, false
	}

	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	// Rounding can push one axis a pixel past its bound.
	if maxW > 0 && nw > maxW {
		nw = maxW
	}
	if maxH > 0 && nh > maxH {
		nh = maxH
	}
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh, nw != w || nh != h
}

// Fit scales img down to fit inside maxW x maxH using filter. The original
// image is returned unchanged when it already fits.
func Fit(img image.Image, maxW, maxH int, filter Filter) (image.Image, bool) {
	b := img.Bounds()
	nw, nh, resized := FitSize(b.Dx(), b.Dy(), maxW, maxH)
	if !resized {
		return img, false
	}
	return imaging.Resize(img, nw, nh, filter), true
}

// Sharpen applies a 3x3 sharpening kernel. It is meant to recover some edge
// contrast lost in a large downscale.
func Sharpen(img image.Image) image.Image {
	return effect.Sharpen(img)
}
