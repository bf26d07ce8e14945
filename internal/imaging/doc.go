// Package imaging provides the per-image operations of the converter.
//
// This package wraps the codec libraries behind a small surface: loading a
// file into a Source, computing the downscale box, flattening transparency,
// sharpening and encoding into one of the supported output formats. Pixel
// work itself is always delegated to github.com/disintegration/imaging,
// github.com/anthonynsimon/bild, github.com/chai2010/webp and
// github.com/unixpickle/smallpng.
//
// # Formats
//
// Formats are identified by file extension, not file contents:
//   - ".jpg", ".jpeg" -> JPEG
//   - ".png" -> PNG
//   - ".gif" -> GIF
//   - ".webp" -> WebP
//   - ".bmp" -> BMP
//   - ".tif", ".tiff" -> TIFF
//
// # Resize Policy
//
// Images are only ever scaled down. The aspect ratio is kept, a zero bound
// leaves that axis unconstrained and neither output dimension drops below
// one pixel.
//
// # Error Handling
//
// Functions return wrapped errors for I/O failures, undecodable input and
// encoder failures. ErrUnsupportedFormat is returned for extensions outside
// the table above.
package imaging
