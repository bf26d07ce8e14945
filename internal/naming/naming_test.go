package naming

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Holiday Photo", "holiday-photo"},
		{"IMG_0042", "img-0042"},
		{"  spaces  everywhere ", "spaces-everywhere"},
		{"already-slugged", "already-slugged"},
		{"Crème Brûlée", "crème-brûlée"},
		{"a--b__c", "a-b-c"},
		{"***", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestModeValid(t *testing.T) {
	for _, m := range []Mode{ModeNone, ModeSlug, ModeHash, ModeDate} {
		assert.True(t, m.Valid(), m)
	}
	assert.False(t, Mode("sequence").Valid())
	assert.False(t, Mode("").Valid())
}

func TestStem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "My Picture.PNG")
	require.NoError(t, os.WriteFile(path, []byte("pixels"), 0o644))

	stem, err := ModeNone.Stem(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "My Picture", stem)

	stem, err = ModeSlug.Stem(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "my-picture", stem)

	stem, err = ModeHash.Stem(path, nil)
	require.NoError(t, err)
	assert.Len(t, stem, 16)
	assert.Equal(t, ContentHash([]byte("pixels")), stem)

	fromData, err := ModeHash.Stem(path, []byte("pixels"))
	require.NoError(t, err)
	assert.Equal(t, stem, fromData)
}

func TestStem_SlugFallsBackToOriginal(t *testing.T) {
	stem, err := ModeSlug.Stem("/in/___.jpg", nil)
	require.NoError(t, err)
	assert.Equal(t, "___", stem)
}

func TestStem_DateFallsBackToModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-exif.png")
	require.NoError(t, os.WriteFile(path, []byte("not really a png"), 0o644))

	mtime := time.Date(2021, 3, 14, 15, 9, 26, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	stem, err := ModeDate.Stem(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "20210314-150926", stem)
}

// jpegWithCaptureTime returns a small JPEG whose EXIF sub-IFD carries
// DateTimeOriginal = taken ("2006:01:02 15:04:05").
func jpegWithCaptureTime(t *testing.T, taken string) []byte {
	t.Helper()
	require.Len(t, taken, 19)

	var jpg bytes.Buffer
	require.NoError(t, jpeg.Encode(&jpg, image.NewGray(image.Rect(0, 0, 8, 8)), nil))

	// Big-endian TIFF block: IFD0 at 8 holds the Exif IFD pointer, the Exif
	// IFD at 26 holds DateTimeOriginal, whose string lives at 44.
	var tiff bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&tiff, binary.BigEndian, v)) }
	tiff.WriteString("MM")
	w(uint16(42))
	w(uint32(8))

	w(uint16(1))      // entries
	w(uint16(0x8769)) // ExifIFDPointer
	w(uint16(4))      // LONG
	w(uint32(1))
	w(uint32(26))
	w(uint32(0)) // next IFD

	w(uint16(1))      // entries
	w(uint16(0x9003)) // DateTimeOriginal
	w(uint16(2))      // ASCII
	w(uint32(20))
	w(uint32(44))
	w(uint32(0))

	tiff.WriteString(taken)
	tiff.WriteByte(0)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)
	size := len(payload) + 2
	data := jpg.Bytes()

	var out bytes.Buffer
	out.Write(data[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1, byte(size >> 8), byte(size)})
	out.Write(payload)
	out.Write(data[2:])
	return out.Bytes()
}

func TestStem_DateFromEXIF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "IMG_0001.jpg")
	require.NoError(t, os.WriteFile(path, jpegWithCaptureTime(t, "2019:07:04 18:30:05"), 0o644))

	// A different mtime shows the EXIF value wins.
	mtime := time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	stem, err := ModeDate.Stem(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "20190704-183005", stem)

	taken, err := CaptureTime(path)
	require.NoError(t, err)
	assert.Equal(t, 2019, taken.Year())
}

func TestStem_MissingFile(t *testing.T) {
	_, err := ModeHash.Stem("/nonexistent/file.jpg", nil)
	assert.Error(t, err)

	_, err = ModeDate.Stem("/nonexistent/file.jpg", nil)
	assert.Error(t, err)
}

func TestContentHash(t *testing.T) {
	a := ContentHash([]byte("one"))
	b := ContentHash([]byte("two"))
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, ContentHash([]byte("one")))
}

func TestResolver(t *testing.T) {
	r := NewResolver()

	first := r.Resolve("/in/a/photo.jpg", "/out/photo.jpg")
	assert.Equal(t, "/out/photo.jpg", first)

	// Same input asking again keeps its path.
	assert.Equal(t, first, r.Resolve("/in/a/photo.jpg", "/out/photo.jpg"))

	second := r.Resolve("/in/b/Photo.jpg", "/out/photo.jpg")
	assert.Equal(t, "/out/photo-1.jpg", second)

	third := r.Resolve("/in/c/photo.jpg", "/out/photo.jpg")
	assert.Equal(t, "/out/photo-2.jpg", third)

	// The second input is stable too.
	assert.Equal(t, second, r.Resolve("/in/b/Photo.jpg", "/out/photo.jpg"))
}

func TestResolver_ReleasesOldClaim(t *testing.T) {
	r := NewResolver()

	assert.Equal(t, "/out/aaaa.png", r.Resolve("/in/x.png", "/out/aaaa.png"))
	// Content changed, new hash: the old name is released.
	assert.Equal(t, "/out/bbbb.png", r.Resolve("/in/x.png", "/out/bbbb.png"))
	assert.Equal(t, "/out/aaaa.png", r.Resolve("/in/y.png", "/out/aaaa.png"))
}

func TestResolver_Concurrent(t *testing.T) {
	r := NewResolver()

	var wg sync.WaitGroup
	results := make([]string, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(filepath.Join("/in", string(rune('a'+i%26)), "img", string(rune('0'+i/26))), "/out/img.png")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, p := range results {
		assert.False(t, seen[p], "duplicate output path %s", p)
		seen[p] = true
	}
}
