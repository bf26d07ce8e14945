package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#FF0000", color.NRGBA{255, 0, 0, 255}},
		{"#ffffff", color.NRGBA{255, 255, 255, 255}},
		{"00ff00", color.NRGBA{0, 255, 0, 255}},
		{"#abc", color.NRGBA{0xaa, 0xbb, 0xcc, 255}},
		{" #000000 ", color.NRGBA{0, 0, 0, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c, err := ParseHexColor(tt.in)
			if err != nil {
				t.Fatalf("ParseHexColor(%q) failed: %v", tt.in, err)
			}
			if got := color.NRGBAModel.Convert(c).(color.NRGBA); got != tt.want {
				t.Errorf("ParseHexColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHexColor_Invalid(t *testing.T) {
	for _, in := range []string{"", "#", "#zzzzzz", "red"} {
		if _, err := ParseHexColor(in); err == nil {
			t.Errorf("ParseHexColor(%q) should fail", in)
		}
	}
}

func TestFlatten(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{0, 0, 0, 0})
	img.SetNRGBA(1, 0, color.NRGBA{255, 0, 0, 255})

	out := Flatten(img, color.White)

	if HasAlpha(out) {
		t.Error("flattened image still has alpha")
	}

	nrgba, ok := out.(*image.NRGBA)
	if !ok {
		t.Fatalf("unexpected image type %T", out)
	}
	if got := nrgba.NRGBAAt(0, 0); got != (color.NRGBA{255, 255, 255, 255}) {
		t.Errorf("transparent pixel: got %v, want white", got)
	}
	if got := nrgba.NRGBAAt(1, 0); got != (color.NRGBA{255, 0, 0, 255}) {
		t.Errorf("opaque pixel: got %v, want red", got)
	}
}
