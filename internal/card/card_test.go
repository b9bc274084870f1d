package card

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func solidImage(w, h int, c color.NRGBA) image.Image {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestRender_Dimensions(t *testing.T) {
	img := Render(Opts{NameA: "Alice", NameB: "Bob", Days: 10, Messages: 500, FormedDate: "01.01.2026"})

	b := img.Bounds()
	if b.Dx() != 900 || b.Dy() != 500 {
		t.Errorf("bounds = %dx%d, want 900x500", b.Dx(), b.Dy())
	}
}

func TestRender_NilAvatarsUsePlaceholder(t *testing.T) {
	// Must not panic and must still fill the full canvas.
	img := Render(Opts{NameA: "Alice", NameB: "Bob"})

	// The gradient background fully covers the canvas, so no pixel is
	// transparent.
	_, _, _, a := img.At(0, 0).RGBA()
	if a == 0 {
		t.Error("top-left pixel is transparent; background missing")
	}
	_, _, _, a = img.At(899, 499).RGBA()
	if a == 0 {
		t.Error("bottom-right pixel is transparent; background missing")
	}
}

func TestRender_AvatarsAreDrawn(t *testing.T) {
	red := solidImage(640, 640, color.NRGBA{255, 0, 0, 255})
	blue := solidImage(64, 64, color.NRGBA{0, 0, 255, 255})

	img := Render(Opts{NameA: "Alice", NameB: "Bob", AvatarA: red, AvatarB: blue})

	// Sample the center of each avatar frame.
	leftX := 900/2 - 150 - 90/2 + 80 + 5
	rightX := 900/2 + 90/2 + 80 + 5
	y := 30 + 80

	r, _, b, _ := img.At(leftX, y).RGBA()
	if r < b {
		t.Error("left avatar should be red-dominant")
	}
	r, _, b, _ = img.At(rightX, y).RGBA()
	if b < r {
		t.Error("right avatar should be blue-dominant")
	}
}

func TestRender_Deterministic(t *testing.T) {
	opts := Opts{NameA: "Alice", NameB: "Bob", Days: 42, Messages: 1234, FormedDate: "14.02.2026"}

	a, err := EncodePNG(Render(opts))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	b, err := EncodePNG(Render(opts))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("two renders of the same card differ")
	}
}

func TestEncodePNG_RoundTrips(t *testing.T) {
	data, err := EncodePNG(Render(Opts{NameA: "A", NameB: "B"}))
	if err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty PNG")
	}

	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Bounds().Dx() != 900 {
		t.Errorf("decoded width = %d, want 900", decoded.Bounds().Dx())
	}
}

func TestLoadFont_FallsBackToEmbedded(t *testing.T) {
	// Nonexistent extras must not break font loading; the embedded
	// Go Bold face is the terminal fallback.
	f := loadFont([]string{"/nonexistent/font.ttf"})
	if f == nil {
		t.Fatal("loadFont returned nil")
	}
	if newFace(f, 22) == nil {
		t.Fatal("newFace returned nil")
	}
}

func TestPlaceholder_Deterministic(t *testing.T) {
	a := placeholder(150)
	b := placeholder(150)

	if a.Bounds() != b.Bounds() {
		t.Fatal("placeholder bounds differ")
	}
	for _, pt := range []image.Point{{0, 0}, {75, 40}, {75, 120}, {149, 149}} {
		if a.At(pt.X, pt.Y) != b.At(pt.X, pt.Y) {
			t.Errorf("pixel %v differs between renders", pt)
		}
	}
}
