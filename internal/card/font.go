package card

import (
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
)

// defaultFontPaths are tried in order after any configured extras.
// Covers the common Linux, Windows, and macOS locations.
var defaultFontPaths = []string{
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/freefont/FreeSansBold.ttf",
	"C:/Windows/Fonts/arialbd.ttf",
	"C:/Windows/Fonts/arial.ttf",
	"/System/Library/Fonts/Helvetica.ttc",
}

// loadFont parses the first readable TTF from extra followed by the
// platform defaults, falling back to the embedded Go bold face. Returns
// nil only if even the embedded face fails to parse, which newFace
// handles — rendering never fails for font unavailability.
func loadFont(extra []string) *truetype.Font {
	for _, p := range append(append([]string{}, extra...), defaultFontPaths...) {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		f, err := truetype.Parse(data)
		if err != nil {
			continue
		}
		return f
	}
	f, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil
	}
	return f
}

// newFace sizes a parsed font, substituting the fixed bitmap face when no
// scalable font could be loaded at all.
func newFace(f *truetype.Font, size float64) font.Face {
	if f == nil {
		return basicfont.Face7x13
	}
	return truetype.NewFace(f, &truetype.Options{Size: size})
}
