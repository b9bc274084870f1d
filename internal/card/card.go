// Package card renders the couple statistics image: two circle-cropped
// avatars over a gradient, a heart between them, and three stat lines.
// Rendering is a pure transform and never fails for a missing avatar or
// font — both fall back to built-in substitutes.
package card

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// Fixed canvas layout. The card does not resize.
const (
	width      = 900
	height     = 500
	avatarSize = 150
	avatarGap  = 90
	avatarY    = 30
	ringPad    = 5 // white ring width around each avatar
)

// Opts holds everything the card is rendered from.
type Opts struct {
	NameA, NameB     string
	AvatarA, AvatarB image.Image // nil substitutes the placeholder silhouette
	Days             int
	Messages         int64
	FormedDate       string   // preformatted wedding date, e.g. "31.08.2026"
	FontPaths        []string // extra TTF candidates tried before the platform defaults
}

// Render composes the statistics card.
func Render(opts Opts) image.Image {
	dc := gg.NewContext(width, height)

	// Pink-to-violet vertical gradient.
	grad := gg.NewLinearGradient(0, 0, 0, height)
	grad.AddColorStop(0, color.NRGBA{210, 130, 210, 255})
	grad.AddColorStop(1, color.NRGBA{75, 35, 175, 255})
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, width, height)
	dc.Fill()

	// Decorative hearts scattered around the edges.
	pale := color.NRGBA{255, 220, 230, 255}
	for _, h := range []struct{ x, y, size float64 }{
		{60, 55, 9}, {840, 45, 7}, {80, 430, 8},
		{820, 410, 6}, {450, 15, 6}, {750, 240, 5},
		{150, 250, 5},
	} {
		drawHeart(dc, h.x, h.y, h.size, pale)
	}

	// Avatars, circle-cropped with a white ring.
	frameA := circleAvatar(opts.AvatarA, avatarSize)
	frameB := circleAvatar(opts.AvatarB, avatarSize)
	x1 := width/2 - avatarSize - avatarGap/2
	x2 := width/2 + avatarGap/2
	dc.DrawImage(frameA, x1, avatarY)
	dc.DrawImage(frameB, x2, avatarY)

	// Heart centered between the avatars.
	drawHeart(dc, width/2, avatarY+avatarSize/2+5, 16, color.NRGBA{255, 80, 90, 255})

	// Names under each avatar.
	fnt := loadFont(opts.FontPaths)
	nameFace := newFace(fnt, 22)
	dc.SetFontFace(nameFace)
	dc.SetRGB(1, 1, 1)
	frameW := avatarSize + 2*ringPad
	nameY := float64(avatarY + avatarSize + 29)
	dc.DrawStringAnchored(opts.NameA, float64(x1+frameW/2), nameY, 0.5, 0.5)
	dc.DrawStringAnchored(opts.NameB, float64(x2+frameW/2), nameY, 0.5, 0.5)

	// Divider rule.
	lineY := float64(avatarY + avatarSize + 58)
	dc.SetLineWidth(2)
	dc.DrawLine(width/4, lineY, 3*width/4, lineY)
	dc.Stroke()

	// Stat lines, centered.
	bigFace := newFace(fnt, 28)
	sy := lineY + 39
	dc.SetFontFace(bigFace)
	dc.DrawStringAnchored(fmt.Sprintf("Together: %d days", opts.Days), width/2, sy, 0.5, 0.5)
	sy += 52
	dc.DrawStringAnchored(fmt.Sprintf("Messages together: %d", opts.Messages), width/2, sy, 0.5, 0.5)
	sy += 52
	dc.SetFontFace(nameFace)
	dc.DrawStringAnchored("Wedding date: "+opts.FormedDate, width/2, sy, 0.5, 0.5)

	return dc.Image()
}

// EncodePNG flattens the card to a PNG byte slice.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("card: encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// circleAvatar scales src to size, crops it to a circle, and surrounds it
// with a white ring. A nil src substitutes the placeholder silhouette.
func circleAvatar(src image.Image, size int) image.Image {
	if src == nil {
		src = placeholder(size)
	}
	scaled := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), src, src.Bounds(), xdraw.Over, nil)

	frame := size + 2*ringPad
	fdc := gg.NewContext(frame, frame)
	fdc.SetRGB(1, 1, 1)
	fdc.DrawCircle(float64(frame)/2, float64(frame)/2, float64(frame)/2)
	fdc.Fill()
	fdc.DrawCircle(float64(frame)/2, float64(frame)/2, float64(size)/2)
	fdc.Clip()
	fdc.DrawImage(scaled, ringPad, ringPad)
	return fdc.Image()
}

// placeholder draws the deterministic silhouette used when a user has no
// avatar: a head circle and shoulders on a muted lavender background.
func placeholder(size int) image.Image {
	dc := gg.NewContext(size, size)
	dc.SetColor(color.NRGBA{180, 170, 210, 255})
	dc.Clear()

	s := float64(size)
	dc.SetColor(color.NRGBA{140, 130, 170, 255})
	dc.DrawCircle(s/2, s/2-s/8, s/5)
	dc.Fill()
	// Shoulders: an ellipse spanning the lower half.
	cy := (s/10 + s/2 + s/6) / 2
	ry := (s/2 + s/6 - s/10) / 2
	dc.DrawEllipse(s/2, s/2+cy, s/3, ry)
	dc.Fill()
	return dc.Image()
}
