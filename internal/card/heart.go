package card

import (
	"image/color"
	"math"

	"github.com/fogleman/gg"
)

// drawHeart fills a heart at (cx, cy) using the classic parametric curve
//
//	x = 16 sin³θ
//	y = −(13 cosθ − 5 cos2θ − 2 cos3θ − cos4θ)
//
// scaled so that size is roughly the half-width in pixels.
func drawHeart(dc *gg.Context, cx, cy, size float64, c color.Color) {
	dc.SetColor(c)
	for deg := 0; deg < 360; deg++ {
		t := float64(deg) * math.Pi / 180
		x := 16 * math.Pow(math.Sin(t), 3)
		y := -(13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t))
		px := cx + x*size/17
		py := cy + y*size/17
		if deg == 0 {
			dc.MoveTo(px, py)
		} else {
			dc.LineTo(px, py)
		}
	}
	dc.ClosePath()
	dc.Fill()
}
