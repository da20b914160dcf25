package depthmesh

import (
	"image"
	"image/color"

	"github.com/nfnt/resize"
)

// DepthGridFromImage derives a size×size depth grid from image luminance.
// Bright pixels are treated as near (depth 0) and dark pixels as far.
// Fully transparent pixels, such as a removed background, read as far.
func DepthGridFromImage(img image.Image, size int) DepthGrid {
	if size < 2 {
		size = 2
	}
	small := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := small.Bounds()
	g := make(DepthGrid, b.Dy())
	for i := range g {
		g[i] = make([]float64, b.Dx())
		for j := range g[i] {
			c := color.NRGBAModel.Convert(small.At(b.Min.X+j, b.Min.Y+i)).(color.NRGBA)
			if c.A == 0 {
				g[i][j] = 1
				continue
			}
			lum := (0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B)) / 255
			g[i][j] = clamp01(1 - lum)
		}
	}
	return g
}
