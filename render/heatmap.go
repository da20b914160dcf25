package render

import (
	"fmt"
	"image/color"
	"io"

	"github.com/soypat/depthmesh"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// depthGridXYZ adapts a depth grid to plotter.GridXYZ. Columns map to x
// and rows to y with row 0 at the top of the image.
type depthGridXYZ struct {
	grid depthmesh.DepthGrid
}

func (g depthGridXYZ) Dims() (c, r int) { return g.grid.Cols(), g.grid.Rows() }

func (g depthGridXYZ) Z(c, r int) float64 {
	return g.grid.At(g.grid.Rows()-1-r, c)
}

func (g depthGridXYZ) X(c int) float64 { return float64(c) }

func (g depthGridXYZ) Y(r int) float64 { return float64(r) }

// HeatMapOptions configures WriteDepthHeatMap.
type HeatMapOptions struct {
	Title string
	// Size is the edge length of the square output image. Zero means 4 inches.
	Size vg.Length
	// Format is an image format understood by gonum/plot: png, svg, pdf, jpg.
	Format string
}

// WriteDepthHeatMap plots the depth grid as a heat map where hot colors
// are near the viewer. Invalid grids are rejected with ErrInvalidGrid.
func WriteDepthHeatMap(w io.Writer, grid depthmesh.DepthGrid, opt HeatMapOptions) error {
	grid = grid.Sanitize()
	if grid == nil {
		return fmt.Errorf("heat map: %w", depthmesh.ErrInvalidGrid)
	}
	if opt.Size <= 0 {
		opt.Size = 4 * vg.Inch
	}
	if opt.Format == "" {
		opt.Format = "png"
	}
	p := plot.New()
	p.Title.Text = opt.Title
	if p.Title.Text == "" {
		p.Title.Text = "depth"
	}
	p.X.Label.Text = "column"
	p.Y.Label.Text = "row (flipped)"

	hm := plotter.NewHeatMap(depthGridXYZ{grid: grid}, reversed{palette.Heat(16, 1)})
	hm.Min, hm.Max = 0, 1
	p.Add(hm)

	wt, err := p.WriterTo(opt.Size, opt.Size, opt.Format)
	if err != nil {
		return fmt.Errorf("heat map: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// reversed flips a palette so the hottest color maps to the lowest value.
type reversed struct{ palette.Palette }

func (r reversed) Colors() []color.Color {
	c := r.Palette.Colors()
	out := make([]color.Color, len(c))
	for i := range c {
		out[len(c)-1-i] = c[i]
	}
	return out
}
