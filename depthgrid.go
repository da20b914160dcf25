package depthmesh

import (
	"errors"
	"math"
)

// NeutralDepth is the value read for missing or unusable depth cells.
const NeutralDepth = 0.5

// ErrInvalidGrid is returned when a depth grid is too small to build geometry from.
var ErrInvalidGrid = errors.New("depth grid must be at least 2x2")

// DepthGrid is a row major grid of depth hints in [0,1]. Zero is nearest
// to the viewer and one is farthest. Rows may be jagged; missing cells
// read as NeutralDepth.
type DepthGrid [][]float64

// Rows returns the number of rows of the grid.
func (g DepthGrid) Rows() int { return len(g) }

// Cols returns the length of the longest row.
func (g DepthGrid) Cols() int {
	n := 0
	for _, row := range g {
		if len(row) > n {
			n = len(row)
		}
	}
	return n
}

// Dim returns the larger of Rows and Cols.
func (g DepthGrid) Dim() int {
	r, c := g.Rows(), g.Cols()
	if r > c {
		return r
	}
	return c
}

// Valid reports whether the grid has at least 2 rows and 2 columns.
func (g DepthGrid) Valid() bool {
	return g.Rows() >= 2 && g.Cols() >= 2
}

// At returns the cell at (row, col) clamped to [0,1]. Out of range
// indices and non-finite cells return NeutralDepth.
func (g DepthGrid) At(row, col int) float64 {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return NeutralDepth
	}
	v := g[row][col]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NeutralDepth
	}
	return clamp01(v)
}

// Sample bilinearly interpolates the grid at normalized coordinates
// u (columns) and v (rows). Coordinates outside [0,1] are clamped.
// Sample never panics: an empty grid samples as NeutralDepth everywhere.
func (g DepthGrid) Sample(u, v float64) float64 {
	rows, cols := g.Rows(), g.Cols()
	if rows == 0 || cols == 0 {
		return NeutralDepth
	}
	gx := gridCoord(u, cols)
	gy := gridCoord(v, rows)
	x0, y0 := int(gx), int(gy)
	x1, y1 := minInt(x0+1, cols-1), minInt(y0+1, rows-1)
	fx, fy := gx-float64(x0), gy-float64(y0)

	top := lerp(g.At(y0, x0), g.At(y0, x1), fx)
	bottom := lerp(g.At(y1, x0), g.At(y1, x1), fx)
	return lerp(top, bottom, fy)
}

// SampleDepth is shorthand for g.Sample(u, v).
func SampleDepth(g DepthGrid, u, v float64) float64 { return g.Sample(u, v) }

// Sanitize returns a rectangular copy of the grid with every cell clamped
// to [0,1]. Missing and non-finite cells are filled with NeutralDepth.
// Grids smaller than 2x2 return nil.
func (g DepthGrid) Sanitize() DepthGrid {
	if !g.Valid() {
		return nil
	}
	rows, cols := g.Rows(), g.Cols()
	out := make(DepthGrid, rows)
	for i := range out {
		out[i] = make([]float64, cols)
		for j := range out[i] {
			out[i][j] = g.At(i, j)
		}
	}
	return out
}

// Uniform reports whether every cell of the grid reads the same value.
func (g DepthGrid) Uniform() bool {
	first := g.At(0, 0)
	for i := 0; i < g.Rows(); i++ {
		for j := 0; j < g.Cols(); j++ {
			if g.At(i, j) != first {
				return false
			}
		}
	}
	return true
}

// gridCoord maps a normalized coordinate onto [0, n-1]. Values within
// rounding distance of an integer snap to it so samples taken exactly
// on grid vertices return the cell value.
func gridCoord(t float64, n int) float64 {
	if math.IsNaN(t) {
		t = 0.5
	}
	g := clamp01(t) * float64(n-1)
	if r := math.Round(g); math.Abs(g-r) < 1e-9 {
		g = r
	}
	return g
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func clamp01(v float64) float64 { return math.Min(1, math.Max(0, v)) }

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
