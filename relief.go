package depthmesh

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// MaxReliefSegments bounds the upsampled relief resolution per axis.
	MaxReliefSegments = 512
	// ReliefBackOffset is the gap between the lowest front vertex and the back face.
	ReliefBackOffset = 0.15
	// ReliefDome is the height of the base curvature added to every relief.
	ReliefDome = 0.3
)

// Relief is a closed relief solid together with its layout counts.
type Relief struct {
	Mesh
	// Segments is the number of quads per axis of the front and back faces.
	Segments int
	// FrontVertices and BackVertices count the vertices of each face.
	FrontVertices int
	BackVertices  int
	// SideTriangles counts the triangles stitching the two faces together.
	SideTriangles int
}

// ReliefSegments returns the per-axis resolution BuildRelief uses for a
// grid of dimension dim at the given detail level.
func ReliefSegments(detail, dim int) int {
	s := ClampDetail(detail)
	if dim*4 > s {
		s = dim * 4
	}
	if s > MaxReliefSegments {
		s = MaxReliefSegments
	}
	return s
}

// BuildRelief builds a watertight solid from a depth grid. The front face
// is a grid over [-aspect.x, aspect.x]×[-aspect.y, aspect.y] displaced
// toward +z by (1-depth)*aspect.z*multiplier plus a shallow dome. The
// back face is flat and sits ReliefBackOffset below the lowest front
// vertex; side walls close the rim. Grids smaller than 2x2 are rejected.
func BuildRelief(grid DepthGrid, multiplier float64, aspect [3]float64, detail int) (Relief, error) {
	if !grid.Valid() {
		return Relief{}, fmt.Errorf("%w: got %dx%d", ErrInvalidGrid, grid.Rows(), grid.Cols())
	}
	seg := ReliefSegments(detail, grid.Dim())
	n := seg + 1
	nface := n * n
	m := Mesh{
		Positions: make([]r3.Vec, 2*nface),
		UVs:       make([]r2.Vec, 2*nface),
		Normals:   make([]r3.Vec, 2*nface),
		Indices:   make([]uint32, 0, 6*seg*seg*2+6*4*seg),
	}
	minZ := math.Inf(1)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(seg)
		cy := 1 - 2*v
		for j := 0; j < n; j++ {
			u := float64(j) / float64(seg)
			cx := 2*u - 1
			depth := grid.Sample(u, v)
			z := (1-depth)*aspect[2]*multiplier + ReliefDome*(1-cx*cx-cy*cy)
			k := i*n + j
			m.Positions[k] = r3.Vec{X: cx * aspect[0], Y: cy * aspect[1], Z: z}
			m.UVs[k] = r2.Vec{X: u, Y: 1 - v}
			minZ = math.Min(minZ, z)
		}
	}
	backZ := minZ - ReliefBackOffset
	for k := 0; k < nface; k++ {
		p := m.Positions[k]
		p.Z = backZ
		m.Positions[nface+k] = p
		m.UVs[nface+k] = m.UVs[k]
	}

	front := func(i, j int) uint32 { return uint32(i*n + j) }
	back := func(i, j int) uint32 { return uint32(nface + i*n + j) }
	for i := 0; i < seg; i++ {
		for j := 0; j < seg; j++ {
			a, b, c, d := front(i, j), front(i, j+1), front(i+1, j), front(i+1, j+1)
			m.Indices = append(m.Indices, a, c, b, b, c, d)
			a, b, c, d = back(i, j), back(i, j+1), back(i+1, j), back(i+1, j+1)
			m.Indices = append(m.Indices, a, b, c, b, d, c)
		}
	}
	rim := reliefRim(seg)
	for k, p := range rim {
		q := rim[(k+1)%len(rim)]
		fp, fq := front(p[0], p[1]), front(q[0], q[1])
		bp, bq := back(p[0], p[1]), back(q[0], q[1])
		m.Indices = append(m.Indices, fp, fq, bq, fp, bq, bp)
	}
	return Relief{
		Mesh:          m.RecomputeNormals(),
		Segments:      seg,
		FrontVertices: nface,
		BackVertices:  nface,
		SideTriangles: 2 * len(rim),
	}, nil
}

// reliefRim returns the (row, col) boundary of a seg×seg grid walked
// clockwise as seen from the front, starting at the top left corner.
func reliefRim(seg int) [][2]int {
	rim := make([][2]int, 0, 4*seg)
	for j := 0; j < seg; j++ {
		rim = append(rim, [2]int{0, j})
	}
	for i := 0; i < seg; i++ {
		rim = append(rim, [2]int{i, seg})
	}
	for j := seg; j > 0; j-- {
		rim = append(rim, [2]int{seg, j})
	}
	for i := seg; i > 0; i-- {
		rim = append(rim, [2]int{i, 0})
	}
	return rim
}
