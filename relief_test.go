package depthmesh_test

import (
	"errors"
	"testing"

	"github.com/soypat/depthmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestBuildReliefCounts(t *testing.T) {
	grid := depthmesh.DomeGrid(8)
	r, err := depthmesh.BuildRelief(grid, 2, depthmesh.DefaultAspectRatio, 16)
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	seg := depthmesh.ReliefSegments(16, 8)
	assert.Equal(t, 32, seg, "segments follow grid dimension*4")
	assert.Equal(t, seg, r.Segments)
	assert.Equal(t, r.FrontVertices, r.BackVertices)
	assert.Equal(t, (seg+1)*(seg+1), r.FrontVertices)
	assert.Equal(t, 8*seg, r.SideTriangles, "two triangles per rim quad, 4*seg quads")
	assert.Equal(t, 2*seg*seg*2+r.SideTriangles, r.TriangleCount())
	assert.Equal(t, r.FrontVertices+r.BackVertices, r.VertexCount())
}

func TestReliefSegments(t *testing.T) {
	assert.Equal(t, 64, depthmesh.ReliefSegments(64, 16))
	assert.Equal(t, 128, depthmesh.ReliefSegments(64, 32))
	assert.Equal(t, depthmesh.MaxReliefSegments, depthmesh.ReliefSegments(64, 1000))
	assert.Equal(t, 8, depthmesh.ReliefSegments(0, 2))
}

func TestBuildReliefWatertight(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dim := rapid.IntRange(2, 6).Draw(rt, "dim")
		detail := rapid.IntRange(2, 24).Draw(rt, "detail")
		grid := make(depthmesh.DepthGrid, dim)
		for i := range grid {
			grid[i] = make([]float64, dim)
			for j := range grid[i] {
				grid[i][j] = rapid.Float64Range(0, 1).Draw(rt, "cell")
			}
		}
		r, err := depthmesh.BuildRelief(grid, rapid.Float64Range(0, 4).Draw(rt, "mult"), depthmesh.DefaultAspectRatio, detail)
		if err != nil {
			rt.Fatal(err)
		}
		// Closed and consistently oriented: every directed edge appears
		// once and its reverse appears once.
		edges := make(map[[2]uint32]int)
		for i := 0; i < len(r.Indices); i += 3 {
			a, b, c := r.Indices[i], r.Indices[i+1], r.Indices[i+2]
			edges[[2]uint32{a, b}]++
			edges[[2]uint32{b, c}]++
			edges[[2]uint32{c, a}]++
		}
		for e, n := range edges {
			if n != 1 {
				rt.Fatalf("directed edge %v used %d times", e, n)
			}
			if edges[[2]uint32{e[1], e[0]}] != 1 {
				rt.Fatalf("edge %v has no opposite", e)
			}
		}
	})
}

func TestBuildReliefFrontAboveBack(t *testing.T) {
	r, err := depthmesh.BuildRelief(depthmesh.DomeGrid(4), 1.5, [3]float64{1, 1, 0.5}, 8)
	require.NoError(t, err)
	back := r.Positions[r.FrontVertices].Z
	for i := 0; i < r.FrontVertices; i++ {
		if r.Positions[i].Z < back+depthmesh.ReliefBackOffset-1e-12 {
			t.Fatalf("front vertex %d at z=%g below back face %g plus offset", i, r.Positions[i].Z, back)
		}
		if r.Positions[r.FrontVertices+i].Z != back {
			t.Fatalf("back face not flat at %d", i)
		}
	}
	// Front normals point toward the viewer at the center.
	center := (r.Segments/2)*(r.Segments+1) + r.Segments/2
	assert.Greater(t, r.Normals[center].Z, 0.9)
	assert.Less(t, r.Normals[r.FrontVertices+center].Z, -0.9)
}

func TestBuildReliefFlatPlate(t *testing.T) {
	grid := depthmesh.DepthGrid{{0.1, 0.9}, {0.3, 0.7}}
	r, err := depthmesh.BuildRelief(grid, 0, depthmesh.DefaultAspectRatio, 4)
	require.NoError(t, err)
	require.NoError(t, r.Validate())
	// Only the dome curvature remains.
	for i := 0; i < r.FrontVertices; i++ {
		p := r.Positions[i]
		want := depthmesh.ReliefDome * (1 - p.X*p.X - p.Y*p.Y)
		assert.InDelta(t, want, p.Z, 1e-12)
	}
}

func TestBuildReliefRejectsSmallGrid(t *testing.T) {
	for _, grid := range []depthmesh.DepthGrid{nil, {{0.5}}, {{0.1, 0.2}}, {{0.1}, {0.2}}} {
		_, err := depthmesh.BuildRelief(grid, 1, depthmesh.DefaultAspectRatio, 8)
		if !errors.Is(err, depthmesh.ErrInvalidGrid) {
			t.Errorf("grid %v: got error %v. want ErrInvalidGrid", grid, err)
		}
	}
}
