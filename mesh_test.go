package depthmesh_test

import (
	"errors"
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/soypat/depthmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

func quad() depthmesh.Mesh {
	return depthmesh.Mesh{
		Positions: []r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Normals:   make([]r3.Vec, 4),
		UVs:       []r2.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

func TestMeshValidate(t *testing.T) {
	require.NoError(t, quad().Validate())
	require.NoError(t, depthmesh.Mesh{}.Validate(), "empty mesh is valid")

	for name, mutate := range map[string]func(m *depthmesh.Mesh){
		"short normals":   func(m *depthmesh.Mesh) { m.Normals = m.Normals[:3] },
		"short uvs":       func(m *depthmesh.Mesh) { m.UVs = nil },
		"dangling index":  func(m *depthmesh.Mesh) { m.Indices[4] = 4 },
		"partial face":    func(m *depthmesh.Mesh) { m.Indices = m.Indices[:5] },
		"nan position":    func(m *depthmesh.Mesh) { m.Positions[2].Y = math.NaN() },
		"infinite vertex": func(m *depthmesh.Mesh) { m.Positions[0].Z = math.Inf(-1) },
	} {
		m := quad()
		mutate(&m)
		if err := m.Validate(); !errors.Is(err, depthmesh.ErrInvalidMesh) {
			t.Errorf("%s: got %v. want ErrInvalidMesh", name, err)
		}
	}
}

func TestMeshRecomputeNormals(t *testing.T) {
	m := quad().RecomputeNormals()
	for i, n := range m.Normals {
		assert.InDelta(t, 1, n.Z, 1e-12, "normal %d", i)
	}
}

func TestMerge(t *testing.T) {
	m := depthmesh.Merge(quad(), quad())
	require.NoError(t, m.Validate())
	assert.Equal(t, 8, m.VertexCount())
	assert.Equal(t, 4, m.TriangleCount())
	assert.Equal(t, []uint32{4, 5, 6, 4, 6, 7}, m.Indices[6:])
}

func TestMeshBounds(t *testing.T) {
	b := quad().Bounds()
	assert.Equal(t, r3.Vec{}, b.Min)
	assert.Equal(t, r3.Vec{X: 1, Y: 1}, b.Max)
	assert.Equal(t, r3.Box{}, depthmesh.Mesh{}.Bounds())
}

func TestDepthGridFromImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			c := color.NRGBA{A: 255}
			if x >= 20 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	g := depthmesh.DepthGridFromImage(img, 8)
	require.True(t, g.Valid())
	assert.Equal(t, 8, g.Rows())
	assert.InDelta(t, 1, g.At(4, 0), 0.02, "dark is far")
	assert.InDelta(t, 0, g.At(4, 7), 0.02, "bright is near")
}
