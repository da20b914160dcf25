package depthmesh

import (
	"errors"
	"fmt"

	"github.com/soypat/depthmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrInvalidMesh is returned by Mesh.Validate.
var ErrInvalidMesh = errors.New("invalid mesh")

// Mesh is an indexed triangle mesh. Positions, Normals and UVs are
// indexed in lockstep by Indices, three indices per triangle.
//
// Meshes are treated as values: operations in this package return new
// meshes and never modify their receiver or arguments.
type Mesh struct {
	Positions []r3.Vec
	Normals   []r3.Vec
	UVs       []r2.Vec
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m Mesh) VertexCount() int { return len(m.Positions) }

// TriangleCount returns the number of triangles.
func (m Mesh) TriangleCount() int { return len(m.Indices) / 3 }

// Empty reports whether the mesh has no triangles.
func (m Mesh) Empty() bool { return len(m.Indices) == 0 }

// Triangle returns the vertex positions of the i'th triangle.
func (m Mesh) Triangle(i int) [3]r3.Vec {
	return [3]r3.Vec{
		m.Positions[m.Indices[3*i]],
		m.Positions[m.Indices[3*i+1]],
		m.Positions[m.Indices[3*i+2]],
	}
}

// Validate checks buffer lengths and index ranges.
func (m Mesh) Validate() error {
	nv := len(m.Positions)
	if len(m.Normals) != nv || len(m.UVs) != nv {
		return fmt.Errorf("%w: %d positions, %d normals, %d uvs", ErrInvalidMesh, nv, len(m.Normals), len(m.UVs))
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w: index count %d not a multiple of 3", ErrInvalidMesh, len(m.Indices))
	}
	for i, idx := range m.Indices {
		if int(idx) >= nv {
			return fmt.Errorf("%w: index %d at %d out of range [0,%d)", ErrInvalidMesh, idx, i, nv)
		}
	}
	for i, p := range m.Positions {
		if !d3.Finite(p) {
			return fmt.Errorf("%w: non-finite position at %d", ErrInvalidMesh, i)
		}
	}
	return nil
}

// Bounds returns the axis aligned bounding box of the mesh positions.
// An empty mesh has a zero box.
func (m Mesh) Bounds() r3.Box {
	return r3.Box(d3.Set(m.Positions).Bounds())
}

// Clone returns a deep copy of m.
func (m Mesh) Clone() Mesh {
	return Mesh{
		Positions: append([]r3.Vec(nil), m.Positions...),
		Normals:   append([]r3.Vec(nil), m.Normals...),
		UVs:       append([]r2.Vec(nil), m.UVs...),
		Indices:   append([]uint32(nil), m.Indices...),
	}
}

// RecomputeNormals returns a copy of m with vertex normals rebuilt from
// the final positions. Each vertex normal is the area weighted sum of the
// normals of the triangles sharing it. Vertices touched only by
// degenerate triangles keep their previous normal.
func (m Mesh) RecomputeNormals() Mesh {
	out := m.Clone()
	if len(out.Normals) != len(out.Positions) {
		out.Normals = make([]r3.Vec, len(out.Positions))
	}
	acc := make([]r3.Vec, len(m.Positions))
	for i := 0; i < m.TriangleCount(); i++ {
		a, b, c := m.Indices[3*i], m.Indices[3*i+1], m.Indices[3*i+2]
		pa, pb, pc := m.Positions[a], m.Positions[b], m.Positions[c]
		// |n| is twice the triangle area.
		n := r3.Cross(r3.Sub(pb, pa), r3.Sub(pc, pa))
		acc[a] = r3.Add(acc[a], n)
		acc[b] = r3.Add(acc[b], n)
		acc[c] = r3.Add(acc[c], n)
	}
	for i, n := range acc {
		if u := d3.Unit(n); u != (r3.Vec{}) {
			out.Normals[i] = u
		} else {
			out.Normals[i] = d3.Unit(out.Normals[i])
		}
	}
	return out
}

// Map returns a copy of m with fn applied to every position. Normals are
// carried over unchanged; callers that deform the surface should follow
// with RecomputeNormals.
func (m Mesh) Map(fn func(r3.Vec) r3.Vec) Mesh {
	out := m.Clone()
	for i, p := range out.Positions {
		out.Positions[i] = fn(p)
	}
	return out
}

// Merge concatenates meshes into one, offsetting indices accordingly.
func Merge(meshes ...Mesh) Mesh {
	var out Mesh
	for _, m := range meshes {
		base := uint32(len(out.Positions))
		out.Positions = append(out.Positions, m.Positions...)
		out.Normals = append(out.Normals, m.Normals...)
		out.UVs = append(out.UVs, m.UVs...)
		for _, idx := range m.Indices {
			out.Indices = append(out.Indices, idx+base)
		}
	}
	return out
}
