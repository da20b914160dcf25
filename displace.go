package depthmesh

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Displace returns a new mesh whose vertices are pushed along their
// current normal by (depth-0.5)*strength, where depth is sampled from
// grid at the vertex UV. Normals of the result are recomputed from the
// displaced positions. If no vertex moves the result is an unmodified
// copy of m, normals included.
func Displace(m Mesh, grid DepthGrid, strength float64) Mesh {
	if strength == 0 || !finite(strength) || len(m.UVs) != len(m.Positions) || len(m.Normals) != len(m.Positions) {
		return m.Clone()
	}
	out := m.Clone()
	moved := false
	for i, p := range m.Positions {
		uv := m.UVs[i]
		// UV v axis is flipped relative to grid rows.
		offset := (grid.Sample(uv.X, 1-uv.Y) - NeutralDepth) * strength
		if offset == 0 {
			continue
		}
		out.Positions[i] = r3.Add(p, r3.Scale(offset, m.Normals[i]))
		moved = true
	}
	if !moved {
		return out
	}
	return out.RecomputeNormals()
}
