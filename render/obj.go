package render

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/soypat/depthmesh"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// WriteOBJ writes m as Wavefront OBJ text. Positions, texture coordinates
// and normals share one index so every face corner is written as i/i/i
// (1-indexed). An empty mesh produces a file with only the header.
func WriteOBJ(w io.Writer, m depthmesh.Mesh, meta Meta) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 96)
	buf = append(buf, "# depthmesh\no "...)
	buf = append(buf, meta.name()...)
	buf = append(buf, '\n')
	line := func(prefix string, vals ...float64) {
		buf = append(buf, prefix...)
		for _, v := range vals {
			buf = append(buf, ' ')
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, '\n')
		bw.Write(buf)
		buf = buf[:0]
	}
	bw.Write(buf)
	buf = buf[:0]
	for _, p := range m.Positions {
		line("v", p.X, p.Y, p.Z)
	}
	for _, uv := range m.UVs {
		line("vt", uv.X, uv.Y)
	}
	for _, n := range m.Normals {
		line("vn", n.X, n.Y, n.Z)
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		buf = append(buf, 'f')
		for _, idx := range m.Indices[i : i+3] {
			k := uint64(idx) + 1
			buf = append(buf, ' ')
			buf = strconv.AppendUint(buf, k, 10)
			buf = append(buf, '/')
			buf = strconv.AppendUint(buf, k, 10)
			buf = append(buf, '/')
			buf = strconv.AppendUint(buf, k, 10)
		}
		buf = append(buf, '\n')
		bw.Write(buf)
		buf = buf[:0]
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: obj: %v", ErrExport, err)
	}
	return nil
}

type objCorner struct{ v, vt, vn int }

// ReadOBJ parses the subset of OBJ written by WriteOBJ: v, vt, vn and
// f lines. Polygons are fan triangulated and negative indices are
// resolved relative to the end of each list. Corners whose position,
// texture and normal indices differ are split into distinct vertices.
// Missing normals are recomputed from the faces.
func ReadOBJ(r io.Reader) (depthmesh.Mesh, error) {
	var (
		pos     []r3.Vec
		uvs     []r2.Vec
		normals []r3.Vec
		faces   [][3]objCorner
	)
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	lineno := 0
	for sc.Scan() {
		lineno++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		var err error
		switch fields[0] {
		case "v":
			var f [3]float64
			f, err = parseFloats3(fields[1:], 3)
			pos = append(pos, r3.Vec{X: f[0], Y: f[1], Z: f[2]})
		case "vn":
			var f [3]float64
			f, err = parseFloats3(fields[1:], 3)
			normals = append(normals, r3.Vec{X: f[0], Y: f[1], Z: f[2]})
		case "vt":
			var f [3]float64
			f, err = parseFloats3(fields[1:], 2)
			uvs = append(uvs, r2.Vec{X: f[0], Y: f[1]})
		case "f":
			if len(fields) < 4 {
				err = fmt.Errorf("face with %d corners", len(fields)-1)
				break
			}
			corners := make([]objCorner, len(fields)-1)
			for i, s := range fields[1:] {
				corners[i], err = parseCorner(s, len(pos), len(uvs), len(normals))
				if err != nil {
					break
				}
			}
			for i := 1; err == nil && i+1 < len(corners); i++ {
				faces = append(faces, [3]objCorner{corners[0], corners[i], corners[i+1]})
			}
		}
		if err != nil {
			return depthmesh.Mesh{}, fmt.Errorf("obj line %d: %w", lineno, err)
		}
	}
	if err := sc.Err(); err != nil {
		return depthmesh.Mesh{}, err
	}
	return objMesh(pos, uvs, normals, faces), nil
}

func objMesh(pos []r3.Vec, uvs []r2.Vec, normals []r3.Vec, faces [][3]objCorner) depthmesh.Mesh {
	shared := len(uvs) == len(pos) && len(normals) == len(pos)
	for _, f := range faces {
		for _, c := range f {
			shared = shared && c.vt == c.v && c.vn == c.v
		}
	}
	var m depthmesh.Mesh
	m.Indices = make([]uint32, 0, 3*len(faces))
	if shared {
		m.Positions, m.UVs, m.Normals = pos, uvs, normals
		for _, f := range faces {
			m.Indices = append(m.Indices, uint32(f[0].v), uint32(f[1].v), uint32(f[2].v))
		}
		return m
	}
	missingNormals := false
	seen := make(map[objCorner]uint32)
	for _, f := range faces {
		for _, c := range f {
			idx, ok := seen[c]
			if !ok {
				idx = uint32(len(m.Positions))
				seen[c] = idx
				m.Positions = append(m.Positions, pos[c.v])
				var uv r2.Vec
				if c.vt >= 0 {
					uv = uvs[c.vt]
				}
				m.UVs = append(m.UVs, uv)
				var n r3.Vec
				if c.vn >= 0 {
					n = normals[c.vn]
				} else {
					missingNormals = true
				}
				m.Normals = append(m.Normals, n)
			}
			m.Indices = append(m.Indices, idx)
		}
	}
	if missingNormals {
		m = m.RecomputeNormals()
	}
	return m
}

func parseFloats3(fields []string, n int) (f [3]float64, err error) {
	if len(fields) < n {
		return f, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	for i := 0; i < n; i++ {
		f[i], err = strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

// parseCorner parses v, v/vt, v//vn or v/vt/vn into 0-indexed values,
// -1 marking an absent reference.
func parseCorner(s string, nv, nvt, nvn int) (objCorner, error) {
	c := objCorner{v: -1, vt: -1, vn: -1}
	parts := strings.Split(s, "/")
	if len(parts) > 3 {
		return c, fmt.Errorf("bad face corner %q", s)
	}
	dst := [3]*int{&c.v, &c.vt, &c.vn}
	limits := [3]int{nv, nvt, nvn}
	for i, p := range parts {
		if p == "" {
			continue
		}
		k, err := strconv.Atoi(p)
		if err != nil {
			return c, fmt.Errorf("bad face corner %q: %w", s, err)
		}
		switch {
		case k > 0:
			k--
		case k < 0:
			k += limits[i]
		default:
			return c, fmt.Errorf("zero index in face corner %q", s)
		}
		if k < 0 || k >= limits[i] {
			return c, fmt.Errorf("face corner %q references missing element", s)
		}
		*dst[i] = k
	}
	if c.v < 0 {
		return c, fmt.Errorf("face corner %q has no position", s)
	}
	return c, nil
}
