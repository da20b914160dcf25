package render

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/chewxy/math32"
	"github.com/hschendel/stl"
	"github.com/soypat/depthmesh"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	stlHeaderSize   = 84
	stlTriangleSize = 50
)

// stlHeader defines the STL file header.
type stlHeader struct {
	_     [80]uint8 // Header
	Count uint32    // Number of triangles
}

// WriteSTL writes m as a binary STL triangle soup. Shared vertices are
// expanded so each record carries its own face normal and three corners.
// An empty mesh writes a header with a zero triangle count.
func WriteSTL(w io.Writer, m depthmesh.Mesh) error {
	nt := m.TriangleCount()
	bw := bufio.NewWriterSize(w, stlTriangleSize*1024)
	header := stlHeader{Count: uint32(nt)}
	if err := binary.Write(bw, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("%w: stl header: %v", ErrExport, err)
	}
	var (
		b [stlTriangleSize]byte
		d stlTriangle
	)
	for i := 0; i < nt; i++ {
		d = stlTriangleFrom(m.Triangle(i))
		if bad3F32(d.Vertex1) || bad3F32(d.Vertex2) || bad3F32(d.Vertex3) {
			return fmt.Errorf("%w: inf/NaN vertex in triangle %d", ErrExport, i)
		}
		d.put(b[:])
		if _, err := bw.Write(b[:]); err != nil {
			return fmt.Errorf("%w: stl: %v", ErrExport, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: stl: %v", ErrExport, err)
	}
	return nil
}

// WriteSTLASCII writes m as an ASCII STL solid.
func WriteSTLASCII(w io.Writer, m depthmesh.Mesh, meta Meta) error {
	solid := stl.Solid{
		Name:      meta.name(),
		IsAscii:   true,
		Triangles: make([]stl.Triangle, m.TriangleCount()),
	}
	for i := range solid.Triangles {
		d := stlTriangleFrom(m.Triangle(i))
		if bad3F32(d.Vertex1) || bad3F32(d.Vertex2) || bad3F32(d.Vertex3) {
			return fmt.Errorf("%w: inf/NaN vertex in triangle %d", ErrExport, i)
		}
		t := &solid.Triangles[i]
		t.Normal[0], t.Normal[1], t.Normal[2] = d.Normal[0], d.Normal[1], d.Normal[2]
		t.Vertices[0] = stl.Vec3(d.Vertex1)
		t.Vertices[1] = stl.Vec3(d.Vertex2)
		t.Vertices[2] = stl.Vec3(d.Vertex3)
	}
	if err := solid.WriteAll(w); err != nil {
		return fmt.Errorf("%w: ascii stl: %v", ErrExport, err)
	}
	return nil
}

// ReadSTL reads a binary STL file into an unindexed mesh, three vertices
// per triangle, with the stored face normal on every corner. Degenerate
// triangles such as those collapsed at sphere poles are kept.
func ReadSTL(r io.Reader) (m depthmesh.Mesh, readErr error) {
	var header stlHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return m, errors.New("encountered EOF while reading STL header")
		}
		return m, errors.New("STL header read failed: " + err.Error())
	}
	var (
		buf [stlTriangleSize]byte
		d   stlTriangle
		i   int
	)
	defer func() {
		if readErr != nil {
			readErr = fmt.Errorf("%d/%d STL triangles read: %w", i, header.Count, readErr)
		}
	}()
	n := int(header.Count)
	m.Positions = make([]r3.Vec, 0, 3*n)
	m.Normals = make([]r3.Vec, 0, 3*n)
	m.UVs = make([]r2.Vec, 0, 3*n)
	m.Indices = make([]uint32, 0, 3*n)
	for i = 0; i < n; i++ {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return depthmesh.Mesh{}, err
		}
		d.get(buf[:])
		if err := d.validate(); err != nil {
			return depthmesh.Mesh{}, err
		}
		normal := r3From3F32(d.Normal)
		for _, v := range [3][3]float32{d.Vertex1, d.Vertex2, d.Vertex3} {
			m.Indices = append(m.Indices, uint32(len(m.Positions)))
			m.Positions = append(m.Positions, r3From3F32(v))
			m.Normals = append(m.Normals, normal)
			m.UVs = append(m.UVs, r2.Vec{})
		}
	}
	return m, nil
}

// stlTriangle defines the triangle data within an STL file.
type stlTriangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
	_       uint16 // Attribute byte count
}

func stlTriangleFrom(tri [3]r3.Vec) stlTriangle {
	return stlTriangle{
		Normal:  f32From(faceNormal(tri)),
		Vertex1: f32From(tri[0]),
		Vertex2: f32From(tri[1]),
		Vertex3: f32From(tri[2]),
	}
}

// faceNormal returns the unit normal of a counter clockwise triangle or
// the zero vector for a degenerate one.
func faceNormal(tri [3]r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(tri[1], tri[0]), r3.Sub(tri[2], tri[0]))
	l := r3.Norm(n)
	if l == 0 || math.IsNaN(l) {
		return r3.Vec{}
	}
	return r3.Scale(1/l, n)
}

func (t stlTriangle) put(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to marshal stlTriangle")
	}
	put3F32(b, t.Normal)
	put3F32(b[12:], t.Vertex1)
	put3F32(b[24:], t.Vertex2)
	put3F32(b[36:], t.Vertex3)
	binary.LittleEndian.PutUint16(b[48:], 0)
}

func (t *stlTriangle) get(b []byte) {
	if len(b) < stlTriangleSize {
		panic("need length 50 to unmarshal stlTriangle")
	}
	get3F32(b, &t.Normal)
	get3F32(b[12:], &t.Vertex1)
	get3F32(b[24:], &t.Vertex2)
	get3F32(b[36:], &t.Vertex3)
	// no attributes supported yet.
}

func (t stlTriangle) validate() error {
	if bad3F32(t.Normal) {
		return errors.New("inf/NaN STL triangle normal")
	}
	if bad3F32(t.Vertex1) || bad3F32(t.Vertex2) || bad3F32(t.Vertex3) {
		return errors.New("inf/NaN STL triangle vertex")
	}
	return nil
}

func put3F32(b []byte, f [3]float32) {
	_ = b[11] // early bounds check
	binary.LittleEndian.PutUint32(b, math.Float32bits(f[0]))
	binary.LittleEndian.PutUint32(b[4:], math.Float32bits(f[1]))
	binary.LittleEndian.PutUint32(b[8:], math.Float32bits(f[2]))
}

func get3F32(b []byte, f *[3]float32) {
	_ = b[11] // early bounds check
	f[0] = math.Float32frombits(binary.LittleEndian.Uint32(b))
	f[1] = math.Float32frombits(binary.LittleEndian.Uint32(b[4:]))
	f[2] = math.Float32frombits(binary.LittleEndian.Uint32(b[8:]))
}

func bad3F32(f [3]float32) bool {
	return math32.IsNaN(f[0]) || math32.IsInf(f[0], 0) ||
		math32.IsNaN(f[1]) || math32.IsInf(f[1], 0) ||
		math32.IsNaN(f[2]) || math32.IsInf(f[2], 0)
}

func f32From(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}

func r3From3F32(f [3]float32) r3.Vec {
	return r3.Vec{X: float64(f[0]), Y: float64(f[1]), Z: float64(f[2])}
}
