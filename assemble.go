package depthmesh

import (
	"math"
	"sync"

	"github.com/soypat/depthmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultCanonicalSize is the largest extent of an assembled mesh at Scale 1.
	DefaultCanonicalSize = 3.0
	// DefaultDampedStrength scales the depth multiplier when depth detail
	// is layered onto a parametric base shape.
	DefaultDampedStrength = 0.3
)

// Assembler turns a classification, build parameters and an optional
// depth grid into a normalized mesh. The zero value uses the defaults.
type Assembler struct {
	// CanonicalSize is the largest extent of the output mesh before Scale
	// is applied. Zero means DefaultCanonicalSize.
	CanonicalSize float64
	// DampedStrength multiplies DepthMultiplier when displacing a
	// parametric shape. Zero means DefaultDampedStrength; negative
	// disables displacement.
	DampedStrength float64
	// Seed drives the organic surface noise.
	Seed int64
}

func (a Assembler) canonicalSize() float64 {
	if a.CanonicalSize > 0 && finite(a.CanonicalSize) {
		return a.CanonicalSize
	}
	return DefaultCanonicalSize
}

func (a Assembler) dampedStrength() float64 {
	if a.DampedStrength == 0 || !finite(a.DampedStrength) {
		return DefaultDampedStrength
	}
	return math.Max(0, a.DampedStrength)
}

// Assemble builds the mesh for shape. Relief, primitive and unknown shapes
// are built from the depth grid, substituting DomeGrid when grid is
// unusable. Parametric shapes are generated and, when a grid is present,
// displaced by it with damped strength. The result is centered on the
// origin with its largest extent equal to CanonicalSize*params.Scale.
func (a Assembler) Assemble(shape Shape, params GeometryParams, grid DepthGrid) Mesh {
	return a.assemble(shape, params, grid).mesh
}

// Build assembles the mesh described by b and returns it as a Model
// ready for export and feature anchoring.
func (a Assembler) Build(b Bundle) *Model {
	m := a.assemble(b.Shape, b.Params, b.DepthGrid)
	m.Bundle = b
	return m
}

func (a Assembler) assemble(shape Shape, params GeometryParams, grid DepthGrid) *Model {
	params = params.Sanitize()
	grid = grid.Sanitize()
	model := &Model{Shape: shape, Params: params}
	var base Mesh
	if shape.Parametric() {
		base = Generate(shape, params.DetailLevel, a.Seed)
		if strength := a.dampedStrength(); grid != nil && strength > 0 {
			base = Displace(base, grid, strength*params.DepthMultiplier)
		}
	} else {
		if grid == nil {
			grid = DomeGrid(FallbackGridSize)
		}
		// Cannot fail: grid is valid at this point.
		relief, _ := BuildRelief(grid, params.DepthMultiplier, params.AspectRatio, params.DetailLevel)
		base = relief.Mesh
		model.reliefGrid = grid
	}
	model.rawBounds = base.Bounds()
	fit := d3.Fit(d3.Box(model.rawBounds), a.canonicalSize()*params.Scale)
	model.mesh = base.Map(fit.Apply)
	model.fit = fit
	return model
}

// Model is an assembled mesh together with the inputs that produced it.
type Model struct {
	Bundle Bundle
	Shape  Shape
	Params GeometryParams

	mesh       Mesh
	rawBounds  r3.Box
	reliefGrid DepthGrid
	fit        d3.Similarity

	once  sync.Once
	index vertexIndex
}

// Mesh returns the normalized mesh. Callers must not modify it.
func (m *Model) Mesh() Mesh { return m.mesh }

// Anchor is the surface point a feature resolves to.
type Anchor struct {
	Feature  Feature
	Position r3.Vec
	Normal   r3.Vec
	// Vertex is the index of the mesh vertex the anchor snapped to,
	// -1 for an empty mesh.
	Vertex int
}

// Anchor places f on the model surface. Image-plane positions are mapped
// through the generator's parameterization (relief: depth sampling,
// parametric: the θ/φ sweep facing the viewer) and snapped to the
// nearest vertex. Explicit 3D positions are taken in model space and
// snapped the same way.
func (m *Model) Anchor(f Feature) Anchor {
	m.once.Do(func() { m.index = newVertexIndex(m.mesh.Positions) })
	var target r3.Vec
	if f.Position.Is3D() {
		target = r3.Vec{X: f.Position.X, Y: f.Position.Y, Z: *f.Position.Z}
	} else {
		target = m.fit.Apply(m.imagePoint(f.Position.X, f.Position.Y))
	}
	a := Anchor{Feature: f, Position: target, Vertex: m.index.Nearest(target)}
	if a.Vertex >= 0 {
		a.Position = m.mesh.Positions[a.Vertex]
		a.Normal = m.mesh.Normals[a.Vertex]
	}
	return a
}

// Anchors resolves every feature of the model's bundle.
func (m *Model) Anchors() []Anchor {
	anchors := make([]Anchor, len(m.Bundle.Features))
	for i, f := range m.Bundle.Features {
		anchors[i] = m.Anchor(f)
	}
	return anchors
}

// imagePoint maps normalized image coordinates (x right, y down) to the
// pre-normalization build space.
func (m *Model) imagePoint(x, y float64) r3.Vec {
	if m.reliefGrid != nil {
		asp := m.Params.AspectRatio
		cx, cy := 2*x-1, 1-2*y
		depth := m.reliefGrid.Sample(x, y)
		z := (1-depth)*asp[2]*m.Params.DepthMultiplier + ReliefDome*(1-cx*cx-cy*cy)
		return r3.Vec{X: cx * asp[0], Y: cy * asp[1], Z: z}
	}
	// Left of the image is φ=π, right is φ=0, so the front (φ=π/2) faces +z.
	theta := d3.Clamp(y, 0, 1) * pi
	phi := (1 - d3.Clamp(x, 0, 1)) * pi
	st, ct := math.Sincos(theta)
	sp, cp := math.Sincos(phi)
	b := d3.Box(m.rawBounds)
	half := r3.Scale(0.5, b.Size())
	dir := r3.Vec{X: st * cp, Y: ct, Z: st * sp}
	return r3.Add(b.Center(), d3.MulElem(dir, half))
}
