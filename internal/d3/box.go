package d3

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// d3.Box is a 3d bounding box.
type Box r3.Box

// Include enlarges a 3d box to include a point.
func (a Box) Include(v r3.Vec) Box {
	return Box{
		Min: MinElem(a.Min, v),
		Max: MaxElem(a.Max, v),
	}
}

// Size returns the size of a 3d box.
func (a Box) Size() r3.Vec {
	return r3.Sub(a.Max, a.Min)
}

// Center returns the center of a 3d box.
func (a Box) Center() r3.Vec {
	return r3.Add(a.Min, r3.Scale(0.5, a.Size()))
}

// Similarity is a uniform scale followed by a translation:
//  p' = Scale*p + Offset
// The zero value maps every point to the origin.
type Similarity struct {
	Scale  float64
	Offset r3.Vec
}

// Fit returns the Similarity that centers box b on the origin and scales
// it so its largest dimension equals size. Degenerate boxes only get centered.
func Fit(b Box, size float64) Similarity {
	c := b.Center()
	k := 1.0
	if ext := Max(b.Size()); ext > 0 {
		k = size / ext
	}
	return Similarity{Scale: k, Offset: r3.Scale(-k, c)}
}

// Apply transforms a point.
func (s Similarity) Apply(p r3.Vec) r3.Vec {
	return r3.Add(r3.Scale(s.Scale, p), s.Offset)
}
