package depthmesh

import "math"

// Tessellation limits and defaults.
const (
	MinDetail     = 2
	MaxDetail     = 256
	DefaultDetail = 64

	DefaultScale           = 1.0
	DefaultDepthMultiplier = 2.0
)

// DefaultAspectRatio is the relief scale vector used when none is given.
var DefaultAspectRatio = [3]float64{1, 1, 0.5}

// GeometryParams are the build hints that accompany a shape classification.
type GeometryParams struct {
	// Scale is the uniform multiplier applied after canonical normalization.
	Scale float64 `json:"scale"`
	// DetailLevel is the tessellation resolution in segments per axis.
	DetailLevel int `json:"detailLevel"`
	// DepthMultiplier controls how strongly depth displaces geometry.
	DepthMultiplier float64 `json:"depthMultiplier"`
	// AspectRatio scales relief builds along x, y and z.
	AspectRatio [3]float64 `json:"aspectRatio"`
}

// DefaultParams returns the parameters used when the analyzer provides none.
func DefaultParams() GeometryParams {
	return GeometryParams{
		Scale:           DefaultScale,
		DetailLevel:     DefaultDetail,
		DepthMultiplier: DefaultDepthMultiplier,
		AspectRatio:     DefaultAspectRatio,
	}
}

// Sanitize returns p with every field forced into a usable range.
// Non-positive or non-finite scale becomes DefaultScale, detail level is
// clamped to [MinDetail, MaxDetail], negative multipliers become zero and
// unusable aspect components fall back to DefaultAspectRatio.
func (p GeometryParams) Sanitize() GeometryParams {
	if !finite(p.Scale) || p.Scale <= 0 {
		p.Scale = DefaultScale
	}
	p.DetailLevel = ClampDetail(p.DetailLevel)
	switch {
	case !finite(p.DepthMultiplier):
		p.DepthMultiplier = DefaultDepthMultiplier
	case p.DepthMultiplier < 0:
		p.DepthMultiplier = 0
	}
	for i, a := range p.AspectRatio {
		if !finite(a) || a < 0 {
			p.AspectRatio[i] = DefaultAspectRatio[i]
		}
	}
	if p.AspectRatio[0] == 0 || p.AspectRatio[1] == 0 {
		// A zero footprint cannot be normalized.
		p.AspectRatio[0], p.AspectRatio[1] = DefaultAspectRatio[0], DefaultAspectRatio[1]
	}
	return p
}

// ClampDetail clamps a tessellation resolution to [MinDetail, MaxDetail].
func ClampDetail(detail int) int {
	if detail < MinDetail {
		return MinDetail
	}
	if detail > MaxDetail {
		return MaxDetail
	}
	return detail
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
