package depthmesh

import (
	"math"
	"math/rand"

	"github.com/soypat/depthmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	pi  = math.Pi
	tau = 2 * math.Pi
)

// SurfaceConfig holds the shape constants of a parametric generator.
// Fields a generator does not use are left zero.
type SurfaceConfig struct {
	// Scale is the uniform scale applied after deformation.
	Scale float64
	// Radii are the ellipsoid semi-axes: width, tallness and depth.
	Radii r3.Vec
	// NoiseFrequencies and NoiseAmplitudes describe additive radial
	// noise octaves. Frequencies are integers so the φ seam closes.
	NoiseFrequencies [3]float64
	NoiseAmplitudes  [3]float64
	// Indent is the depth of the shape's carved feature: heart cleft,
	// brain fissure, cardiac notch or renal hilum.
	Indent float64
	// Lobe is the lobe gain of the heart, the lobe ripple of the lungs
	// and the bean bias of the kidney.
	Lobe float64
	// Flatten is the heart back depth, the brain base squash and the lung apex taper.
	Flatten float64
	// Offset is the lateral placement of paired organs.
	Offset float64
}

var surfaceConfigs = map[Shape]SurfaceConfig{
	ShapeHeart: {
		Scale:   1.8,
		Radii:   r3.Vec{X: 1, Y: 1, Z: 1},
		Indent:  0.25,
		Lobe:    0.35,
		Flatten: 0.85,
	},
	ShapeBrain: {
		Scale:            1.5,
		Radii:            r3.Vec{X: 1.3, Y: 0.9, Z: 1.1},
		NoiseFrequencies: [3]float64{6, 11, 8},
		NoiseAmplitudes:  [3]float64{0.08, 0.04, 0.06},
		Indent:           0.15,
		Flatten:          0.5,
	},
	ShapeLung: {
		Scale:   1.4,
		Radii:   r3.Vec{X: 0.7, Y: 1.4, Z: 0.5},
		Indent:  0.25,
		Lobe:    0.05,
		Flatten: 0.35,
		Offset:  0.9,
	},
	ShapeKidney: {
		Scale:  2.0,
		Radii:  r3.Vec{X: 1, Y: 0.5, Z: 0.4},
		Indent: 0.35,
		Lobe:   0.2,
	},
	ShapeOrganic: {
		Scale:            1.5,
		Radii:            r3.Vec{X: 1, Y: 1, Z: 1},
		NoiseFrequencies: [3]float64{3, 7},
		NoiseAmplitudes:  [3]float64{0.12, 0.05},
	},
}

// ConfigFor returns the generator constants for shape. Shapes without a
// parametric generator get the organic configuration.
func ConfigFor(shape Shape) SurfaceConfig {
	if cfg, ok := surfaceConfigs[shape]; ok {
		return cfg
	}
	return surfaceConfigs[ShapeOrganic]
}

// Generate builds the parametric surface for shape at the given detail
// level, clamped to [MinDetail, MaxDetail]. Shapes without a dedicated
// generator produce the organic surface. seed only affects organic noise.
func Generate(shape Shape, detail int, seed int64) Mesh {
	return GenerateWith(shape, ConfigFor(shape), detail, seed)
}

// GenerateWith is Generate using explicit shape constants.
func GenerateWith(shape Shape, cfg SurfaceConfig, detail int, seed int64) Mesh {
	detail = ClampDetail(detail)
	switch shape {
	case ShapeHeart:
		return heart(cfg, detail)
	case ShapeBrain:
		return brain(cfg, detail)
	case ShapeLung:
		return Merge(lung(cfg, detail, true), lung(cfg, detail, false))
	case ShapeKidney:
		return kidney(cfg, detail)
	default:
		return organic(cfg, detail, rand.New(rand.NewSource(seed)))
	}
}

// Heart returns the heart surface.
func Heart(detail int) Mesh { return Generate(ShapeHeart, detail, 0) }

// Brain returns the brain surface.
func Brain(detail int) Mesh { return Generate(ShapeBrain, detail, 0) }

// Kidney returns the kidney surface.
func Kidney(detail int) Mesh { return Generate(ShapeKidney, detail, 0) }

// Organic returns a noisy blob whose noise phases derive from seed.
func Organic(detail int, seed int64) Mesh { return Generate(ShapeOrganic, detail, seed) }

// Lung returns a single lung. The left lung sits on +x with its cardiac
// notch facing -x; the right lung mirrors it.
func Lung(detail int, left bool) Mesh {
	return lung(ConfigFor(ShapeLung), ClampDetail(detail), left)
}

// sweep evaluates deform over a (detail+1)x(detail+1) grid of
// θ∈[0,π] (rows) and φ∈[0,2π] (columns). deform receives the unit sphere
// point (sinθcosφ, cosθ, sinθsinφ) and returns the displaced position.
// Normals are the normalized displaced position and UVs are (u, 1-v).
func sweep(detail int, deform func(theta, phi float64, p r3.Vec) r3.Vec) Mesh {
	lat, lon := detail, detail
	nv := (lat + 1) * (lon + 1)
	m := Mesh{
		Positions: make([]r3.Vec, 0, nv),
		Normals:   make([]r3.Vec, 0, nv),
		UVs:       make([]r2.Vec, 0, nv),
		Indices:   make([]uint32, 0, lat*lon*6),
	}
	for i := 0; i <= lat; i++ {
		v := float64(i) / float64(lat)
		theta := v * pi
		st, ct := math.Sincos(theta)
		for j := 0; j <= lon; j++ {
			u := float64(j) / float64(lon)
			phi := u * tau
			sp, cp := math.Sincos(phi)
			p := deform(theta, phi, r3.Vec{X: st * cp, Y: ct, Z: st * sp})
			m.Positions = append(m.Positions, p)
			m.Normals = append(m.Normals, d3.Unit(p))
			m.UVs = append(m.UVs, r2.Vec{X: u, Y: 1 - v})
		}
	}
	stride := uint32(lon + 1)
	for i := 0; i < lat; i++ {
		for j := 0; j < lon; j++ {
			a := uint32(i)*stride + uint32(j)
			b := a + stride
			// Counter-clockwise seen from outside.
			m.Indices = append(m.Indices, a, a+1, b, b, a+1, b+1)
		}
	}
	return m
}

func heart(cfg SurfaceConfig, detail int) Mesh {
	return sweep(detail, func(theta, phi float64, p r3.Vec) r3.Vec {
		y0 := p.Y
		if y0 > 0 {
			// Two lobes left and right, split by a cleft at the front.
			lobe := 1 + cfg.Lobe*math.Pow(math.Abs(math.Cos(phi)), 0.6)*y0
			cleft := gauss(phi-pi/2, 0.35) * y0 * math.Sin(theta)
			k := lobe * (1 - cfg.Indent*cleft)
			p.X *= k
			p.Z *= k
			p.Y -= 0.6 * cfg.Indent * cleft
		}
		if y0 < -0.2 {
			t := (-y0 - 0.2) / 0.8
			k := 1 - 0.6*t
			p.X *= k
			p.Z *= k
			p.Y *= 1 + 0.25*t
		}
		if y0 > -0.3 && y0 < 0.3 {
			k := 1 + 0.1*math.Cos(y0/0.3*pi/2)
			p.X *= k
			p.Z *= k
		}
		if math.Sin(phi) < 0 {
			p.Z *= cfg.Flatten
		}
		return r3.Scale(cfg.Scale, d3.MulElem(p, cfg.Radii))
	})
}

func brain(cfg SurfaceConfig, detail int) Mesh {
	f, a := cfg.NoiseFrequencies, cfg.NoiseAmplitudes
	return sweep(detail, func(theta, phi float64, p r3.Vec) r3.Vec {
		// Every φ dependent term carries a sin(kθ) factor so the poles stay closed.
		sulci := a[0]*math.Sin(f[0]*theta)*math.Cos(f[0]*phi) +
			a[1]*math.Sin(f[1]*theta)*math.Sin(f[1]*phi) +
			a[2]*math.Sin(f[2]*theta)*math.Cos(f[2]*phi+theta)
		fissure := cfg.Indent * math.Exp(-sq(8*p.Z)) * smoothstep(-0.2, 0.2, p.Y)
		y0 := p.Y
		p = r3.Scale(1+sulci-fissure, p)
		if y0 < -0.3 {
			p.Y = -0.3 + (p.Y+0.3)*cfg.Flatten
		}
		return r3.Scale(cfg.Scale, d3.MulElem(p, cfg.Radii))
	})
}

func lung(cfg SurfaceConfig, detail int, left bool) Mesh {
	side, notchAt := 1.0, pi
	if !left {
		side, notchAt = -1, 0
	}
	m := sweep(detail, func(theta, phi float64, p r3.Vec) r3.Vec {
		y0 := p.Y
		if y0 > 0 {
			k := 1 - cfg.Flatten*y0
			p.X *= k
			p.Z *= k
		}
		if y0 > -0.8 && y0 < 0.2 {
			k := 1 - cfg.Lobe*math.Abs(math.Sin(3*pi*(y0+0.8)))
			p.X *= k
			p.Z *= k
		}
		notch := cfg.Indent * gauss(angleDiff(phi, notchAt), 0.5) * gauss(y0+0.2, 0.35)
		p.X *= 1 - notch
		return r3.Scale(cfg.Scale, d3.MulElem(p, cfg.Radii))
	})
	shift := r3.Vec{X: side * cfg.Offset * cfg.Scale}
	for i := range m.Positions {
		m.Positions[i] = r3.Add(m.Positions[i], shift)
	}
	return m
}

func kidney(cfg SurfaceConfig, detail int) Mesh {
	return sweep(detail, func(theta, phi float64, p r3.Vec) r3.Vec {
		hilum := cfg.Indent * gauss(angleDiff(phi, pi), 0.6) * gauss(p.Y, 0.4)
		p.X *= 1 - hilum
		p.X += cfg.Lobe * math.Sin(theta) * math.Tanh(8*math.Cos(phi))
		return r3.Scale(cfg.Scale, d3.MulElem(p, cfg.Radii))
	})
}

func organic(cfg SurfaceConfig, detail int, rng *rand.Rand) Mesh {
	f, a := cfg.NoiseFrequencies, cfg.NoiseAmplitudes
	p0, p1 := rng.Float64()*tau, rng.Float64()*tau
	return sweep(detail, func(theta, phi float64, p r3.Vec) r3.Vec {
		n := a[0]*math.Sin(f[0]*theta)*math.Sin(f[0]*phi+p0) +
			a[1]*math.Sin(f[1]*theta)*math.Cos(f[1]*phi+p1)
		return r3.Scale(cfg.Scale*(1+n), d3.MulElem(p, cfg.Radii))
	})
}

// gauss is exp(-(x/w)²).
func gauss(x, w float64) float64 { return math.Exp(-sq(x / w)) }

func sq(x float64) float64 { return x * x }

// angleDiff returns the wrapped distance between two angles in [0,π].
func angleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), tau)
	if d > pi {
		d = tau - d
	}
	return d
}

func smoothstep(e0, e1, x float64) float64 {
	t := d3.Clamp((x-e0)/(e1-e0), 0, 1)
	return t * t * (3 - 2*t)
}
