package depthmesh

import (
	"fmt"
	"math"
)

// FallbackGridSize is the dimension of the synthesized dome grid.
const FallbackGridSize = 32

// DomeGrid returns a size×size depth grid shaped like a centered
// hemispherical dome with a faint sinusoidal surface texture. The center
// is nearest to the viewer. The result is deterministic.
func DomeGrid(size int) DepthGrid {
	if size < 2 {
		size = 2
	}
	g := make(DepthGrid, size)
	for i := range g {
		g[i] = make([]float64, size)
		y := 2*float64(i)/float64(size-1) - 1
		for j := range g[i] {
			x := 2*float64(j)/float64(size-1) - 1
			h := math.Sqrt(math.Max(0, 1-x*x-y*y))
			noise := 0.03 * math.Sin(3*pi*x) * math.Cos(3*pi*y)
			g[i][j] = clamp01(0.85 - 0.6*h + noise)
		}
	}
	return g
}

var featurePalette = [...]string{"#ef4444", "#3b82f6", "#22c55e", "#f59e0b", "#a855f7", "#14b8a6"}

type featureStub struct {
	name, desc string
	x, y       float64
}

var defaultFeatureSets = map[Shape][]featureStub{
	ShapeHeart: {
		{"Left Ventricle", "Pumps oxygenated blood into the aorta and out to the body.", 0.62, 0.62},
		{"Right Ventricle", "Pumps deoxygenated blood into the pulmonary artery toward the lungs.", 0.38, 0.6},
		{"Left Atrium", "Receives oxygenated blood returning from the lungs.", 0.62, 0.3},
		{"Right Atrium", "Receives deoxygenated blood returning from the body.", 0.36, 0.32},
		{"Aorta", "The main artery carrying blood from the heart to the body.", 0.5, 0.1},
	},
	ShapeBrain: {
		{"Frontal Lobe", "Involved in reasoning, planning and voluntary movement.", 0.25, 0.35},
		{"Parietal Lobe", "Processes touch, temperature and spatial awareness.", 0.55, 0.2},
		{"Temporal Lobe", "Handles hearing, language comprehension and memory.", 0.4, 0.6},
		{"Occipital Lobe", "The visual processing center of the brain.", 0.82, 0.4},
		{"Cerebellum", "Coordinates balance, posture and fine motor control.", 0.75, 0.8},
	},
	ShapeLung: {
		{"Right Upper Lobe", "The top lobe of the right lung.", 0.3, 0.25},
		{"Right Middle Lobe", "Unique to the right lung, between the upper and lower lobes.", 0.3, 0.5},
		{"Right Lower Lobe", "The largest lobe of the right lung, resting on the diaphragm.", 0.3, 0.75},
		{"Left Upper Lobe", "The top lobe of the left lung, including the lingula.", 0.7, 0.3},
		{"Left Lower Lobe", "The bottom lobe of the left lung.", 0.7, 0.72},
		{"Cardiac Notch", "An indentation in the left lung that makes room for the heart.", 0.6, 0.55},
	},
	ShapeKidney: {
		{"Renal Cortex", "Outer layer where blood filtration begins.", 0.8, 0.5},
		{"Renal Medulla", "Inner region of pyramids that concentrate urine.", 0.6, 0.45},
		{"Renal Pelvis", "Funnel that collects urine before it enters the ureter.", 0.35, 0.5},
		{"Hilum", "Entry point for the renal artery, vein and ureter.", 0.2, 0.55},
	},
}

var genericFeatures = []featureStub{
	{"Center", "The central region of the object.", 0.5, 0.5},
	{"Top", "The upper region of the object.", 0.5, 0.15},
	{"Left", "The left side of the object.", 0.15, 0.5},
	{"Right", "The right side of the object.", 0.85, 0.5},
	{"Bottom", "The lower region of the object.", 0.5, 0.85},
}

// DefaultFeatures returns a stand-in annotation set for shape. Anatomical
// shapes get named structures, everything else generic regions.
func DefaultFeatures(shape Shape) []Feature {
	stubs, ok := defaultFeatureSets[shape]
	if !ok {
		stubs = genericFeatures
	}
	features := make([]Feature, len(stubs))
	for i, s := range stubs {
		features[i] = Feature{
			ID:          fmt.Sprintf("feature-%d", i+1),
			Name:        s.name,
			Description: s.desc,
			Position:    FeaturePosition{X: s.x, Y: s.y},
			Color:       featurePalette[i%len(featurePalette)],
		}
	}
	return features
}

// SynthesizeBundle returns the bundle used when the analyzer response
// cannot be used at all. shape is the best available guess and may be
// ShapeUnknown.
func SynthesizeBundle(shape Shape) Bundle {
	return Bundle{
		ObjectType:         "3D Object",
		Shape:              shape,
		Params:             DefaultParams(),
		DepthGrid:          DomeGrid(FallbackGridSize),
		Features:           DefaultFeatures(shape),
		SuggestedMaterials: []string{"standard", "metallic"},
		Lighting:           DefaultLighting(),
		Synthesized:        true,
	}
}

// DefaultLighting is the lighting suggestion of synthesized bundles.
func DefaultLighting() *Lighting {
	return &Lighting{
		Ambient: 0.4,
		Directional: DirectionalLight{
			Intensity: 0.8,
			Position:  [3]float64{5, 5, 5},
		},
	}
}
