package depthmesh

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// FeaturePosition locates a feature either on the image plane (X, Y in
// [0,1], Z nil) or explicitly in model space (Z set).
type FeaturePosition struct {
	X float64  `json:"x"`
	Y float64  `json:"y"`
	Z *float64 `json:"z,omitempty"`
}

// Is3D reports whether the position carries an explicit z coordinate.
func (p FeaturePosition) Is3D() bool { return p.Z != nil }

// Feature is an annotation anchored on the generated surface.
type Feature struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Position    FeaturePosition `json:"position"`
	Color       string          `json:"color"`
}

// DirectionalLight is a lighting hint.
type DirectionalLight struct {
	Intensity float64    `json:"intensity"`
	Position  [3]float64 `json:"position"`
}

// Lighting is the analyzer's lighting suggestion.
type Lighting struct {
	Ambient     float64          `json:"ambient"`
	Directional DirectionalLight `json:"directional"`
}

// Bundle is the object description produced by the analyzer and stored
// alongside each conversion.
type Bundle struct {
	ObjectType         string         `json:"objectType"`
	Shape              Shape          `json:"shapeType"`
	Params             GeometryParams `json:"geometryParams"`
	DepthGrid          DepthGrid      `json:"depthGrid,omitempty"`
	Features           []Feature      `json:"features"`
	SuggestedMaterials []string       `json:"suggestedMaterials,omitempty"`
	Lighting           *Lighting      `json:"lighting,omitempty"`
	OriginalImageURL   string         `json:"originalImageUrl,omitempty"`
	ProcessedAt        *time.Time     `json:"processedAt,omitempty"`
	// Synthesized is set when the bundle was generated locally because
	// the analyzer output could not be decoded at all.
	Synthesized bool `json:"synthesized,omitempty"`
	// Recovered lists the fields that were missing or malformed and
	// replaced with defaults during decoding.
	Recovered []string `json:"-"`
}

var fenceRx = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ExtractJSON returns the JSON payload of analyzer output. Content inside
// a markdown code fence takes precedence; otherwise the text between the
// first '{' and the last '}' is returned.
func ExtractJSON(text string) string {
	if m := fenceRx.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start, end := strings.IndexByte(text, '{'), strings.LastIndexByte(text, '}')
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// ParseBundle decodes analyzer output into a Bundle. It never fails:
// malformed fields fall back to defaults one by one, and a payload that
// is not a JSON object at all yields SynthesizeBundle with a shape
// guessed from the raw text.
func ParseBundle(text string) Bundle {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(ExtractJSON(text)), &raw); err != nil || raw == nil {
		return SynthesizeBundle(GuessShape(text))
	}
	var b Bundle
	note := func(field string) { b.Recovered = append(b.Recovered, field) }

	if !decodeField(raw, "objectType", &b.ObjectType) || b.ObjectType == "" {
		b.ObjectType = "3D Object"
		note("objectType")
	}
	var shape string
	if decodeField(raw, "shapeType", &shape) {
		b.Shape = ParseShape(shape)
	} else {
		b.Shape = GuessShape(b.ObjectType)
		note("shapeType")
	}
	b.Params = decodeParams(raw, note)

	if _, ok := raw["depthGrid"]; ok {
		b.DepthGrid = decodeGrid(raw["depthGrid"])
		if b.DepthGrid == nil {
			note("depthGrid")
		}
	}
	b.Features = decodeFeatures(raw["features"])
	if len(b.Features) == 0 {
		b.Features = DefaultFeatures(b.Shape)
		note("features")
	}
	decodeField(raw, "suggestedMaterials", &b.SuggestedMaterials)
	var light Lighting
	if decodeField(raw, "lighting", &light) {
		b.Lighting = &light
	}
	decodeField(raw, "originalImageUrl", &b.OriginalImageURL)
	var ts time.Time
	if decodeField(raw, "processedAt", &ts) {
		b.ProcessedAt = &ts
	}
	return b
}

// GuessShape looks for a shape keyword in free text such as an object
// type description. It returns ShapeUnknown when nothing matches.
func GuessShape(text string) Shape {
	lower := strings.ToLower(text)
	for _, s := range []Shape{ShapeHeart, ShapeBrain, ShapeLung, ShapeKidney} {
		if strings.Contains(lower, s.String()) {
			return s
		}
	}
	return ShapeUnknown
}

func decodeField(raw map[string]json.RawMessage, key string, dst any) bool {
	v, ok := raw[key]
	if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return false
	}
	return json.Unmarshal(v, dst) == nil
}

func decodeParams(raw map[string]json.RawMessage, note func(string)) GeometryParams {
	p := DefaultParams()
	var fields map[string]json.RawMessage
	if !decodeField(raw, "geometryParams", &fields) {
		note("geometryParams")
		fields = map[string]json.RawMessage{}
	}
	// Older analyzer prompts put scale at the top level.
	if _, ok := fields["scale"]; !ok {
		if legacy, ok := raw["scale"]; ok {
			fields["scale"] = legacy
		}
	}
	var f float64
	if decodeField(fields, "scale", &f) {
		p.Scale = f
	}
	if decodeField(fields, "detailLevel", &f) {
		p.DetailLevel = int(math.Round(f))
	}
	if decodeField(fields, "depthMultiplier", &f) {
		p.DepthMultiplier = f
	}
	var aspect []float64
	if decodeField(fields, "aspectRatio", &aspect) && len(aspect) == 3 {
		copy(p.AspectRatio[:], aspect)
	}
	return p.Sanitize()
}

// decodeGrid accepts rows of numbers where null cells are allowed. It
// returns the sanitized grid or nil if the value is unusable.
func decodeGrid(v json.RawMessage) DepthGrid {
	var cells [][]*float64
	if err := json.Unmarshal(v, &cells); err != nil {
		return nil
	}
	g := make(DepthGrid, len(cells))
	for i, row := range cells {
		g[i] = make([]float64, len(row))
		for j, c := range row {
			if c == nil {
				g[i][j] = math.NaN()
				continue
			}
			g[i][j] = *c
		}
	}
	return g.Sanitize()
}

func decodeFeatures(v json.RawMessage) []Feature {
	var items []json.RawMessage
	if json.Unmarshal(v, &items) != nil {
		return nil
	}
	features := make([]Feature, 0, len(items))
	seen := make(map[string]bool)
	for i, item := range items {
		var f Feature
		if json.Unmarshal(item, &f) != nil || f.Name == "" {
			continue
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("feature-%d", i+1)
		}
		for base, n := f.ID, 2; seen[f.ID]; n++ {
			f.ID = fmt.Sprintf("%s-%d", base, n)
		}
		seen[f.ID] = true
		if f.Color == "" {
			f.Color = featurePalette[len(features)%len(featurePalette)]
		}
		features = append(features, f)
	}
	return features
}
