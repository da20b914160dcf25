package depthmesh_test

import (
	"encoding/json"
	"testing"

	"github.com/soypat/depthmesh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	for _, test := range []struct {
		in, want string
	}{
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "Here you go:\n```\n{\"a\":2}\n``` hope it helps", want: `{"a":2}`},
		{in: `prefix {"a":3} suffix`, want: `{"a":3}`},
		{in: "  plain  ", want: "plain"},
	} {
		if got := depthmesh.ExtractJSON(test.in); got != test.want {
			t.Errorf("ExtractJSON(%q) got %q. want %q", test.in, got, test.want)
		}
	}
}

func TestParseBundleFull(t *testing.T) {
	b := depthmesh.ParseBundle("```json\n" + `{
		"objectType": "Human Heart",
		"shapeType": "HEART",
		"geometryParams": {"scale": 1.5, "detailLevel": 48, "depthMultiplier": 3, "aspectRatio": [1, 0.8, 0.4]},
		"depthGrid": [[0, 0.5], [1, null]],
		"features": [{"id": "lv", "name": "Left Ventricle", "description": "d", "position": {"x": 0.6, "y": 0.6}, "color": "#ff0000"}],
		"suggestedMaterials": ["standard"],
		"lighting": {"ambient": 0.4, "directional": {"intensity": 0.8, "position": [5, 5, 5]}},
		"originalImageUrl": "https://example.com/heart.png",
		"processedAt": "2024-05-01T10:00:00Z"
	}` + "\n```")
	assert.False(t, b.Synthesized)
	assert.Empty(t, b.Recovered)
	assert.Equal(t, "Human Heart", b.ObjectType)
	assert.Equal(t, depthmesh.ShapeHeart, b.Shape)
	assert.Equal(t, depthmesh.GeometryParams{Scale: 1.5, DetailLevel: 48, DepthMultiplier: 3, AspectRatio: [3]float64{1, 0.8, 0.4}}, b.Params)
	assert.Equal(t, depthmesh.DepthGrid{{0, 0.5}, {1, 0.5}}, b.DepthGrid)
	require.Len(t, b.Features, 1)
	assert.Equal(t, "lv", b.Features[0].ID)
	assert.False(t, b.Features[0].Position.Is3D())
	require.NotNil(t, b.Lighting)
	assert.Equal(t, 0.8, b.Lighting.Directional.Intensity)
	require.NotNil(t, b.ProcessedAt)
	assert.Equal(t, 2024, b.ProcessedAt.Year())
}

func TestParseBundleFieldFallbacks(t *testing.T) {
	b := depthmesh.ParseBundle(`{
		"objectType": 12,
		"geometryParams": {"scale": "big", "detailLevel": -4, "depthMultiplier": -1, "aspectRatio": [1, 2]},
		"depthGrid": [["a"]],
		"features": "none",
		"scale": 2
	}`)
	assert.False(t, b.Synthesized)
	assert.Equal(t, "3D Object", b.ObjectType)
	assert.Equal(t, depthmesh.ShapeUnknown, b.Shape)
	assert.Equal(t, depthmesh.DefaultScale, b.Params.Scale, "malformed nested scale wins over the legacy field")
	assert.Equal(t, depthmesh.MinDetail, b.Params.DetailLevel)
	assert.Equal(t, 0.0, b.Params.DepthMultiplier)
	assert.Equal(t, depthmesh.DefaultAspectRatio, b.Params.AspectRatio)
	assert.Nil(t, b.DepthGrid)
	assert.Len(t, b.Features, 5, "generic defaults")
	assert.ElementsMatch(t, []string{"objectType", "shapeType", "depthGrid", "features"}, b.Recovered)
}

func TestParseBundleLegacyScale(t *testing.T) {
	b := depthmesh.ParseBundle(`{"shapeType":"kidney","scale":1.25}`)
	assert.Equal(t, 1.25, b.Params.Scale)
	assert.Equal(t, depthmesh.DefaultDetail, b.Params.DetailLevel)
	assert.Contains(t, b.Recovered, "geometryParams")
	assert.Len(t, b.Features, 4)
}

func TestParseBundleSynthesized(t *testing.T) {
	b := depthmesh.ParseBundle("The image shows a human brain but I can't output JSON.")
	assert.True(t, b.Synthesized)
	assert.Equal(t, depthmesh.ShapeBrain, b.Shape)
	assert.True(t, b.DepthGrid.Valid())
	assert.GreaterOrEqual(t, len(b.Features), 4)
	assert.LessOrEqual(t, len(b.Features), 6)
	assert.Equal(t, depthmesh.DefaultParams(), b.Params)
}

func TestDefaultFeaturesUnique(t *testing.T) {
	for _, shape := range []depthmesh.Shape{depthmesh.ShapeHeart, depthmesh.ShapeBrain, depthmesh.ShapeLung, depthmesh.ShapeKidney, depthmesh.ShapeRelief} {
		features := depthmesh.DefaultFeatures(shape)
		if len(features) < 4 || len(features) > 6 {
			t.Errorf("%s: got %d default features. want 4 to 6", shape, len(features))
		}
		ids := make(map[string]bool)
		for _, f := range features {
			if ids[f.ID] {
				t.Errorf("%s: duplicate id %q", shape, f.ID)
			}
			ids[f.ID] = true
		}
	}
}

func TestBundleJSONRoundTrip(t *testing.T) {
	want := depthmesh.SynthesizeBundle(depthmesh.ShapeLung)
	b, err := json.Marshal(want)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"shapeType":"lung"`)
	var got depthmesh.Bundle
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, want, got)
}
