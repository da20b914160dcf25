package render_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/render"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/cmpimg"
)

// imgDelta is the normalized tolerance for image comparison
// (0: perfect match, 1: loose match).
const imgDelta = 0

func encodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var b bytes.Buffer
	if err := png.Encode(&b, img); err != nil {
		t.Fatal(err)
	}
	return b.Bytes()
}

func TestPreviewDeterministic(t *testing.T) {
	model := heartModel(t)
	opt := render.PreviewOptions{Width: 96, Height: 72, Supersample: 2}
	img1, err := render.Preview(model.Mesh(), model.Anchors(), opt)
	require.NoError(t, err)
	img2, err := render.Preview(model.Mesh(), model.Anchors(), opt)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 96, 72), img1.Bounds())

	equal, err := cmpimg.EqualApprox("png", encodePNG(t, img1), encodePNG(t, img2), imgDelta)
	require.NoError(t, err)
	if !equal {
		t.Error("rendered previews of the same model differ")
	}
}

func TestPreviewDrawsModel(t *testing.T) {
	model := heartModel(t)
	img, err := render.Preview(model.Mesh(), nil, render.PreviewOptions{Width: 64, Height: 64})
	require.NoError(t, err)
	background := color.NRGBAModel.Convert(img.At(0, 0)).(color.NRGBA)
	center := color.NRGBAModel.Convert(img.At(32, 32)).(color.NRGBA)
	assert.NotEqual(t, background, center, "model should cover the image center")
}

func TestPreviewTextureSwap(t *testing.T) {
	model := heartModel(t)
	mesh := model.Mesh()
	opt := render.PreviewOptions{Width: 64, Height: 64, MarkerSize: -1}
	flat, err := render.Preview(mesh, nil, opt)
	require.NoError(t, err)

	tex := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range tex.Pix {
		tex.Pix[i] = 255
		if i%4 == 0 || i%4 == 1 {
			tex.Pix[i] = 0 // opaque blue
		}
	}
	opt.Texture = tex
	textured, err := render.Preview(mesh, nil, opt)
	require.NoError(t, err)
	equal, err := cmpimg.EqualApprox("png", encodePNG(t, flat), encodePNG(t, textured), imgDelta)
	require.NoError(t, err)
	assert.False(t, equal, "texture should change the shading")
	assert.Equal(t, model.Mesh(), mesh, "geometry untouched by texturing")
}

func TestPreviewEmptyMesh(t *testing.T) {
	img, err := render.Preview(depthmesh.Mesh{}, nil, render.PreviewOptions{Width: 8, Height: 8, Background: "#102030"})
	require.NoError(t, err)
	got := color.NRGBAModel.Convert(img.At(4, 4)).(color.NRGBA)
	assert.InDelta(t, 0x10, int(got.R), 1)
	assert.InDelta(t, 0x20, int(got.G), 1)
	assert.InDelta(t, 0x30, int(got.B), 1)
	assert.InDelta(t, 0xff, int(got.A), 1)
}

func TestLoadTexture(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img, err := render.LoadTexture(bytes.NewReader(encodePNG(t, src)))
	require.NoError(t, err)
	assert.Equal(t, src.Bounds(), img.Bounds())
	_, err = render.LoadTexture(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}

func TestWriteDepthHeatMap(t *testing.T) {
	var b bytes.Buffer
	require.NoError(t, render.WriteDepthHeatMap(&b, depthmesh.DomeGrid(16), render.HeatMapOptions{Title: "dome"}))
	img, err := png.Decode(&b)
	require.NoError(t, err)
	assert.False(t, img.Bounds().Empty())

	err = render.WriteDepthHeatMap(&b, depthmesh.DepthGrid{{0.5}}, render.HeatMapOptions{})
	assert.ErrorIs(t, err, depthmesh.ErrInvalidGrid)
}

func BenchmarkPreview(b *testing.B) {
	model := depthmesh.Assembler{}.Build(depthmesh.SynthesizeBundle(depthmesh.ShapeBrain))
	for i := 0; i < b.N; i++ {
		if _, err := render.Preview(model.Mesh(), model.Anchors(), render.PreviewOptions{}); err != nil {
			b.Fatal(err)
		}
	}
}
