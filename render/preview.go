package render

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // texture decoder
	_ "image/jpeg" // texture decoder
	_ "image/png"  // texture decoder
	"io"
	"math"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/depthmesh"
	"github.com/soypat/depthmesh/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
	_ "golang.org/x/image/webp" // texture decoder
)

// PreviewOptions configures an offscreen preview render. The zero value
// renders an 800x600 image from the front with the fallback material.
type PreviewOptions struct {
	Width, Height int
	// Supersample renders at a multiple of the output size and downsamples
	// for antialiasing. Values below 1 are treated as 1.
	Supersample int
	// Eye is the camera position in normalized (bi-unit) model space.
	Eye r3.Vec
	// Fovy is the vertical field of view in degrees.
	Fovy float64
	// Color is the flat fallback material as a hex string.
	Color      string
	Background string
	// Texture is sampled through the mesh UVs when non-nil.
	Texture  image.Image
	Lighting *depthmesh.Lighting
	// MarkerSize is the hotspot marker edge length relative to the model.
	// Zero uses the default, negative hides markers.
	MarkerSize float64
}

const (
	defaultPreviewWidth  = 800
	defaultPreviewHeight = 600
	defaultMarkerSize    = 0.06
	defaultMaterialColor = "#d47a7a"
	defaultBackground    = "#fff8e3"
)

var defaultEye = r3.Vec{X: 0.6, Y: 0.8, Z: 3.2}

func (o PreviewOptions) withDefaults() PreviewOptions {
	if o.Width <= 0 {
		o.Width = defaultPreviewWidth
	}
	if o.Height <= 0 {
		o.Height = defaultPreviewHeight
	}
	if o.Supersample < 1 {
		o.Supersample = 1
	}
	if o.Eye == (r3.Vec{}) {
		o.Eye = defaultEye
	}
	if o.Fovy <= 0 || o.Fovy >= 180 {
		o.Fovy = 30
	}
	if o.Color == "" {
		o.Color = defaultMaterialColor
	}
	if o.Background == "" {
		o.Background = defaultBackground
	}
	if o.MarkerSize == 0 {
		o.MarkerSize = defaultMarkerSize
	}
	return o
}

// Preview renders m with a Phong shader. The mesh is fitted into a
// bi-unit cube centered at the origin. Each anchor is drawn as a small
// marker in its feature color. Swapping Texture re-renders the same
// geometry with no rebuild.
func Preview(m depthmesh.Mesh, anchors []depthmesh.Anchor, opt PreviewOptions) (image.Image, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	opt = opt.withDefaults()
	w, h := opt.Width*opt.Supersample, opt.Height*opt.Supersample
	context := fauxgl.NewContext(w, h)
	context.ClearColorBufferWith(fauxgl.HexColor(opt.Background))
	if m.Empty() {
		return downsample(context.Image(), opt), nil
	}

	fit := biUnitFit(m.Bounds())
	var (
		eye    = fauxgl.V(opt.Eye.X, opt.Eye.Y, opt.Eye.Z)
		center = fauxgl.V(0, 0, 0)
		up     = fauxgl.V(0, 1, 0)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
		aspect = float64(opt.Width) / float64(opt.Height)
		dist   = eye.Length()
	)
	ambient, diffuse := 0.2, 0.8
	if l := opt.Lighting; l != nil {
		if dir := fauxgl.V(l.Directional.Position[0], l.Directional.Position[1], l.Directional.Position[2]); dir.Length() > 0 {
			light = dir.Normalize()
		}
		ambient = d3.Clamp(l.Ambient, 0, 1)
		diffuse = d3.Clamp(l.Directional.Intensity, 0, 1)
	}
	matrix := fauxgl.LookAt(eye, center, up).Perspective(opt.Fovy, aspect, math.Max(dist-2, 0.01), dist+2)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor(opt.Color)
	shader.AmbientColor = fauxgl.Gray(ambient)
	shader.DiffuseColor = fauxgl.Gray(diffuse)
	if opt.Texture != nil {
		shader.Texture = fauxgl.NewImageTexture(opt.Texture)
	}
	context.Shader = shader

	mesh := fauxglMesh(m)
	mesh.Transform(fit)
	context.DrawMesh(mesh)

	if opt.MarkerSize > 0 {
		shader.Texture = nil
		for _, a := range anchors {
			if a.Vertex < 0 {
				continue
			}
			c := featureColor(a.Feature.Color, opt.Color)
			shader.ObjectColor = c
			marker := fauxgl.NewCube()
			offset := r3.Add(a.Position, r3.Scale(opt.MarkerSize/2, a.Normal))
			marker.Transform(fauxgl.Scale(fauxgl.V(opt.MarkerSize, opt.MarkerSize, opt.MarkerSize)).
				Translate(fit.MulPosition(fauxgl.V(offset.X, offset.Y, offset.Z))))
			context.DrawMesh(marker)
		}
	}
	return downsample(context.Image(), opt), nil
}

// LoadTexture decodes a PNG, JPEG, GIF or WebP image.
func LoadTexture(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding texture: %w", err)
	}
	return img, nil
}

func downsample(img image.Image, opt PreviewOptions) image.Image {
	if opt.Supersample == 1 {
		return img
	}
	return resize.Resize(uint(opt.Width), uint(opt.Height), img, resize.Bilinear)
}

// biUnitFit maps the box into [-1,1]³ preserving proportions.
func biUnitFit(b r3.Box) fauxgl.Matrix {
	size := r3.Sub(b.Max, b.Min)
	extent := math.Max(size.X, math.Max(size.Y, size.Z))
	k := 1.0
	if extent > 0 {
		k = 2 / extent
	}
	c := r3.Scale(0.5, r3.Add(b.Min, b.Max))
	return fauxgl.Translate(fauxgl.V(-c.X, -c.Y, -c.Z)).Scale(fauxgl.V(k, k, k))
}

func fauxglMesh(m depthmesh.Mesh) *fauxgl.Mesh {
	vertex := func(i uint32) fauxgl.Vertex {
		p, n, uv := m.Positions[i], m.Normals[i], m.UVs[i]
		return fauxgl.Vertex{
			Position: fauxgl.V(p.X, p.Y, p.Z),
			Normal:   fauxgl.V(n.X, n.Y, n.Z),
			Texture:  fauxgl.V(uv.X, uv.Y, 0),
		}
	}
	triangles := make([]*fauxgl.Triangle, 0, m.TriangleCount())
	for i := 0; i+2 < len(m.Indices); i += 3 {
		triangles = append(triangles, fauxgl.NewTriangle(
			vertex(m.Indices[i]), vertex(m.Indices[i+1]), vertex(m.Indices[i+2]),
		))
	}
	return fauxgl.NewTriangleMesh(triangles)
}

var errBadHex = errors.New("bad hex color")

func featureColor(hex, fallback string) fauxgl.Color {
	if err := checkHex(hex); err != nil {
		hex = fallback
	}
	return fauxgl.HexColor(hex)
}

func checkHex(s string) error {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 3 && len(s) != 6 {
		return errBadHex
	}
	for _, r := range s {
		if !('0' <= r && r <= '9' || 'a' <= r && r <= 'f' || 'A' <= r && r <= 'F') {
			return errBadHex
		}
	}
	return nil
}
