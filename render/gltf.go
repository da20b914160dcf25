package render

import (
	"fmt"
	"io"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/soypat/depthmesh"
)

const gltfGenerator = "depthmesh"

// WriteGLTF writes m as a glTF 2.0 JSON document with the binary buffer
// embedded as a base64 data URI.
func WriteGLTF(w io.Writer, m depthmesh.Mesh, meta Meta) error {
	doc, err := gltfDocument(m, meta)
	if err != nil {
		return err
	}
	for _, b := range doc.Buffers {
		b.EmbeddedResource()
	}
	return encodeGLTF(w, doc, false)
}

// WriteGLB writes m as a binary glTF container.
func WriteGLB(w io.Writer, m depthmesh.Mesh, meta Meta) error {
	doc, err := gltfDocument(m, meta)
	if err != nil {
		return err
	}
	return encodeGLTF(w, doc, true)
}

func encodeGLTF(w io.Writer, doc *gltf.Document, binary bool) error {
	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("%w: gltf: %v", ErrExport, err)
	}
	return nil
}

// gltfDocument builds a single node scene holding one triangle primitive
// with interleaved POSITION, NORMAL and TEXCOORD_0 attributes. An empty
// mesh yields a scene with no nodes. Feature anchors are stored in the
// scene extras.
func gltfDocument(m depthmesh.Mesh, meta Meta) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	doc.Asset.Generator = gltfGenerator
	scene := doc.Scenes[0]
	scene.Name = meta.name()
	if extras := gltfExtras(meta); extras != nil {
		scene.Extras = extras
	}
	if m.Empty() {
		return doc, nil
	}

	positions := make([][3]float32, len(m.Positions))
	normals := make([][3]float32, len(m.Normals))
	uvs := make([][2]float32, len(m.UVs))
	for i, p := range m.Positions {
		positions[i] = f32From(p)
		if bad3F32(positions[i]) {
			return nil, fmt.Errorf("%w: inf/NaN vertex %d", ErrExport, i)
		}
		normals[i] = f32From(m.Normals[i])
		uv := m.UVs[i]
		// glTF places the texture origin at the top left.
		uvs[i] = [2]float32{float32(uv.X), float32(1 - uv.Y)}
	}
	attrs, err := modeler.WriteAttributesInterleaved(doc, modeler.Attributes{
		Position:       positions,
		Normal:         normals,
		TextureCoord_0: uvs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gltf attributes: %v", ErrExport, err)
	}
	indices := modeler.WriteIndices(doc, m.Indices)

	color := meta.baseColor()
	doc.Materials = []*gltf.Material{{
		Name: "surface",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{float32(color[0]), float32(color[1]), float32(color[2]), float32(color[3])},
			MetallicFactor:  gltf.Float(0.1),
			RoughnessFactor: gltf.Float(0.6),
		},
		DoubleSided: false,
	}}
	doc.Meshes = []*gltf.Mesh{{
		Name: meta.name(),
		Primitives: []*gltf.Primitive{{
			Attributes: attrs,
			Indices:    gltf.Index(uint32(indices)),
			Material:   gltf.Index(0),
			Mode:       gltf.PrimitiveTriangles,
		}},
	}}
	doc.Nodes = []*gltf.Node{{Name: meta.name(), Mesh: gltf.Index(0)}}
	scene.Nodes = append(scene.Nodes, 0)
	return doc, nil
}

func gltfExtras(meta Meta) map[string]any {
	if meta.ObjectType == "" && len(meta.Anchors) == 0 {
		return nil
	}
	extras := map[string]any{}
	if meta.ObjectType != "" {
		extras["objectType"] = meta.ObjectType
	}
	if len(meta.Anchors) > 0 {
		hotspots := make([]map[string]any, len(meta.Anchors))
		for i, a := range meta.Anchors {
			hotspots[i] = map[string]any{
				"id":          a.Feature.ID,
				"name":        a.Feature.Name,
				"description": a.Feature.Description,
				"color":       a.Feature.Color,
				"position":    f32From(a.Position),
				"normal":      f32From(a.Normal),
			}
		}
		extras["hotspots"] = hotspots
	}
	return extras
}
