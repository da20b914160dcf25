// Package render serializes assembled meshes to interchange formats
// (OBJ, STL, glTF) and draws offscreen previews of them.
package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/soypat/depthmesh"
)

// ErrExport is wrapped by every failure to serialize a mesh.
var ErrExport = errors.New("export failed")

// DefaultName is used for exported file and object names when a model has no title.
const DefaultName = "hololearn_model"

// Format is a model interchange format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatOBJ
	FormatSTL
	FormatGLTF
	FormatGLB
)

var formats = [...]struct {
	name, ext, contentType string
}{
	FormatUnknown: {"unknown", "", "application/octet-stream"},
	FormatOBJ:     {"obj", ".obj", "text/plain"},
	FormatSTL:     {"stl", ".stl", "application/octet-stream"},
	FormatGLTF:    {"gltf", ".gltf", "application/json"},
	FormatGLB:     {"glb", ".glb", "model/gltf-binary"},
}

// ParseFormat parses a format name or file extension, case insensitive.
func ParseFormat(s string) (Format, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".")
	for f := FormatOBJ; int(f) < len(formats); f++ {
		if formats[f].name == s {
			return f, nil
		}
	}
	return FormatUnknown, fmt.Errorf("%w: unsupported format %q", ErrExport, s)
}

// FormatFromPath picks the format from a file name extension.
func FormatFromPath(path string) (Format, error) {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return FormatUnknown, fmt.Errorf("%w: %q has no extension", ErrExport, path)
	}
	return ParseFormat(path[i:])
}

func (f Format) valid() bool { return f > FormatUnknown && int(f) < len(formats) }

func (f Format) String() string {
	if !f.valid() {
		return formats[FormatUnknown].name
	}
	return formats[f].name
}

// Extension returns the file extension including the leading dot.
func (f Format) Extension() string {
	if !f.valid() {
		return ""
	}
	return formats[f].ext
}

// ContentType returns the MIME type served for downloads of the format.
func (f Format) ContentType() string {
	if !f.valid() {
		return formats[FormatUnknown].contentType
	}
	return formats[f].contentType
}

// FileName derives a download name from a model title and a timestamp
// so repeated exports do not collide.
func FileName(title string, f Format, at time.Time) string {
	name := sanitizeName(title)
	if name == "" {
		name = DefaultName
	}
	return fmt.Sprintf("%s_%d%s", name, at.UnixMilli(), f.Extension())
}

func sanitizeName(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case !lastUnderscore && b.Len() > 0:
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// Meta carries the non-geometric data written alongside a mesh.
type Meta struct {
	// Name of the object. Empty means DefaultName.
	Name       string
	ObjectType string
	// BaseColor is the fallback material color as linear RGBA.
	BaseColor [4]float64
	Anchors   []depthmesh.Anchor
}

// MetaFor collects export metadata from an assembled model.
func MetaFor(model *depthmesh.Model, title string) Meta {
	return Meta{
		Name:       title,
		ObjectType: model.Bundle.ObjectType,
		Anchors:    model.Anchors(),
	}
}

func (m Meta) name() string {
	if n := sanitizeName(m.Name); n != "" {
		return n
	}
	return DefaultName
}

func (m Meta) baseColor() [4]float64 {
	if m.BaseColor == ([4]float64{}) {
		return defaultBaseColor
	}
	return m.BaseColor
}

var defaultBaseColor = [4]float64{0.8, 0.45, 0.45, 1}

// Export writes the mesh in the given format.
func Export(w io.Writer, f Format, m depthmesh.Mesh, meta Meta) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}
	switch f {
	case FormatOBJ:
		return WriteOBJ(w, m, meta)
	case FormatSTL:
		return WriteSTL(w, m)
	case FormatGLTF:
		return WriteGLTF(w, m, meta)
	case FormatGLB:
		return WriteGLB(w, m, meta)
	}
	return fmt.Errorf("%w: unsupported format %v", ErrExport, f)
}
