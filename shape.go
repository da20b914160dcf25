package depthmesh

import "strings"

// Shape is the closed set of classifications a bundle may carry.
type Shape uint8

const (
	// ShapeUnknown is any classification not otherwise recognized.
	ShapeUnknown Shape = iota
	ShapeHeart
	ShapeBrain
	ShapeLung
	ShapeKidney
	ShapeOrganic
	ShapeRelief
	ShapeSphere
	ShapeBox
	ShapeCylinder
)

var shapeNames = [...]string{
	ShapeUnknown:  "unknown",
	ShapeHeart:    "heart",
	ShapeBrain:    "brain",
	ShapeLung:     "lung",
	ShapeKidney:   "kidney",
	ShapeOrganic:  "organic",
	ShapeRelief:   "relief",
	ShapeSphere:   "sphere",
	ShapeBox:      "box",
	ShapeCylinder: "cylinder",
}

// ParseShape matches a classification case-insensitively. "lungs" is an
// alias of lung and "organ" of organic. Unrecognized input returns
// ShapeUnknown; ParseShape never fails.
func ParseShape(s string) Shape {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heart":
		return ShapeHeart
	case "brain":
		return ShapeBrain
	case "lung", "lungs":
		return ShapeLung
	case "kidney":
		return ShapeKidney
	case "organic", "organ":
		return ShapeOrganic
	case "relief":
		return ShapeRelief
	case "sphere":
		return ShapeSphere
	case "box":
		return ShapeBox
	case "cylinder":
		return ShapeCylinder
	}
	return ShapeUnknown
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return shapeNames[ShapeUnknown]
}

// Parametric reports whether s has a dedicated parametric surface
// generator. Relief, primitive and unknown shapes are built from depth.
func (s Shape) Parametric() bool {
	switch s {
	case ShapeHeart, ShapeBrain, ShapeLung, ShapeKidney, ShapeOrganic:
		return true
	}
	return false
}

// MarshalText implements encoding.TextMarshaler.
func (s Shape) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler. It never fails.
func (s *Shape) UnmarshalText(b []byte) error {
	*s = ParseShape(string(b))
	return nil
}
