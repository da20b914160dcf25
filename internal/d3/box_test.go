package d3

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestFit(t *testing.T) {
	b := Box{Min: r3.Vec{X: 1, Y: 2, Z: 3}, Max: r3.Vec{X: 5, Y: 3, Z: 4}}
	s := Fit(b, 2)
	got := Set{s.Apply(b.Min), s.Apply(b.Max)}.Bounds()
	want := Box{Min: r3.Vec{X: -1, Y: -0.25, Z: -0.25}, Max: r3.Vec{X: 1, Y: 0.25, Z: 0.25}}
	if !equalWithin(got.Min, want.Min, 1e-12) || !equalWithin(got.Max, want.Max, 1e-12) {
		t.Errorf("got %v. want %v", got, want)
	}
	if got := Max(got.Size()); math.Abs(got-2) > 1e-12 {
		t.Errorf("got largest dimension %g. want 2", got)
	}
}

func TestFitDegenerate(t *testing.T) {
	b := Box{Min: r3.Vec{X: 1, Y: 1, Z: 1}, Max: r3.Vec{X: 1, Y: 1, Z: 1}}
	s := Fit(b, 3)
	if got := s.Apply(b.Min); got != (r3.Vec{}) {
		t.Errorf("degenerate box not centered: %v", got)
	}
	if s.Scale != 1 {
		t.Errorf("got scale %g. want 1", s.Scale)
	}
}

func TestSetBoundsEmpty(t *testing.T) {
	if got := (Set{}).Bounds(); got != (Box{}) {
		t.Errorf("got %v. want zero box", got)
	}
}

func equalWithin(a, b r3.Vec, tol float64) bool {
	return math.Abs(a.X-b.X) <= tol &&
		math.Abs(a.Y-b.Y) <= tol &&
		math.Abs(a.Z-b.Z) <= tol
}
