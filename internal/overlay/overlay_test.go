package overlay

import "testing"

func TestGeometryLetterboxDefaultsFalse(t *testing.T) {
	var g Geometry
	if g.Letterbox {
		t.Fatal("zero-value Geometry should not be letterboxed")
	}
}
