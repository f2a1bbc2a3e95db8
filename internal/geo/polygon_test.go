package geo

import (
	"testing"

	"github.com/paulmach/orb"
)

// unit square with corners at (0,0) and (10,10), vertices in the order the
// viewport resolver produces them: top-left, top-right, bottom-right,
// bottom-left.
func squareRing() orb.Ring {
	return orb.Ring{
		{0, 10},
		{10, 10},
		{10, 0},
		{0, 0},
	}
}

func TestRingContains(t *testing.T) {
	tests := []struct {
		name  string
		point orb.Point
		want  bool
	}{
		{name: "center", point: orb.Point{5, 5}, want: true},
		{name: "near corner inside", point: orb.Point{0.001, 0.001}, want: true},
		{name: "near top edge inside", point: orb.Point{5, 9.999}, want: true},
		{name: "left of square", point: orb.Point{-1, 5}, want: false},
		{name: "right of square", point: orb.Point{11, 5}, want: false},
		{name: "above square", point: orb.Point{5, 12}, want: false},
		{name: "below square", point: orb.Point{5, -0.5}, want: false},
		{name: "far away", point: orb.Point{1000, -1000}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RingContains(tt.point, squareRing()); got != tt.want {
				t.Errorf("RingContains(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

// TestRingContainsRotationInvariant checks that containment does not depend
// on which vertex the ring starts at — the same polygon must classify
// non-boundary points identically under any rotation of its vertex list.
func TestRingContainsRotationInvariant(t *testing.T) {
	base := squareRing()
	points := []orb.Point{
		{5, 5},
		{0.5, 9.5},
		{9.5, 0.5},
		{-3, 3},
		{5, 15},
		{10.5, 10.5},
	}

	for rot := 0; rot < len(base); rot++ {
		rotated := make(orb.Ring, len(base))
		for i := range base {
			rotated[i] = base[(i+rot)%len(base)]
		}
		for _, p := range points {
			if got, want := RingContains(p, rotated), RingContains(p, base); got != want {
				t.Errorf("rotation %d: RingContains(%v) = %v, want %v", rot, p, got, want)
			}
		}
	}
}

// A non-convex polygon exercises the even-odd rule beyond the quadrilateral
// case the viewport produces.
func TestRingContainsConcavePolygon(t *testing.T) {
	// U-shaped hexagon: notch cut into the top between x=3 and x=7.
	ring := orb.Ring{
		{0, 10},
		{3, 10},
		{3, 4},
		{7, 4},
		{7, 10},
		{10, 10},
		{10, 0},
		{0, 0},
	}

	tests := []struct {
		name  string
		point orb.Point
		want  bool
	}{
		{name: "inside left arm", point: orb.Point{1.5, 8}, want: true},
		{name: "inside right arm", point: orb.Point{8.5, 8}, want: true},
		{name: "inside base", point: orb.Point{5, 2}, want: true},
		{name: "inside the notch", point: orb.Point{5, 8}, want: false},
		{name: "outside entirely", point: orb.Point{12, 5}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RingContains(tt.point, ring); got != tt.want {
				t.Errorf("RingContains(%v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestRingContainsDegenerateRings(t *testing.T) {
	p := orb.Point{1, 1}

	if RingContains(p, orb.Ring{}) {
		t.Error("empty ring should contain nothing")
	}
	if RingContains(p, orb.Ring{{0, 0}}) {
		t.Error("single-vertex ring should contain nothing")
	}
	if RingContains(p, orb.Ring{{0, 0}, {5, 5}}) {
		t.Error("two-vertex ring should contain nothing")
	}
	// Collinear edge on the ray's y: must not panic, same formula applies.
	ring := orb.Ring{{0, 1}, {5, 1}, {5, 0}, {0, 0}}
	_ = RingContains(orb.Point{2, 1}, ring)
}
