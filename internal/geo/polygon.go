package geo

import "github.com/paulmach/orb"

// RingContains reports whether point lies inside the polygon described by
// ring, using the standard even-odd ray-casting test: cast a horizontal ray
// from the point and toggle containment every time the ray crosses an edge
// whose crossing x-coordinate exceeds the point's x.
//
// Degenerate and collinear edges fall through the same formula without
// special-casing, and exact boundary touches keep the usual ray-casting
// ambiguity — callers sample an overscanned polygon precisely so that
// boundary jitter never matters.
//
// The ring is treated as implicitly closed (last vertex connects back to the
// first); callers pass open rings. O(len(ring)) per query. Viewport polygons
// happen to be quadrilaterals, but nothing here assumes that.
func RingContains(point orb.Point, ring orb.Ring) bool {
	inside := false

	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		crosses := (yi > point[1]) != (yj > point[1]) &&
			point[0] < (xj-xi)*(point[1]-yi)/(yj-yi)+xi
		if crosses {
			inside = !inside
		}
	}

	return inside
}
