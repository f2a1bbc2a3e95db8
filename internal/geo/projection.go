// Package geo provides the pure geometric primitives the visibility engine is
// built on: a Web-Mercator-style projection into a planar space, and a
// point-in-polygon containment test over that space.
//
// Everything in this package is a total, side-effect-free function. The rest
// of the system (resolver, scheduler, orchestrator) deals with asynchrony and
// state; this package deliberately deals with neither, which is what makes it
// trivially table-testable.
//
// Go Learning Note — "github.com/paulmach/orb":
// orb is the de facto geometry vocabulary in the Go geo ecosystem. orb.Point
// is just [2]float64 ([0]=X, [1]=Y) and orb.Ring is []orb.Point, so using them
// costs nothing over hand-rolled structs while keeping our types compatible
// with the wider ecosystem (GeoJSON encoding, planar helpers, etc.).
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// MaxMercatorLatitude is the standard Mercator latitude bound. Latitudes are
// clamped to ±this value before projection so that y = ln(tan(π/4 + lat/2))
// stays finite — at the poles the expression diverges.
const MaxMercatorLatitude = 85.05112878

// Project maps a geographic coordinate (degrees) to a point in the planar
// projection used for containment tests. x is the longitude in radians and
// y is the Mercator-stretched latitude. The projection is only used to
// compare points against a polygon sampled through the same function, so no
// scaling to pixels or tiles is applied.
func Project(lng, lat float64) orb.Point {
	if lat > MaxMercatorLatitude {
		lat = MaxMercatorLatitude
	} else if lat < -MaxMercatorLatitude {
		lat = -MaxMercatorLatitude
	}

	lngRad := lng * math.Pi / 180
	latRad := lat * math.Pi / 180

	return orb.Point{
		lngRad,
		math.Log(math.Tan(math.Pi/4 + latRad/2)),
	}
}

// ValidCoordinate reports whether lng/lat form a usable coordinate pair.
// Render surfaces occasionally answer corner queries with NaN or ±Inf while
// mid-gesture or during teardown; such answers must be rejected rather than
// projected.
func ValidCoordinate(lng, lat float64) bool {
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return false
	}
	return true
}
