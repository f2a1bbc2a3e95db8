// Package viewport resolves the overscanned render rectangle into a polygon
// in projected space by sampling the renderer's pixel→coordinate capability
// at the four corners.
//
// The resolver is deliberately all-or-nothing: either all four corners come
// back as valid coordinates and a 4-vertex polygon is returned, or the caller
// gets an error and must keep its previous state. A partial polygon would
// misclassify every marker, which is strictly worse than a skipped cycle.
package viewport

import (
	"context"
	"errors"
	"math"

	"github.com/paulmach/orb"

	"mapsearch/internal/domain/entities"
	"mapsearch/internal/geo"
)

// CoordinateSource is the renderer capability this package consumes: an
// asynchronous view-pixel to geographic-coordinate conversion. Implementations
// may fail transiently (mid-gesture, teardown) — every failure is treated as
// "temporarily unavailable" by callers, never cached, never fatal.
type CoordinateSource interface {
	PointToCoordinate(ctx context.Context, x, y float64) (entities.Coordinate, error)
}

var (
	// ErrNoSource means the renderer did not advertise the
	// point_to_coordinate capability; visibility filtering degrades to
	// "everything visible" upstream.
	ErrNoSource = errors.New("viewport: no coordinate source")

	// ErrBadSize means the logical viewport has a non-positive dimension.
	ErrBadSize = errors.New("viewport: viewport size not positive")

	// ErrPartial means fewer than four corners resolved to valid
	// coordinates this cycle.
	ErrPartial = errors.New("viewport: incomplete corner resolution")
)

// Overscan is the per-edge margin, in pixels, by which the visibility polygon
// extends beyond the clipped viewport.
//
// This value MUST match the oversized rendering region the render surface
// itself is styled with — the margins are exported to the client on session
// creation and on renderer connect for exactly that reason. If the two ever
// diverge, markers visibly snap at the edge because the computed polygon no
// longer matches what is actually drawn.
type Overscan struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
}

// MarkerOverscan derives the overscan margins from the rendered marker size:
// half the marker's width plus 1px rounding slack on each side, a small fixed
// top margin, and a full marker height plus slack at the bottom (markers are
// anchored above their coordinate, so they hang downward into the bottom
// margin before the anchor itself leaves the surface).
func MarkerOverscan(markerWidth, markerHeight, topMargin float64) Overscan {
	side := markerWidth/2 + 1
	return Overscan{
		Left:   side,
		Top:    topMargin,
		Right:  side,
		Bottom: markerHeight + 1,
	}
}

// Resolver samples the four corners of the overscanned rectangle and returns
// the resulting quadrilateral in projected space.
type Resolver struct {
	overscan Overscan
}

// NewResolver creates a resolver with fixed overscan margins.
func NewResolver(overscan Overscan) *Resolver {
	return &Resolver{overscan: overscan}
}

// Overscan returns the margins this resolver samples with — the one piece of
// state the visibility core exports outward.
func (r *Resolver) Overscan() Overscan {
	return r.overscan
}

// cornerResult carries one corner's outcome across the fan-in.
type cornerResult struct {
	index int
	coord entities.Coordinate
	err   error
}

// ResolvePolygon issues all four corner conversions concurrently and projects
// the answers into a ring ordered top-left, top-right, bottom-right,
// bottom-left. Any corner failure or invalid coordinate yields an error and
// no polygon.
//
// Go Learning Note — Fan-Out/Fan-In:
// The four corner lookups are independent, so each runs in its own goroutine
// and the results are collected over a buffered channel. sync.WaitGroup is
// not needed here because we know exactly how many results to read (four) —
// the receive loop itself is the join point.
func (r *Resolver) ResolvePolygon(ctx context.Context, src CoordinateSource, size entities.ViewportSize) (orb.Ring, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	if !size.Valid() {
		return nil, ErrBadSize
	}

	// Corner pixels of the overscanned rectangle. Edges sit at size−1
	// (clamped at 0 for degenerate sizes) before the margins push them out.
	right := math.Max(size.Width-1, 0) + r.overscan.Right
	bottom := math.Max(size.Height-1, 0) + r.overscan.Bottom
	corners := [4][2]float64{
		{-r.overscan.Left, -r.overscan.Top}, // top-left
		{right, -r.overscan.Top},            // top-right
		{right, bottom},                     // bottom-right
		{-r.overscan.Left, bottom},          // bottom-left
	}

	results := make(chan cornerResult, len(corners))
	for i, c := range corners {
		go func(i int, x, y float64) {
			// A panicking source must degrade to a failed cycle, not
			// take the scheduler down — the underlying bridge can be
			// torn down concurrently with a refresh.
			defer func() {
				if rec := recover(); rec != nil {
					results <- cornerResult{index: i, err: ErrPartial}
				}
			}()
			coord, err := src.PointToCoordinate(ctx, x, y)
			results <- cornerResult{index: i, coord: coord, err: err}
		}(i, c[0], c[1])
	}

	var coords [4]entities.Coordinate
	for range corners {
		res := <-results
		if res.err != nil {
			return nil, res.err
		}
		if !geo.ValidCoordinate(res.coord.Longitude, res.coord.Latitude) {
			return nil, ErrPartial
		}
		coords[res.index] = res.coord
	}

	ring := make(orb.Ring, 4)
	for i, c := range coords {
		ring[i] = geo.Project(c.Longitude, c.Latitude)
	}
	return ring, nil
}

// FuncSource adapts a plain function to the CoordinateSource interface.
type FuncSource func(ctx context.Context, x, y float64) (entities.Coordinate, error)

// PointToCoordinate implements CoordinateSource.
func (f FuncSource) PointToCoordinate(ctx context.Context, x, y float64) (entities.Coordinate, error) {
	return f(ctx, x, y)
}
