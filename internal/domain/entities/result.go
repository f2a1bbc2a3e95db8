// Package entities defines the core domain models for the map search system.
// These structs represent the business concepts (SearchResult, Coordinate,
// CameraState) and live in the innermost layer of the architecture — they have
// no dependencies on HTTP, websockets, or the geometry packages.
package entities

import "fmt"

// Coordinate represents a geographic coordinate pair in degrees.
//
// Go Learning Note — Value Types vs Reference Types:
// Coordinate is a small, immutable data holder, so it is passed by value
// everywhere (16 bytes, two float64s). Copies are cheap and value semantics
// rule out aliasing bugs — no caller can mutate a coordinate another caller
// is holding.
type Coordinate struct {
	Longitude float64 `json:"lng"`
	Latitude  float64 `json:"lat"`
}

// ResultCategory distinguishes the active result tab in the search UI.
// Switching categories rebuilds the marker catalog from scratch (new render
// key, reveal state reset), whereas paging within a category extends it.
type ResultCategory string

const (
	CategoryPlaces ResultCategory = "places"
	CategoryItems  ResultCategory = "items"
)

// SearchResult is one entry of a search result page as delivered by the
// surrounding search UI. The visibility engine never talks to the search
// backend itself; results arrive fully formed.
type SearchResult struct {
	EntityID  string         `json:"entity_id"`
	FeatureID string         `json:"feature_id,omitempty"`
	Name      string         `json:"name"`
	Coord     Coordinate     `json:"coord"`
	Rank      int            `json:"rank"`
	Category  ResultCategory `json:"category,omitempty"`
	Color     string         `json:"color,omitempty"`
}

// MarkerKey derives the stable marker identity for this result: the feature
// id when the renderer supplied one, otherwise an {entityID, rank} composite.
// The key is reused across refresh cycles so reveal and visibility state
// persist per logical marker, not per render.
func (r SearchResult) MarkerKey() string {
	if r.FeatureID != "" {
		return r.FeatureID
	}
	return fmt.Sprintf("%s:%d", r.EntityID, r.Rank)
}
