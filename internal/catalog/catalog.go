// Package catalog maintains the ordered marker catalog the visibility engine
// works over: one Entry per logical marker, deduplicated by key, with the
// projected point precomputed so every visibility refresh is a pure
// point-in-polygon sweep with no trigonometry on the hot path.
package catalog

import (
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb"

	"mapsearch/internal/domain/entities"
	"mapsearch/internal/geo"
)

// Entry is one marker of the catalog.
type Entry struct {
	Key       string              `json:"key"`
	Coord     entities.Coordinate `json:"coord"`
	Projected orb.Point           `json:"-"`
	Rank      int                 `json:"rank"`
	Name      string              `json:"name,omitempty"`
	Color     string              `json:"color,omitempty"`
}

// Build converts a result page into render-ordered catalog entries. Results
// are deduplicated by marker key (first occurrence wins) and sorted
// deterministically: primary key rank, tie-break by arrival order within the
// page, final tie-break by lexical key order. Render order decides both
// z-ordering on the map and stagger grouping during reveal waves, so it must
// be stable and reproducible across deliveries.
func Build(results []entities.SearchResult) []Entry {
	type ordered struct {
		entry Entry
		seq   int
	}

	seen := make(map[string]struct{}, len(results))
	items := make([]ordered, 0, len(results))
	for i, r := range results {
		key := r.MarkerKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, ordered{
			entry: Entry{
				Key:       key,
				Coord:     r.Coord,
				Projected: geo.Project(r.Coord.Longitude, r.Coord.Latitude),
				Rank:      r.Rank,
				Name:      r.Name,
				Color:     r.Color,
			},
			seq: i,
		})
	}

	sort.SliceStable(items, func(a, b int) bool {
		if items[a].entry.Rank != items[b].entry.Rank {
			return items[a].entry.Rank < items[b].entry.Rank
		}
		if items[a].seq != items[b].seq {
			return items[a].seq < items[b].seq
		}
		return items[a].entry.Key < items[b].entry.Key
	})

	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = it.entry
	}
	return entries
}

// RenderKey encodes an entry list as a single string so catalog identity can
// be compared cheaply. A render key that is a strict prefix-extension of the
// previous one means markers were appended to the same base set (a
// continuation page) rather than replaced.
func RenderKey(entries []Entry) string {
	keys := make([]string, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return strings.Join(keys, "|")
}

// Catalog is the mutex-guarded holder of the current entry list. Result
// deliveries always replace the list wholesale before the next scheduled
// refresh reads it — readers never observe a half-updated catalog.
type Catalog struct {
	mu        sync.RWMutex
	entries   []Entry
	renderKey string
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{}
}

// Replace swaps in a new entry list and reports the new render key and
// whether it is a continuation (prefix-extension) of the previous one.
func (c *Catalog) Replace(entries []Entry) (renderKey string, continuation bool) {
	renderKey = RenderKey(entries)

	c.mu.Lock()
	defer c.mu.Unlock()

	// The prefix must end on the separator: "a|b" -> "a|bc" string-extends
	// the old key without appending to the marker set.
	continuation = c.renderKey != "" &&
		strings.HasPrefix(renderKey, c.renderKey+"|")
	c.entries = entries
	c.renderKey = renderKey
	return renderKey, continuation
}

// Snapshot returns the current entry slice and render key. The slice is
// shared, not copied: Replace never mutates a published slice, so holders of
// a snapshot read a consistent catalog even if a newer one lands meanwhile.
func (c *Catalog) Snapshot() ([]Entry, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries, c.renderKey
}

// Len returns the number of entries in the current catalog.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
