// Package reveal drives per-marker and per-label opacity in response to
// visibility-set updates: instantaneous hides at the overscan edge, staggered
// first-reveal waves for fresh result pages, and reentry holds that absorb
// sampling jitter while the map is moving.
package reveal

import (
	"log"
	"sync"
	"time"

	"mapsearch/internal/catalog"
	"mapsearch/pkg/utils"
)

// MarkerSink is the continuous-animation half of the renderer interface.
// AnimateReveal must reset the marker's opacity to 0 and fade to 1 over
// duration with an ease-out curve, starting after delay — always restarting
// from 0 even if a previous reveal was mid-flight, so a re-trigger never
// causes a visible opacity jump.
type MarkerSink interface {
	SetMarkerOpacity(key string, opacity float64)
	AnimateReveal(key string, delay, duration time.Duration)
}

// MotionSignal is the slice of the motion tracker the orchestrator needs.
type MotionSignal interface {
	Moving() bool
	MovedWithin(window time.Duration) bool
}

// Config tunes reveal behavior. All values are UX constants.
type Config struct {
	// ChunkSize groups render-ordered markers into stagger chunks.
	ChunkSize int
	// Stagger is the per-position delay step within a chunk.
	Stagger time.Duration
	// RevealDuration is the opacity fade duration.
	RevealDuration time.Duration
	// ReentryHold delays reveals that happen while the map is moving, so a
	// marker flickering in and out near the boundary does not double-fade.
	ReentryHold time.Duration
	// RecentlyMovedWindow extends the hold past the last movement event,
	// covering the gap before the idle event settles.
	RecentlyMovedWindow time.Duration
}

// Orchestrator owns per-marker reveal state: which markers have already
// played their first reveal (the reveal registry, scoped to one result set),
// and each marker's previous visibility (for edge detection). It is the only
// mutator of both; everything happens synchronously inside Apply.
type Orchestrator struct {
	cfg    Config
	sink   MarkerSink
	labels *LabelAnimator
	motion MotionSignal

	mu            sync.Mutex
	revealed      map[string]struct{}
	prevVisible   map[string]struct{}
	animateReveal bool
}

// NewOrchestrator wires the orchestrator. labels may be nil (no label fading).
func NewOrchestrator(cfg Config, sink MarkerSink, labels *LabelAnimator, motion MotionSignal) *Orchestrator {
	return &Orchestrator{
		cfg:         cfg,
		sink:        sink,
		labels:      labels,
		motion:      motion,
		revealed:    make(map[string]struct{}),
		prevVisible: make(map[string]struct{}),
	}
}

// SetAnimateReveal records whether the caller wants the next shows to play
// the staggered first-reveal wave. When enabling, the reveal registry is
// cleared: a fresh page-1 hydration starts a new wave over the new result
// set's lifetime. Continuation pages pass enable=false and keep the registry.
func (o *Orchestrator) SetAnimateReveal(enable bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.animateReveal = enable
	if enable {
		o.revealed = make(map[string]struct{})
		log.Printf("[REVEAL] New reveal wave begins")
	}
}

// RevealedCount reports how many markers have played their first reveal in
// the current wave.
func (o *Orchestrator) RevealedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.revealed)
}

// ResetCatalog prunes state for markers that left the catalog. keep holds the
// keys of the new catalog.
func (o *Orchestrator) ResetCatalog(keep map[string]struct{}) {
	o.mu.Lock()
	var dropped []string
	for key := range o.prevVisible {
		if _, ok := keep[key]; !ok {
			dropped = append(dropped, key)
			delete(o.prevVisible, key)
		}
	}
	for key := range o.revealed {
		if _, ok := keep[key]; !ok {
			delete(o.revealed, key)
		}
	}
	o.mu.Unlock()

	if len(dropped) > 0 && o.labels != nil {
		o.labels.Forget(dropped)
	}
}

// Apply diffs the new visibility set against each mounted marker's previous
// visibility and drives the opacity transitions. entries must be in render
// order; only indexes below mounted are considered (unmounted markers have no
// opacity to manage yet). A nil visible set means visibility filtering is
// unavailable (renderer lacks pointToCoordinate) and every mounted marker is
// treated as visible.
//
// Transition rules, per marker:
//   - visible → hidden: cancel and zero immediately. The marker is already
//     outside the overscanned polygon, hence off the user-visible clip.
//   - visible → visible: do nothing. Refresh ticks must never restart an
//     animation for a marker that stayed visible — the anti-flicker invariant.
//   - hidden → visible: fade in from 0, with a delay that is either the
//     marker's stagger slot (first reveal of an animate-reveal wave), the
//     reentry hold (map moving or recently moved), or zero.
func (o *Orchestrator) Apply(entries []catalog.Entry, mounted int, visible map[string]struct{}) {
	if mounted > len(entries) {
		mounted = len(entries)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	for i := 0; i < mounted; i++ {
		key := entries[i].Key

		isVisible := visible == nil
		if !isVisible {
			_, isVisible = visible[key]
		}
		_, wasVisible := o.prevVisible[key]

		switch {
		case !isVisible && wasVisible:
			delete(o.prevVisible, key)
			o.sink.SetMarkerOpacity(key, 0)
			if o.labels != nil {
				o.labels.Hide(key)
			}

		case !isVisible:
			// Stayed hidden — nothing to do.

		case wasVisible:
			// Stayed visible — leave the settled/playing animation alone.

		default:
			o.prevVisible[key] = struct{}{}
			delay := o.showDelayLocked(key, i)
			o.sink.AnimateReveal(key, delay, o.cfg.RevealDuration)
			if o.labels != nil {
				o.labels.FadeIn(key, delay)
			}
		}
	}
}

// showDelayLocked computes the reveal delay for a show edge. Caller holds o.mu.
func (o *Orchestrator) showDelayLocked(key string, index int) time.Duration {
	_, alreadyRevealed := o.revealed[key]
	o.revealed[key] = struct{}{}

	if o.animateReveal && !alreadyRevealed {
		return utils.StaggerDelay(index, o.cfg.ChunkSize, o.cfg.Stagger)
	}
	if o.motion != nil && (o.motion.Moving() || o.motion.MovedWithin(o.cfg.RecentlyMovedWindow)) {
		return o.cfg.ReentryHold
	}
	return 0
}
