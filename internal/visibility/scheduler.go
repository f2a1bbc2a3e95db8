// Package visibility owns the visible-marker set and the asynchronous
// machinery that keeps it in sync with the map camera: a single-flight,
// sequenced, debounced refresh scheduler with staleness rejection.
package visibility

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/paulmach/orb"

	"mapsearch/internal/catalog"
	"mapsearch/internal/geo"
	"mapsearch/internal/metrics"
)

// Config tunes the scheduler's debounce behavior. These are UX constants,
// not correctness deadlines: if a resolution never completes, the prior
// visible set simply remains in effect (stale-but-safe).
type Config struct {
	// MovingDebounce is the delay before a refresh while the camera is
	// moving — shorter, so visibility tracks continuous pans closely.
	MovingDebounce time.Duration
	// IdleDebounce is the delay once the camera has settled.
	IdleDebounce time.Duration
}

// PolygonResolver produces the current viewport polygon in projected space.
// A nil ring with an error means "temporarily unavailable, skip this cycle".
type PolygonResolver func(ctx context.Context) (orb.Ring, error)

// Scheduler recomputes the visible-marker key set whenever the map moves.
//
// Coalescing and sequencing rules:
//   - Schedule() marks a refresh as wanted. If one is already in flight or a
//     debounce timer is already pending, the call coalesces into it — rapid
//     camera events never spawn concurrent resolutions.
//   - Every dispatched resolution captures the sequence counter; a result is
//     discarded if the counter advanced while it was in flight (newer refresh,
//     catalog replacement, or Stop superseded it). Rejection is by dispatch
//     order, never by completion order.
//   - The visible set is replaced wholesale on a successful, fresh, different
//     resolution; a content-identical recomputation keeps the old reference so
//     downstream diffing sees no change.
//
// Go Learning Note — time.AfterFunc:
// time.AfterFunc schedules a function on its own goroutine after a delay and
// returns a *time.Timer whose Stop() cancels it if it hasn't fired. That is
// exactly a cancellable debounce: one pending timer at most, cleared either
// by firing or by Stop() during shutdown.
type Scheduler struct {
	cfg      Config
	moving   func() bool
	resolve  PolygonResolver
	entries  func() []catalog.Entry
	onUpdate func(visible map[string]struct{})

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	inFlight bool
	queued   bool
	timer    *time.Timer
	stopped  bool
	visible  map[string]struct{}
}

// NewScheduler wires a scheduler to its collaborators. moving supplies the
// map-motion signal, entries snapshots the marker catalog, and onUpdate fires
// (off the lock) with the replacement set whenever the visible set changes.
func NewScheduler(
	cfg Config,
	moving func() bool,
	resolve PolygonResolver,
	entries func() []catalog.Entry,
	onUpdate func(visible map[string]struct{}),
) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:      cfg,
		moving:   moving,
		resolve:  resolve,
		entries:  entries,
		onUpdate: onUpdate,
		ctx:      ctx,
		cancel:   cancel,
		visible:  make(map[string]struct{}),
	}
}

// Schedule requests a visibility refresh. Camera-changed, camera-idle,
// viewport-size and catalog changes all funnel through here.
func (s *Scheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.queued = true
	if s.inFlight || s.timer != nil {
		return // Coalesced into the pending refresh.
	}

	delay := s.cfg.IdleDebounce
	if s.moving != nil && s.moving() {
		delay = s.cfg.MovingDebounce
	}
	s.timer = time.AfterFunc(delay, s.run)
}

// Invalidate advances the dispatch sequence so any in-flight resolution is
// discarded on completion. Called when the marker catalog is replaced: the
// old resolution would classify against entries that no longer exist.
func (s *Scheduler) Invalidate() {
	s.mu.Lock()
	s.seq++
	s.mu.Unlock()
}

// Visible returns the current visible-key set. The returned map is owned by
// the scheduler and must be treated as read-only; it is replaced, never
// mutated, so a held reference stays internally consistent.
func (s *Scheduler) Visible() map[string]struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Stop cancels the pending debounce timer, invalidates any in-flight
// resolution, and prevents all future scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.cancel()
}

// run executes one refresh cycle. It is the debounce timer's callback, so it
// runs on its own goroutine; the resolve call is the only suspension point.
func (s *Scheduler) run() {
	s.mu.Lock()
	s.timer = nil
	if s.stopped || s.inFlight || !s.queued {
		s.mu.Unlock()
		return
	}
	s.queued = false
	s.inFlight = true
	s.seq++
	mySeq := s.seq
	entries := s.entries()
	s.mu.Unlock()

	metrics.RefreshTotal.Inc()
	start := time.Now()
	ring, err := s.resolve(s.ctx)
	metrics.RefreshDurationMs.Observe(float64(time.Since(start).Milliseconds()))

	var next map[string]struct{}
	if err == nil && ring != nil {
		next = make(map[string]struct{}, len(entries))
		for _, e := range entries {
			if geo.RingContains(e.Projected, ring) {
				next[e.Key] = struct{}{}
			}
		}
	}

	var updated map[string]struct{}
	s.mu.Lock()
	switch {
	case s.stopped:
		s.mu.Unlock()
		return
	case mySeq != s.seq:
		// A newer refresh was dispatched while this one was in flight —
		// its classification is against a stale polygon or catalog.
		metrics.RefreshStaleTotal.Inc()
	case next == nil:
		// No usable polygon this cycle; keep the prior set.
		metrics.RefreshFailedTotal.Inc()
	case !sameKeySet(s.visible, next):
		s.visible = next
		updated = next
		metrics.VisibilityChangesTotal.Inc()
	}
	s.inFlight = false
	requeue := s.queued
	s.mu.Unlock()

	if updated != nil {
		log.Printf("[VISIBILITY] Visible set updated: %d of %d markers", len(updated), len(entries))
		if s.onUpdate != nil {
			s.onUpdate(updated)
		}
	}
	if requeue {
		// Movement continued while we were resolving; chain the next
		// refresh through the normal debounce path.
		s.reschedule()
	}
}

// reschedule re-arms the debounce timer for an already-queued refresh.
func (s *Scheduler) reschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || !s.queued || s.inFlight || s.timer != nil {
		return
	}
	delay := s.cfg.IdleDebounce
	if s.moving != nil && s.moving() {
		delay = s.cfg.MovingDebounce
	}
	s.timer = time.AfterFunc(delay, s.run)
}

func sameKeySet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
