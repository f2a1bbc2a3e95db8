package visibility

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"mapsearch/internal/catalog"
	"mapsearch/internal/domain/entities"
	"mapsearch/internal/geo"
)

func testConfig() Config {
	return Config{
		MovingDebounce: time.Millisecond,
		IdleDebounce:   2 * time.Millisecond,
	}
}

// ringAround returns a projected square that contains coordinates within
// ±span degrees of the origin.
func ringAround(span float64) orb.Ring {
	return orb.Ring{
		geo.Project(-span, span),
		geo.Project(span, span),
		geo.Project(span, -span),
		geo.Project(-span, -span),
	}
}

func entriesAt(lngs ...float64) []catalog.Entry {
	var results []entities.SearchResult
	for i, lng := range lngs {
		results = append(results, entities.SearchResult{
			EntityID: string(rune('a' + i)),
			Rank:     i + 1,
			Coord:    entities.Coordinate{Longitude: lng, Latitude: 0},
		})
	}
	return catalog.Build(results)
}

func keySet(m map[string]struct{}) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// waitFor polls cond until true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal(msg)
}

func TestSchedulerComputesVisibleSet(t *testing.T) {
	entries := entriesAt(1, 2, 50) // a, b inside ±10°; c outside
	var updates int32

	s := NewScheduler(
		testConfig(),
		func() bool { return false },
		func(ctx context.Context) (orb.Ring, error) { return ringAround(10), nil },
		func() []catalog.Entry { return entries },
		func(visible map[string]struct{}) { atomic.AddInt32(&updates, 1) },
	)
	defer s.Stop()

	s.Schedule()
	waitFor(t, func() bool { return len(s.Visible()) == 2 }, "visible set never reached 2 markers")

	visible := s.Visible()
	for _, key := range []string{"a:1", "b:2"} {
		if _, ok := visible[key]; !ok {
			t.Errorf("key %s missing from visible set %v", key, keySet(visible))
		}
	}
	if _, ok := visible["c:3"]; ok {
		t.Error("out-of-polygon marker c:3 judged visible")
	}
	if n := atomic.LoadInt32(&updates); n != 1 {
		t.Errorf("onUpdate fired %d times, want 1", n)
	}
}

func TestSchedulerCoalescesRapidScheduleCalls(t *testing.T) {
	var resolves int32
	s := NewScheduler(
		testConfig(),
		func() bool { return true },
		func(ctx context.Context) (orb.Ring, error) {
			atomic.AddInt32(&resolves, 1)
			return ringAround(10), nil
		},
		func() []catalog.Entry { return nil },
		nil,
	)
	defer s.Stop()

	// A burst of camera events before the debounce fires.
	for i := 0; i < 50; i++ {
		s.Schedule()
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&resolves) >= 1 }, "refresh never ran")

	// The burst coalesces into exactly one dispatch (no movement continued
	// after it started, so no chained refresh either).
	time.Sleep(20 * time.Millisecond)
	if n := atomic.LoadInt32(&resolves); n != 1 {
		t.Errorf("resolver ran %d times for one burst, want 1", n)
	}
}

func TestSchedulerChainsWhenMovementContinues(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var resolves int32

	s := NewScheduler(
		testConfig(),
		func() bool { return true },
		func(ctx context.Context) (orb.Ring, error) {
			if atomic.AddInt32(&resolves, 1) == 1 {
				close(started)
				<-release
			}
			return ringAround(10), nil
		},
		func() []catalog.Entry { return nil },
		nil,
	)
	defer s.Stop()

	s.Schedule()
	<-started
	// Movement continues while the first resolution is in flight.
	s.Schedule()
	s.Schedule()
	close(release)

	waitFor(t, func() bool { return atomic.LoadInt32(&resolves) == 2 },
		"queued refresh was not chained after the in-flight one completed")
}

// TestSchedulerStaleResultDiscarded drives the dispatch-sequence rejection:
// a resolution that completes after the sequence has advanced must not write
// the visible set.
func TestSchedulerStaleResultDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	s := NewScheduler(
		testConfig(),
		func() bool { return false },
		func(ctx context.Context) (orb.Ring, error) {
			close(started)
			<-release
			return ringAround(10), nil
		},
		func() []catalog.Entry { return entriesAt(1, 2) },
		nil,
	)
	defer s.Stop()

	s.Schedule()
	<-started
	// The catalog is replaced while the resolution is in flight; its
	// classification is now against dead entries.
	s.Invalidate()
	close(release)

	time.Sleep(30 * time.Millisecond)
	if got := s.Visible(); len(got) != 0 {
		t.Fatalf("stale resolution wrote visible set %v, want empty", keySet(got))
	}
}

func TestSchedulerKeepsPriorSetOnFailedResolution(t *testing.T) {
	var fail atomic.Bool
	s := NewScheduler(
		testConfig(),
		func() bool { return false },
		func(ctx context.Context) (orb.Ring, error) {
			if fail.Load() {
				return nil, errors.New("renderer busy")
			}
			return ringAround(10), nil
		},
		func() []catalog.Entry { return entriesAt(1, 2) },
		nil,
	)
	defer s.Stop()

	s.Schedule()
	waitFor(t, func() bool { return len(s.Visible()) == 2 }, "initial refresh never landed")
	before := s.Visible()

	fail.Store(true)
	s.Schedule()
	time.Sleep(30 * time.Millisecond)

	after := s.Visible()
	if reflect.ValueOf(after).Pointer() != reflect.ValueOf(before).Pointer() {
		t.Error("failed resolution replaced the visible set; prior set must be kept")
	}
}

// TestSchedulerIdenticalSetKeepsReference: a successful refresh that computes
// a content-identical set must keep the existing map reference so downstream
// consumers see no change.
func TestSchedulerIdenticalSetKeepsReference(t *testing.T) {
	var updates int32
	s := NewScheduler(
		testConfig(),
		func() bool { return false },
		func(ctx context.Context) (orb.Ring, error) { return ringAround(10), nil },
		func() []catalog.Entry { return entriesAt(1, 2) },
		func(map[string]struct{}) { atomic.AddInt32(&updates, 1) },
	)
	defer s.Stop()

	s.Schedule()
	waitFor(t, func() bool { return len(s.Visible()) == 2 }, "initial refresh never landed")
	first := s.Visible()

	s.Schedule()
	time.Sleep(30 * time.Millisecond)

	second := s.Visible()
	if reflect.ValueOf(first).Pointer() != reflect.ValueOf(second).Pointer() {
		t.Error("content-identical refresh replaced the set reference")
	}
	if n := atomic.LoadInt32(&updates); n != 1 {
		t.Errorf("onUpdate fired %d times, want 1 (no update for identical set)", n)
	}
}

func TestSchedulerStopSilencesInFlightResolution(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var updates int32

	s := NewScheduler(
		testConfig(),
		func() bool { return false },
		func(ctx context.Context) (orb.Ring, error) {
			close(started)
			<-release
			return ringAround(10), nil
		},
		func() []catalog.Entry { return entriesAt(1) },
		func(map[string]struct{}) { atomic.AddInt32(&updates, 1) },
	)

	s.Schedule()
	<-started
	s.Stop()
	close(release)

	time.Sleep(30 * time.Millisecond)
	if n := atomic.LoadInt32(&updates); n != 0 {
		t.Errorf("onUpdate fired %d times after Stop, want 0", n)
	}

	// Scheduling after Stop is a no-op.
	s.Schedule()
	time.Sleep(20 * time.Millisecond)
	if got := s.Visible(); len(got) != 0 {
		t.Errorf("refresh ran after Stop: %v", keySet(got))
	}
}

func TestMotionTracker(t *testing.T) {
	m := NewMotionTracker()

	if m.Moving() {
		t.Error("new tracker reports moving")
	}
	if m.MovedWithin(time.Hour) {
		t.Error("new tracker reports recent movement")
	}

	m.CameraChanged()
	if !m.Moving() {
		t.Error("tracker not moving after camera-changed")
	}
	if !m.MovedWithin(time.Millisecond) {
		t.Error("tracker not recently moved immediately after camera-changed")
	}

	m.CameraIdle()
	if m.Moving() {
		t.Error("tracker still moving after camera-idle")
	}
	// The recently-moved window outlives the idle event.
	if !m.MovedWithin(time.Hour) {
		t.Error("recently-moved window did not cover the post-idle gap")
	}

	time.Sleep(5 * time.Millisecond)
	if m.MovedWithin(time.Millisecond) {
		t.Error("recently-moved window never expires")
	}
}
