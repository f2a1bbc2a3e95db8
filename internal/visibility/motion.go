package visibility

import (
	"sync"
	"time"
)

// MotionTracker derives the "map is moving" signal from camera events: set on
// every camera-changed event, cleared on camera-idle, plus a trailing
// recently-moved window covering the gap between the last movement event and
// idle settling. The reveal orchestrator uses the window to apply the reentry
// hold, which absorbs sampling jitter from the async coordinate conversion.
type MotionTracker struct {
	mu        sync.Mutex
	moving    bool
	lastMoved time.Time
}

// NewMotionTracker creates a tracker in the idle state.
func NewMotionTracker() *MotionTracker {
	return &MotionTracker{}
}

// CameraChanged records a camera movement event.
func (t *MotionTracker) CameraChanged() {
	t.mu.Lock()
	t.moving = true
	t.lastMoved = time.Now()
	t.mu.Unlock()
}

// CameraIdle records that the camera has settled.
func (t *MotionTracker) CameraIdle() {
	t.mu.Lock()
	t.moving = false
	t.mu.Unlock()
}

// Moving reports whether the camera is currently between a changed event and
// the matching idle event.
func (t *MotionTracker) Moving() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.moving
}

// MovedWithin reports whether the camera is moving now or last moved inside
// the given window.
func (t *MotionTracker) MovedWithin(window time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.moving {
		return true
	}
	return !t.lastMoved.IsZero() && time.Since(t.lastMoved) < window
}
