package reveal

import (
	"context"
	"log"
	"sync"
	"time"

	"mapsearch/internal/metrics"
	"mapsearch/pkg/utils"
)

// FeatureStateSetter is the renderer's per-feature state channel. The render
// surface exposes label opacity only through this discrete mechanism, not
// through a continuous animation primitive, so label fades are driven as a
// sequence of fixed-size opacity steps. The capability is optional — when the
// renderer does not advertise it, the animator is constructed with a nil
// setter and every operation is a no-op (markers still fade through the
// continuous path).
type FeatureStateSetter interface {
	SetFeatureState(ctx context.Context, featureID string, opacity float64, sourceID string) error
}

// LabelConfig tunes the discretized label fade.
type LabelConfig struct {
	// Steps is the number of opacity writes per fade.
	Steps int
	// StepInterval is the spacing between consecutive writes.
	StepInterval time.Duration
	// SourceID is the renderer source the labels live in.
	SourceID string
}

// LabelAnimator drives per-label opacity through scheduled steps, each on an
// independent timer so a fade can be cancelled mid-flight. The invariant is
// one active animation sequence per key: starting a new one cancels and
// discards the old one's pending steps before the first new step is written.
//
// Cancellation is two-layered: timers that have not fired are stopped, and a
// per-key generation counter silences any timer that was already executing
// when the cancel happened (time.Timer.Stop cannot recall a callback that has
// started).
type LabelAnimator struct {
	cfg    LabelConfig
	setter FeatureStateSetter

	mu      sync.Mutex
	opacity map[string]float64
	timers  map[string][]*time.Timer
	gen     map[string]uint64
	stopped bool
}

// NewLabelAnimator creates an animator. A nil setter disables label fading
// entirely.
func NewLabelAnimator(cfg LabelConfig, setter FeatureStateSetter) *LabelAnimator {
	if cfg.Steps < 1 {
		cfg.Steps = 1
	}
	return &LabelAnimator{
		cfg:     cfg,
		setter:  setter,
		opacity: make(map[string]float64),
		timers:  make(map[string][]*time.Timer),
		gen:     make(map[string]uint64),
	}
}

// Enabled reports whether the renderer supports label fading.
func (a *LabelAnimator) Enabled() bool {
	return a != nil && a.setter != nil
}

// FadeIn animates the label's opacity from its current value to 1 after the
// given delay, replacing any in-flight animation for the key.
func (a *LabelAnimator) FadeIn(key string, delay time.Duration) {
	a.fadeTo(key, 1, delay)
}

// Hide cancels any in-flight animation and writes opacity 0 immediately —
// no delay, no steps. Safe to be instantaneous because hide edges only occur
// once the marker is already outside the overscanned polygon.
func (a *LabelAnimator) Hide(key string) {
	if !a.Enabled() {
		return
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.cancelLocked(key)
	a.gen[key]++
	already := a.opacity[key] == 0
	a.opacity[key] = 0
	if !already {
		a.write(key, 0)
	}
	a.mu.Unlock()
}

// Forget drops all animation state for keys that left the catalog, cancelling
// their pending steps.
func (a *LabelAnimator) Forget(keys []string) {
	if !a.Enabled() {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, key := range keys {
		a.cancelLocked(key)
		delete(a.opacity, key)
		delete(a.gen, key)
	}
}

// Stop cancels every pending step across all keys and disables the animator.
func (a *LabelAnimator) Stop() {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	for key := range a.timers {
		a.cancelLocked(key)
	}
}

// Opacity returns the last written opacity for a key (0 if never touched).
func (a *LabelAnimator) Opacity(key string) float64 {
	if a == nil {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.opacity[key]
}

func (a *LabelAnimator) fadeTo(key string, target float64, delay time.Duration) {
	if !a.Enabled() {
		return
	}

	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.cancelLocked(key)
	a.gen[key]++
	gen := a.gen[key]
	from := a.opacity[key]

	steps := a.cfg.Steps
	pending := make([]*time.Timer, 0, steps)
	for i := 1; i <= steps; i++ {
		progress := float64(i) / float64(steps)
		value := from + (target-from)*utils.EaseOutCubic(progress)
		fireAt := delay + time.Duration(i)*a.cfg.StepInterval
		value = utils.Clamp01(value)
		step := i
		pending = append(pending, time.AfterFunc(fireAt, func() {
			a.step(key, gen, value, step == steps)
		}))
	}
	a.timers[key] = pending
	a.mu.Unlock()
}

// step is one scheduled opacity write. It re-checks the key's generation so a
// step that raced with a cancellation never writes. The feature-state write
// happens under the lock so a concurrent cancel-and-restart cannot interleave
// its first write between this step's check and its write — the setter is a
// fast enqueue, never a blocking call.
func (a *LabelAnimator) step(key string, gen uint64, value float64, last bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped || a.gen[key] != gen {
		return
	}
	a.opacity[key] = value
	if last {
		delete(a.timers, key)
	}
	a.write(key, value)
}

// write pushes one opacity value through the feature-state channel. Caller
// holds a.mu.
func (a *LabelAnimator) write(key string, value float64) {
	metrics.LabelStepsTotal.Inc()
	if err := a.setter.SetFeatureState(context.Background(), key, value, a.cfg.SourceID); err != nil {
		// Transient bridge errors surface as a skipped write; the next
		// visibility edge re-drives the label.
		log.Printf("[LABEL] feature state write failed for %s: %v", key, err)
	}
}

// cancelLocked stops every pending timer for key. Caller holds a.mu.
func (a *LabelAnimator) cancelLocked(key string) {
	for _, t := range a.timers[key] {
		t.Stop()
	}
	delete(a.timers, key)
}
