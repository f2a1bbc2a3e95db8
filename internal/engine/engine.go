// Package engine wires one map session together: camera events feed the
// motion tracker and the visibility refresh scheduler, result deliveries feed
// the catalog and the mount batcher, and visibility updates feed the reveal
// orchestrator, which drives opacity commands back out through the attached
// renderer.
package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb"

	"mapsearch/internal/catalog"
	"mapsearch/internal/config"
	"mapsearch/internal/domain/entities"
	"mapsearch/internal/reveal"
	"mapsearch/internal/viewport"
	"mapsearch/internal/visibility"
)

// Renderer is the engine's view of a connected map renderer. The websocket
// bridge implements it; tests implement it with an in-memory fake. The two
// Supports methods reflect the capability flags the renderer declared —
// missing capabilities select the degradation paths (no visibility filtering,
// or no label fading) instead of errors.
type Renderer interface {
	SetMarkerOpacity(key string, opacity float64)
	AnimateReveal(key string, delay, duration time.Duration)
	SetFeatureState(ctx context.Context, featureID string, opacity float64, sourceID string) error
	PointToCoordinate(ctx context.Context, x, y float64) (entities.Coordinate, error)
	SupportsPointToCoordinate() bool
	SupportsFeatureState() bool
	Close()
}

// DeliveryOptions accompany a result page delivery.
type DeliveryOptions struct {
	// AnimateReveal requests the staggered first-reveal wave (set by the
	// caller on a fresh page-1 hydration).
	AnimateReveal bool
	// DeferMount holds mounting off until the UI is no longer mid-gesture
	// or mid-scroll.
	DeferMount bool
}

// Engine owns all per-session visibility state. It implements the sink
// interfaces the reveal layer needs, delegating to whichever renderer is
// currently attached; with no renderer, opacity commands are dropped (the
// renderer will resync from the next visibility update after reattaching).
type Engine struct {
	sessionID string
	notifier  *Notifier

	catalog  *catalog.Catalog
	mounter  *catalog.Mounter
	motion   *visibility.MotionTracker
	sched    *visibility.Scheduler
	orch     *reveal.Orchestrator
	labels   *reveal.LabelAnimator
	resolver *viewport.Resolver

	mu       sync.RWMutex
	renderer Renderer
	size     entities.ViewportSize

	deferMount atomic.Bool
	stopped    atomic.Bool
}

// New builds a session engine from the application config.
func New(sessionID string, cfg *config.Config, notifier *Notifier) *Engine {
	e := &Engine{
		sessionID: sessionID,
		notifier:  notifier,
		catalog:   catalog.New(),
		motion:    visibility.NewMotionTracker(),
		resolver: viewport.NewResolver(viewport.MarkerOverscan(
			cfg.Marker.Width, cfg.Marker.Height, cfg.Marker.TopOverscan)),
	}

	e.labels = reveal.NewLabelAnimator(reveal.LabelConfig{
		Steps:        cfg.Label.Steps,
		StepInterval: cfg.Label.StepInterval,
		SourceID:     cfg.Label.SourceID,
	}, featureStateFunc(e.setFeatureState))

	e.orch = reveal.NewOrchestrator(reveal.Config{
		ChunkSize:           cfg.Reveal.ChunkSize,
		Stagger:             cfg.Reveal.Stagger,
		RevealDuration:      cfg.Reveal.Duration,
		ReentryHold:         cfg.Reveal.ReentryHold,
		RecentlyMovedWindow: cfg.Reveal.RecentlyMovedWindow,
	}, e, e.labels, e.motion)

	e.sched = visibility.NewScheduler(
		visibility.Config{
			MovingDebounce: cfg.Visibility.MovingDebounce,
			IdleDebounce:   cfg.Visibility.IdleDebounce,
		},
		e.motion.Moving,
		e.resolvePolygon,
		e.catalogEntries,
		e.applyVisibility,
	)

	e.mounter = catalog.NewMounter(catalog.MounterConfig{
		InitialBatch:      cfg.Mount.InitialBatch,
		BatchIncrement:    cfg.Mount.BatchIncrement,
		FrameInterval:     cfg.Mount.FrameInterval,
		DeferPollInterval: cfg.Mount.DeferPollInterval,
	}, e.mountDeferred, e.onMounted)

	return e
}

// Stop tears the session down: pending debounce timers are cancelled,
// in-flight resolutions are discarded, the mount loop exits, every label step
// timer is cancelled, and an attached renderer connection is closed.
func (e *Engine) Stop() {
	if !e.stopped.CompareAndSwap(false, true) {
		return
	}
	e.sched.Stop()
	e.mounter.Stop()
	e.labels.Stop()

	e.mu.Lock()
	r := e.renderer
	e.renderer = nil
	e.mu.Unlock()
	if r != nil {
		r.Close()
	}
}

// Overscan returns the per-edge margins the viewport polygon is sampled
// with — the one piece of state this core exports. The renderer must style
// its oversized render surface with exactly these margins.
func (e *Engine) Overscan() viewport.Overscan {
	return e.resolver.Overscan()
}

// AttachRenderer binds a connected renderer to the session and kicks a
// refresh so visibility converges onto the new surface.
func (e *Engine) AttachRenderer(r Renderer) {
	e.mu.Lock()
	e.renderer = r
	e.mu.Unlock()

	e.notifier.RendererAttached(e.sessionID, r.SupportsPointToCoordinate(), r.SupportsFeatureState())
	e.sched.Schedule()
}

// DetachRenderer unbinds r if it is still the attached renderer. The engine
// keeps running; the prior visible set stays in effect (stale-but-safe).
func (e *Engine) DetachRenderer(r Renderer) {
	e.mu.Lock()
	if e.renderer == r {
		e.renderer = nil
	}
	e.mu.Unlock()
	e.notifier.RendererDetached(e.sessionID)
}

// OnCameraChanged handles a camera-changed event from the renderer.
func (e *Engine) OnCameraChanged(state entities.CameraState) {
	e.motion.CameraChanged()
	e.sched.Schedule()
}

// OnCameraIdle handles a camera-idle event.
func (e *Engine) OnCameraIdle(state entities.CameraState) {
	e.motion.CameraIdle()
	e.sched.Schedule()
}

// OnMapLoaded handles the renderer's map-loaded event.
func (e *Engine) OnMapLoaded() {
	e.sched.Schedule()
}

// SetViewportSize records the logical (clipped) viewport size.
func (e *Engine) SetViewportSize(size entities.ViewportSize) {
	e.mu.Lock()
	e.size = size
	e.mu.Unlock()
	e.sched.Schedule()
}

// SetMountDeferred flips the caller-controlled half of the mount deferral
// signal (the other half is the map-moving flag).
func (e *Engine) SetMountDeferred(deferred bool) {
	e.deferMount.Store(deferred)
}

// DeliverResults replaces the marker catalog with a new result page. The
// sequence bump comes before the swap: a resolution completing mid-delivery
// must be discarded, never land a set classified against the outgoing
// entries. The swap itself completes before any newly scheduled refresh can
// read it, and the mount batcher restarts or continues depending on whether
// the page extends the previous one.
func (e *Engine) DeliverResults(results []entities.SearchResult, opts DeliveryOptions) {
	e.sched.Invalidate()

	entries := catalog.Build(results)
	_, continuation := e.catalog.Replace(entries)

	if !continuation {
		keep := make(map[string]struct{}, len(entries))
		for _, en := range entries {
			keep[en.Key] = struct{}{}
		}
		e.orch.ResetCatalog(keep)
	}
	e.orch.SetAnimateReveal(opts.AnimateReveal)
	e.deferMount.Store(opts.DeferMount)

	e.mounter.SetCatalog(len(entries), continuation, opts.DeferMount)
	e.sched.Schedule()

	e.notifier.ResultsDelivered(e.sessionID, len(entries), continuation, opts.AnimateReveal)
}

// MarkerPress is the press pass-through from the map UI.
func (e *Engine) MarkerPress(key string) {
	e.notifier.MarkerPressed(e.sessionID, key)
}

// State is the debug snapshot served by the API.
type State struct {
	RenderKey     string   `json:"render_key"`
	CatalogSize   int      `json:"catalog_size"`
	MountedCount  int      `json:"mounted_count"`
	VisibleKeys   []string `json:"visible_keys"`
	RevealedCount int      `json:"revealed_count"`
	Filtering     bool     `json:"filtering"`
}

// Snapshot returns the current session state for debugging.
func (e *Engine) Snapshot() State {
	entries, renderKey := e.catalog.Snapshot()
	visible := e.visibleOrNil()

	keys := make([]string, 0, len(visible))
	for k := range visible {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return State{
		RenderKey:     renderKey,
		CatalogSize:   len(entries),
		MountedCount:  e.mounter.Mounted(),
		VisibleKeys:   keys,
		RevealedCount: e.orch.RevealedCount(),
		Filtering:     visible != nil,
	}
}

// resolvePolygon is the scheduler's PolygonResolver: it samples the current
// renderer at the current viewport size.
func (e *Engine) resolvePolygon(ctx context.Context) (orb.Ring, error) {
	e.mu.RLock()
	r := e.renderer
	size := e.size
	e.mu.RUnlock()

	var src viewport.CoordinateSource
	if r != nil && r.SupportsPointToCoordinate() {
		src = viewport.FuncSource(r.PointToCoordinate)
	}
	return e.resolver.ResolvePolygon(ctx, src, size)
}

func (e *Engine) catalogEntries() []catalog.Entry {
	entries, _ := e.catalog.Snapshot()
	return entries
}

// applyVisibility is the scheduler's update callback.
func (e *Engine) applyVisibility(visible map[string]struct{}) {
	entries, _ := e.catalog.Snapshot()
	e.orch.Apply(entries, e.mounter.Mounted(), visible)
}

// onMounted re-evaluates reveal state whenever the mounted prefix grows, so
// newly mounted markers get their show edge against the current visible set.
func (e *Engine) onMounted(mounted int) {
	entries, _ := e.catalog.Snapshot()
	e.orch.Apply(entries, mounted, e.visibleOrNil())
}

// visibleOrNil returns the scheduler's visible set, or nil when visibility
// filtering is unavailable (no renderer, or no pixel→coordinate capability) —
// nil means "treat every mounted marker as visible".
func (e *Engine) visibleOrNil() map[string]struct{} {
	e.mu.RLock()
	r := e.renderer
	e.mu.RUnlock()

	if r == nil || !r.SupportsPointToCoordinate() {
		return nil
	}
	return e.sched.Visible()
}

// mountDeferred is the mount batcher's "is the map busy" signal: the
// caller-requested deferral or an in-progress camera gesture.
func (e *Engine) mountDeferred() bool {
	return e.deferMount.Load() || e.motion.Moving()
}

// SetMarkerOpacity implements the reveal sink by delegating to the attached
// renderer; without one, the command is dropped.
func (e *Engine) SetMarkerOpacity(key string, opacity float64) {
	e.mu.RLock()
	r := e.renderer
	e.mu.RUnlock()
	if r != nil {
		r.SetMarkerOpacity(key, opacity)
	}
}

// AnimateReveal implements the reveal sink.
func (e *Engine) AnimateReveal(key string, delay, duration time.Duration) {
	e.mu.RLock()
	r := e.renderer
	e.mu.RUnlock()
	if r != nil {
		r.AnimateReveal(key, delay, duration)
	}
}

// setFeatureState routes label opacity writes to the renderer's
// feature-state channel. Writes are dropped when the renderer is missing or
// did not advertise the capability — label fading degrades to a no-op while
// marker fades keep working.
func (e *Engine) setFeatureState(ctx context.Context, featureID string, opacity float64, sourceID string) error {
	e.mu.RLock()
	r := e.renderer
	e.mu.RUnlock()
	if r == nil || !r.SupportsFeatureState() {
		return nil
	}
	return r.SetFeatureState(ctx, featureID, opacity, sourceID)
}

// featureStateFunc adapts a function to reveal.FeatureStateSetter.
type featureStateFunc func(ctx context.Context, featureID string, opacity float64, sourceID string) error

func (f featureStateFunc) SetFeatureState(ctx context.Context, featureID string, opacity float64, sourceID string) error {
	return f(ctx, featureID, opacity, sourceID)
}
