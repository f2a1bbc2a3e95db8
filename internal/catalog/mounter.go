package catalog

import (
	"log"
	"sync"
	"time"

	"mapsearch/internal/metrics"
)

// MounterConfig tunes the mount batching loop. Mounting is distinct from
// visibility fading: it bounds how many markers are handed to the render
// layer per frame so a 150-result page does not block the UI thread at once.
type MounterConfig struct {
	// InitialBatch is how many markers mount immediately on a fresh
	// (non-deferred) catalog.
	InitialBatch int
	// BatchIncrement is how many additional markers mount per frame step.
	BatchIncrement int
	// FrameInterval approximates one render frame.
	FrameInterval time.Duration
	// DeferPollInterval is how often the loop re-checks the defer signal
	// while mounting is held off (mid-gesture, mid-scroll).
	DeferPollInterval time.Duration
}

// Mounter grows a mounted-marker count toward the catalog length, one batch
// per frame. Only markers with index < Mounted() are rendered and tracked by
// the reveal orchestrator.
//
// Each catalog replacement bumps a generation counter; the mount loop for a
// superseded generation notices and exits, so at most one loop ever advances
// the count. This mirrors the dispatch-sequence staleness rejection used by
// the visibility scheduler.
type Mounter struct {
	cfg MounterConfig

	// deferred reports whether mounting should currently be held off.
	deferred func() bool
	// onChange is invoked (outside the lock) whenever the mounted count
	// grows, so newly mounted markers get a visibility/reveal evaluation.
	onChange func(mounted int)

	mu      sync.Mutex
	gen     uint64
	total   int
	mounted int
	stopped bool

	stop chan struct{}
}

// NewMounter creates a mounter. deferred and onChange may be nil.
func NewMounter(cfg MounterConfig, deferred func() bool, onChange func(mounted int)) *Mounter {
	if cfg.InitialBatch < 0 {
		cfg.InitialBatch = 0
	}
	if cfg.BatchIncrement < 1 {
		cfg.BatchIncrement = 1
	}
	return &Mounter{
		cfg:      cfg,
		deferred: deferred,
		onChange: onChange,
		stop:     make(chan struct{}),
	}
}

// SetCatalog informs the mounter of a catalog replacement. Continuations
// carry the mounted count over unchanged (clamped to the new length); genuine
// new result sets restart at zero when deferMount is set, otherwise at the
// initial batch size.
func (m *Mounter) SetCatalog(total int, continuation, deferMount bool) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}

	m.gen++
	gen := m.gen
	m.total = total

	switch {
	case continuation:
		if m.mounted > total {
			m.mounted = total
		}
	case deferMount:
		m.mounted = 0
	default:
		m.mounted = m.cfg.InitialBatch
		if m.mounted > total {
			m.mounted = total
		}
		metrics.MarkersMountedTotal.Add(float64(m.mounted))
	}
	mounted := m.mounted
	needsLoop := m.mounted < m.total
	m.mu.Unlock()

	m.notify(mounted)
	if needsLoop {
		go m.mountLoop(gen)
	}
}

// Mounted returns the current mounted-marker count.
func (m *Mounter) Mounted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Stop terminates any running mount loop. Safe to call once.
func (m *Mounter) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.stop)
}

// mountLoop grows the mounted count by one batch per frame until it reaches
// the catalog length. While the defer signal is up, it polls on the slower
// interval instead of growing. The loop exits as soon as its generation is
// superseded by a newer catalog.
func (m *Mounter) mountLoop(gen uint64) {
	interval := m.cfg.FrameInterval
	for {
		select {
		case <-m.stop:
			return
		case <-time.After(interval):
		}

		m.mu.Lock()
		if m.stopped || gen != m.gen {
			m.mu.Unlock()
			return
		}
		if m.deferred != nil && m.deferred() {
			m.mu.Unlock()
			interval = m.cfg.DeferPollInterval
			continue
		}

		prev := m.mounted
		m.mounted += m.cfg.BatchIncrement
		if m.mounted > m.total {
			m.mounted = m.total
		}
		metrics.MarkersMountedTotal.Add(float64(m.mounted - prev))
		mounted := m.mounted
		done := m.mounted >= m.total
		m.mu.Unlock()

		m.notify(mounted)
		if done {
			log.Printf("[MOUNT] All %d markers mounted", mounted)
			return
		}
		interval = m.cfg.FrameInterval
	}
}

func (m *Mounter) notify(mounted int) {
	if m.onChange != nil {
		m.onChange(mounted)
	}
}
