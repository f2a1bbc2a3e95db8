// Package renderer bridges a connected map renderer to a session engine over
// a websocket. The renderer owns the actual map surface; the bridge relays its
// events (camera, viewport, presses) into the engine and carries the engine's
// opacity commands and pixel→coordinate queries back out.
package renderer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"mapsearch/internal/domain/entities"
	"mapsearch/internal/engine"
	"mapsearch/internal/metrics"
	"mapsearch/internal/viewport"
)

// Capability names a renderer may declare in its hello message.
const (
	CapPointToCoordinate = "point_to_coordinate"
	CapFeatureState      = "feature_state"
)

var (
	// ErrNotSupported means the renderer did not declare the capability.
	ErrNotSupported = errors.New("renderer: capability not supported")

	// ErrClosed means the bridge shut down while a query was outstanding.
	ErrClosed = errors.New("renderer: connection closed")
)

// inboundMessage is the envelope for everything the renderer sends. One fat
// struct instead of per-type decoding keeps the read loop to a single
// ReadJSON call; unused fields stay zero.
type inboundMessage struct {
	Type string `json:"type"`

	// hello
	Capabilities []string `json:"capabilities,omitempty"`

	// camera_changed / camera_idle
	Camera entities.CameraState `json:"camera"`

	// viewport
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`

	// coordinate / coordinate_error (replies to point_to_coordinate)
	ID    uint64  `json:"id,omitempty"`
	Lng   float64 `json:"lng,omitempty"`
	Lat   float64 `json:"lat,omitempty"`
	Error string  `json:"error,omitempty"`

	// marker_press
	Key string `json:"key,omitempty"`

	// mount_deferred
	Deferred bool `json:"deferred,omitempty"`
}

type pointQueryMsg struct {
	Type string  `json:"type"`
	ID   uint64  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type setOpacityMsg struct {
	Type    string  `json:"type"`
	Key     string  `json:"key"`
	Opacity float64 `json:"opacity"`
}

type animateRevealMsg struct {
	Type       string `json:"type"`
	Key        string `json:"key"`
	DelayMs    int64  `json:"delay_ms"`
	DurationMs int64  `json:"duration_ms"`
	Easing     string `json:"easing"`
}

type featureStateMsg struct {
	Type      string  `json:"type"`
	FeatureID string  `json:"feature_id"`
	Opacity   float64 `json:"opacity"`
	SourceID  string  `json:"source_id"`
}

type overscanMsg struct {
	Type     string            `json:"type"`
	Overscan viewport.Overscan `json:"overscan"`
}

type pointReply struct {
	coord entities.Coordinate
	err   error
}

// Bridge is one renderer connection. It implements engine.Renderer.
//
// Writing is funneled through a single pump goroutine reading from a buffered
// channel, because gorilla/websocket allows at most one concurrent writer.
// Enqueues never block: a full buffer (a stalled client) drops the command,
// and the next visibility edge re-drives the marker.
//
// Go Learning Note — Pending-Reply Routing:
// point_to_coordinate is a request/response exchange over a full-duplex
// stream. Each query carries a fresh id and registers a 1-buffered reply
// channel in a map; the read loop routes the matching coordinate message back
// by id. The pattern decouples callers from the read loop — any number of
// queries can be in flight, each caller blocked on its own channel.
type Bridge struct {
	conn *websocket.Conn
	eng  *engine.Engine

	out       chan interface{}
	closed    chan struct{}
	closeOnce sync.Once

	nextID  uint64
	mu      sync.Mutex
	pending map[uint64]chan pointReply

	capMu        sync.RWMutex
	p2c          bool
	featureState bool
	attached     bool
}

// NewBridge wraps an upgraded websocket connection for the given session
// engine. Call Run to start relaying.
func NewBridge(conn *websocket.Conn, eng *engine.Engine) *Bridge {
	return &Bridge{
		conn:    conn,
		eng:     eng,
		out:     make(chan interface{}, 256),
		closed:  make(chan struct{}),
		pending: make(map[uint64]chan pointReply),
	}
}

// Run starts the write pump and processes inbound messages until the
// connection drops. It blocks; the caller owns the connection's lifetime.
// The bridge attaches itself to the engine once the renderer's hello arrives
// and detaches on exit.
func (b *Bridge) Run() {
	go b.writePump()
	b.readLoop()

	b.Close()
	b.capMu.RLock()
	attached := b.attached
	b.capMu.RUnlock()
	if attached {
		b.eng.DetachRenderer(b)
	}
	b.failPending(ErrClosed)
}

// Close tears the connection down. Safe to call multiple times and
// concurrently with Run.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.closed)
		b.conn.Close()
	})
}

// SupportsPointToCoordinate reports the declared capability.
func (b *Bridge) SupportsPointToCoordinate() bool {
	b.capMu.RLock()
	defer b.capMu.RUnlock()
	return b.p2c
}

// SupportsFeatureState reports the declared capability.
func (b *Bridge) SupportsFeatureState() bool {
	b.capMu.RLock()
	defer b.capMu.RUnlock()
	return b.featureState
}

// PointToCoordinate asks the renderer to convert a view pixel to a geographic
// coordinate. Blocks until the renderer answers, ctx is done, or the
// connection closes.
func (b *Bridge) PointToCoordinate(ctx context.Context, x, y float64) (entities.Coordinate, error) {
	if !b.SupportsPointToCoordinate() {
		return entities.Coordinate{}, ErrNotSupported
	}

	id := atomic.AddUint64(&b.nextID, 1)
	reply := make(chan pointReply, 1)

	b.mu.Lock()
	b.pending[id] = reply
	b.mu.Unlock()

	b.enqueue(pointQueryMsg{Type: "point_to_coordinate", ID: id, X: x, Y: y})

	select {
	case r := <-reply:
		return r.coord, r.err
	case <-ctx.Done():
		b.dropPending(id)
		return entities.Coordinate{}, ctx.Err()
	case <-b.closed:
		b.dropPending(id)
		return entities.Coordinate{}, ErrClosed
	}
}

// SetMarkerOpacity pushes an immediate opacity write.
func (b *Bridge) SetMarkerOpacity(key string, opacity float64) {
	b.enqueue(setOpacityMsg{Type: "set_marker_opacity", Key: key, Opacity: opacity})
}

// AnimateReveal asks the renderer to restart the marker at opacity 0 and fade
// it to 1 with an ease-out curve.
func (b *Bridge) AnimateReveal(key string, delay, duration time.Duration) {
	b.enqueue(animateRevealMsg{
		Type:       "animate_marker",
		Key:        key,
		DelayMs:    delay.Milliseconds(),
		DurationMs: duration.Milliseconds(),
		Easing:     "ease-out-cubic",
	})
}

// SetFeatureState pushes one label opacity step.
func (b *Bridge) SetFeatureState(ctx context.Context, featureID string, opacity float64, sourceID string) error {
	if !b.SupportsFeatureState() {
		return ErrNotSupported
	}
	b.enqueue(featureStateMsg{
		Type:      "set_feature_state",
		FeatureID: featureID,
		Opacity:   opacity,
		SourceID:  sourceID,
	})
	return nil
}

// readLoop decodes and dispatches inbound messages until the connection
// errors (which includes normal closure).
func (b *Bridge) readLoop() {
	for {
		var msg inboundMessage
		if err := b.conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[RENDERER] read error: %v", err)
			}
			return
		}
		metrics.RendererMessagesTotal.WithLabelValues("in", msg.Type).Inc()
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg inboundMessage) {
	switch msg.Type {
	case "hello":
		b.handleHello(msg.Capabilities)
	case "camera_changed":
		b.eng.OnCameraChanged(msg.Camera)
	case "camera_idle":
		b.eng.OnCameraIdle(msg.Camera)
	case "map_loaded":
		b.eng.OnMapLoaded()
	case "viewport":
		b.eng.SetViewportSize(entities.ViewportSize{Width: msg.Width, Height: msg.Height})
	case "coordinate":
		b.resolvePending(msg.ID, pointReply{
			coord: entities.Coordinate{Longitude: msg.Lng, Latitude: msg.Lat},
		})
	case "coordinate_error":
		b.resolvePending(msg.ID, pointReply{err: errors.New(msg.Error)})
	case "marker_press":
		b.eng.MarkerPress(msg.Key)
	case "mount_deferred":
		b.eng.SetMountDeferred(msg.Deferred)
	default:
		log.Printf("[RENDERER] unknown message type %q", msg.Type)
	}
}

// handleHello records the declared capabilities, replies with the overscan
// margins the client must style its render surface with, and attaches the
// bridge to the engine. A second hello only updates capabilities.
func (b *Bridge) handleHello(capabilities []string) {
	b.capMu.Lock()
	b.p2c = false
	b.featureState = false
	for _, c := range capabilities {
		switch c {
		case CapPointToCoordinate:
			b.p2c = true
		case CapFeatureState:
			b.featureState = true
		}
	}
	firstHello := !b.attached
	b.attached = true
	b.capMu.Unlock()

	b.enqueue(overscanMsg{Type: "overscan", Overscan: b.eng.Overscan()})
	if firstHello {
		b.eng.AttachRenderer(b)
	}
}

func (b *Bridge) resolvePending(id uint64, r pointReply) {
	b.mu.Lock()
	reply, ok := b.pending[id]
	if ok {
		delete(b.pending, id)
	}
	b.mu.Unlock()
	if ok {
		reply <- r
	}
}

func (b *Bridge) dropPending(id uint64) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

// failPending answers every outstanding query with err. Called once on
// shutdown so no caller stays blocked on a dead connection.
func (b *Bridge) failPending(err error) {
	b.mu.Lock()
	pending := b.pending
	b.pending = make(map[uint64]chan pointReply)
	b.mu.Unlock()
	for _, reply := range pending {
		reply <- pointReply{err: err}
	}
}

// enqueue hands a message to the write pump without blocking.
func (b *Bridge) enqueue(msg interface{}) {
	select {
	case b.out <- msg:
	case <-b.closed:
	default:
		log.Printf("[RENDERER] outbound buffer full, dropping message")
	}
}

// writePump is the single writer the websocket requires.
func (b *Bridge) writePump() {
	for {
		select {
		case <-b.closed:
			return
		case msg := <-b.out:
			if err := b.conn.WriteJSON(msg); err != nil {
				log.Printf("[RENDERER] write error: %v", err)
				b.Close()
				return
			}
			metrics.RendererMessagesTotal.WithLabelValues("out", messageType(msg)).Inc()
		}
	}
}

func messageType(msg interface{}) string {
	switch m := msg.(type) {
	case pointQueryMsg:
		return m.Type
	case setOpacityMsg:
		return m.Type
	case animateRevealMsg:
		return m.Type
	case featureStateMsg:
		return m.Type
	case overscanMsg:
		return m.Type
	default:
		return "unknown"
	}
}
