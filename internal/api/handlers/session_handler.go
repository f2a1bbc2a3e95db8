// Package handlers contains the Gin HTTP handlers for the session API.
package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mapsearch/internal/api/middleware"
	"mapsearch/internal/config"
	"mapsearch/internal/domain/entities"
	"mapsearch/internal/engine"
	"mapsearch/internal/metrics"
	"mapsearch/internal/renderer"
	"mapsearch/internal/repository"
	"mapsearch/pkg/utils"
)

// SessionHandler serves the session lifecycle and the per-session operations:
// result delivery, marker presses, the debug state snapshot, and the renderer
// websocket.
type SessionHandler struct {
	sessions repository.SessionStore
	cfg      *config.Config
	notifier *engine.Notifier
	upgrader websocket.Upgrader
}

func NewSessionHandler(sessions repository.SessionStore, cfg *config.Config, notifier *engine.Notifier) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		cfg:      cfg,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The embedding app connects from a file:// or app:// origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// CreateSession handles POST /session. The response carries the overscan
// margins the client must style its render surface with.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	clientID := middleware.GetClientID(c)

	id := utils.GenerateID()
	session := &repository.Session{
		ID:        id,
		ClientID:  clientID,
		Engine:    engine.New(id, h.cfg, h.notifier),
		CreatedAt: time.Now(),
	}

	if err := h.sessions.Create(c.Request.Context(), session); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.SessionsActive.Inc()
	h.notifier.SessionCreated(session.ID, clientID)

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"overscan":   session.Engine.Overscan(),
	})
}

// DeleteSession handles DELETE /session/:id.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	if _, err := h.sessions.Delete(c.Request.Context(), session.ID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	session.Engine.Stop()
	metrics.SessionsActive.Dec()
	h.notifier.SessionClosed(session.ID)

	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "status": "closed"})
}

// DeliverResultsRequest is the POST /session/:id/results payload.
type DeliverResultsRequest struct {
	Results       []entities.SearchResult `json:"results" binding:"required"`
	AnimateReveal bool                    `json:"animate_reveal"`
	DeferMount    bool                    `json:"defer_mount"`
}

// DeliverResults handles POST /session/:id/results.
func (h *SessionHandler) DeliverResults(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	var req DeliverResultsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session.Engine.DeliverResults(req.Results, engine.DeliveryOptions{
		AnimateReveal: req.AnimateReveal,
		DeferMount:    req.DeferMount,
	})

	c.JSON(http.StatusAccepted, gin.H{
		"session_id": session.ID,
		"accepted":   len(req.Results),
	})
}

// MarkerPress handles POST /session/:id/marker/:key/press.
func (h *SessionHandler) MarkerPress(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	key := c.Param("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing marker key"})
		return
	}

	session.Engine.MarkerPress(key)
	c.JSON(http.StatusOK, gin.H{"session_id": session.ID, "key": key})
}

// GetState handles GET /debug/session/:id/state.
func (h *SessionHandler) GetState(c *gin.Context) {
	session, err := h.sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, session.Engine.Snapshot())
}

// Renderer handles GET /session/:id/renderer: it upgrades to a websocket and
// relays until the renderer disconnects. One renderer per session at a time;
// a newer connection simply supersedes the engine's attachment.
func (h *SessionHandler) Renderer(c *gin.Context) {
	session, ok := h.ownedSession(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error response.
		log.Printf("[API] websocket upgrade failed for session %s: %v", session.ID, err)
		return
	}

	renderer.NewBridge(conn, session.Engine).Run()
}

// ownedSession resolves :id and enforces that the caller owns the session.
func (h *SessionHandler) ownedSession(c *gin.Context) (*repository.Session, bool) {
	session, err := h.sessions.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	if !middleware.RequireSessionOwner(c, session.ClientID) {
		return nil, false
	}
	return session, true
}
