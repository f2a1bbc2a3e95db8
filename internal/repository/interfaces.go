// Package repository defines the session store the API layer depends on.
//
// Go Learning Note — Accept Interfaces, Return Structs:
// Handlers depend on the SessionStore interface, not on the in-memory
// implementation. The memory package returns its concrete *SessionRepository;
// anything that wants a different backing store just has to satisfy this
// interface.
package repository

import (
	"context"
	"time"

	"mapsearch/internal/engine"
)

// Session is one active map session: a client's live visibility engine plus
// bookkeeping. Sessions are ephemeral runtime state — they hold goroutines
// and timers, not durable data.
type Session struct {
	ID        string
	ClientID  string
	Engine    *engine.Engine
	CreatedAt time.Time
}

// SessionStore manages active sessions.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	GetByID(ctx context.Context, id string) (*Session, error)
	// Delete removes and returns the session so the caller can stop its
	// engine outside the store's lock.
	Delete(ctx context.Context, id string) (*Session, error)
	Count(ctx context.Context) int
}
