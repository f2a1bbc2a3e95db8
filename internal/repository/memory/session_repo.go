// Package memory provides the in-process session store.
package memory

import (
	"context"
	"errors"
	"sync"

	"mapsearch/internal/repository"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionRepository is a mutex-guarded map of active sessions.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*repository.Session
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[string]*repository.Session),
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *repository.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[session.ID] = session
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*repository.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) (*repository.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	session, exists := r.sessions[id]
	if !exists {
		return nil, ErrSessionNotFound
	}
	delete(r.sessions, id)
	return session, nil
}

func (r *SessionRepository) Count(ctx context.Context) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
