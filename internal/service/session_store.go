package service

import (
	"sync"
	"time"

	"publish-queue/internal/models"
)

// SessionStore holds pending handshake sessions keyed by state token.
// TakeOnce has read-and-delete semantics: each state token is consumed at
// most once, which is what makes the token usable as a CSRF nonce.
type SessionStore interface {
	Put(state string, session *models.HandshakeSession)
	TakeOnce(state string) (*models.HandshakeSession, bool)
	Stop()
}

// MemorySessionStore is a single-node in-memory SessionStore. Unconsumed
// sessions are discarded after their TTL to bound memory and prevent replay.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.HandshakeSession
	ttl      time.Duration
	stopChan chan struct{}
}

// NewMemorySessionStore creates a session store whose entries expire after ttl
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	store := &MemorySessionStore{
		sessions: make(map[string]*models.HandshakeSession),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	go store.cleanupLoop(ttl)

	return store
}

// Stop stops the cleanup goroutine
func (s *MemorySessionStore) Stop() {
	close(s.stopChan)
}

func (s *MemorySessionStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemorySessionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for state, session := range s.sessions {
		if session.ExpiresAt.Before(now) {
			delete(s.sessions, state)
		}
	}
}

// Put stores a session under its state token
func (s *MemorySessionStore) Put(state string, session *models.HandshakeSession) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session.ExpiresAt = time.Now().Add(s.ttl)
	s.sessions[state] = session
}

// TakeOnce removes and returns the session for a state token. Expired
// sessions count as absent even if the cleanup loop has not swept them yet.
func (s *MemorySessionStore) TakeOnce(state string) (*models.HandshakeSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[state]
	if !ok {
		return nil, false
	}
	delete(s.sessions, state)

	if session.ExpiresAt.Before(time.Now()) {
		return nil, false
	}

	return session, true
}
