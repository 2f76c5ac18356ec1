// Package session tracks per-chat-user authentication state.
package session

import "sync"

// Session is the auth state of one chat user.
type Session struct {
	Token    string
	Email    string
	Username string
}

// Store holds at most one Session per chat user identifier.
type Store interface {
	Set(userID, token, email, username string)
	Get(userID string) (Session, bool)
	Has(userID string) bool
	Delete(userID string)
}

// Memory is a process-local Store. Safe for concurrent use.
type Memory struct {
	sessions map[string]Session
	mu       sync.RWMutex
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

// Set inserts or overwrites the session for userID.
func (m *Memory) Set(userID, token, email, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = Session{Token: token, Email: email, Username: username}
}

// Get returns the session for userID and whether one exists.
func (m *Memory) Get(userID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// Has reports whether userID has a session.
func (m *Memory) Has(userID string) bool {
	_, ok := m.Get(userID)
	return ok
}

// Delete removes the session for userID. Unknown users are a no-op.
func (m *Memory) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len returns the number of active sessions.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
