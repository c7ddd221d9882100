// Package memory provides the in-process session transcript store.
//
// Transcripts are keyed by a caller-supplied session ID, created on first use
// and kept for the life of the process. Nothing is persisted or evicted.
package memory

import "sync"

// Store is a concurrency-safe map from session ID to transcript text.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]string
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]string),
	}
}

// Ensure creates an empty transcript for sessionID if none exists. Calling it
// again for a known session is a no-op and never resets the transcript.
func (s *Store) Ensure(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		s.sessions[sessionID] = ""
	}
}

// Get returns the transcript for sessionID, or the empty string for an
// unknown session.
func (s *Store) Get(sessionID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// Set overwrites the transcript for sessionID.
func (s *Store) Set(sessionID, transcript string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = transcript
}

// Len returns the number of known sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
