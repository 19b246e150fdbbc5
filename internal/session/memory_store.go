package session

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory Store for tests and the demo mode. Safe
// for concurrent use.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string]CallSession
	transcripts map[string][]TranscriptEntry
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:    map[string]CallSession{},
		transcripts: map[string][]TranscriptEntry{},
	}
}

// Save persists or updates a session.
func (m *MemoryStore) Save(_ context.Context, sess *CallSession) error {
	if sess == nil || sess.CallID == "" {
		return fmt.Errorf("session: call_id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.CallID] = *sess
	return nil
}

// Get retrieves a session, or (nil, nil) when none exists.
func (m *MemoryStore) Get(_ context.Context, callID string) (*CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[callID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

// Delete removes a session and its transcript.
func (m *MemoryStore) Delete(_ context.Context, callID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, callID)
	delete(m.transcripts, callID)
	return nil
}

// AppendTranscript adds one utterance to the call transcript.
func (m *MemoryStore) AppendTranscript(_ context.Context, callID string, entry TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[callID] = append(m.transcripts[callID], entry)
	return nil
}

// Transcript returns the full transcript in insertion order.
func (m *MemoryStore) Transcript(_ context.Context, callID string) ([]TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]TranscriptEntry, len(m.transcripts[callID]))
	copy(entries, m.transcripts[callID])
	return entries, nil
}
