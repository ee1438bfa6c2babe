package session

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Appends are serialized by a single mutex,
// which satisfies the lost-update-free append contract within one process.
// It holds no durable state and is intended for tests and single-node
// deployments.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]string        // path -> sessionID
	chunks   map[string][]ChunkResult // sessionID -> results
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]string),
		chunks:   make(map[string][]ChunkResult),
	}
}

func (m *Memory) SetSessionID(_ context.Context, path string, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[path] = sessionID
	return nil
}

func (m *Memory) SessionID(_ context.Context, path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.sessions[path]
	if !ok {
		return "", ErrNotFound
	}
	return id, nil
}

func (m *Memory) AppendChunk(_ context.Context, sessionID string, result ChunkResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks[sessionID] = append(m.chunks[sessionID], result)
	return nil
}

func (m *Memory) ChunkResults(_ context.Context, sessionID string) ([]ChunkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	results := make([]ChunkResult, len(m.chunks[sessionID]))
	copy(results, m.chunks[sessionID])
	return results, nil
}

func (m *Memory) Clear(_ context.Context, path string, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[path] == sessionID {
		delete(m.sessions, path)
	}
	delete(m.chunks, sessionID)
	return nil
}
