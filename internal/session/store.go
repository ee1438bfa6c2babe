package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no upload session is recorded for a path.
var ErrNotFound = errors.New("session: not found")

// ChunkResult records where one uploaded part landed in the object store.
type ChunkResult struct {
	PartNumber int    `json:"partNumber"`
	Handle     string `json:"handle"`
}

// Store is the key-value contract behind upload sessions: it maps a logical
// file path to its active upload-session ID, and a session ID to the chunk
// results recorded so far.
//
// AppendChunk must be atomic per session key: concurrent appends for the
// same session must all be retained, never lost to a stale read-modify-write.
// ChunkResults may return entries in any order; callers recover ordering
// from the part numbers.
type Store interface {
	// SetSessionID records path -> sessionID, replacing any previous mapping.
	SetSessionID(ctx context.Context, path string, sessionID string) error

	// SessionID returns the active session for path, or ErrNotFound.
	SessionID(ctx context.Context, path string) (string, error)

	// AppendChunk atomically appends one chunk result to the session.
	AppendChunk(ctx context.Context, sessionID string, result ChunkResult) error

	// ChunkResults returns every chunk result recorded for the session.
	ChunkResults(ctx context.Context, sessionID string) ([]ChunkResult, error)

	// Clear removes the path mapping if it still points at sessionID, and
	// drops the session's chunk results.
	Clear(ctx context.Context, path string, sessionID string) error
}
