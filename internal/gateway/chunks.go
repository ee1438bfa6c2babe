package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"valetgate/internal/session"
)

// UploadChunk stores one numbered chunk for the resource's active upload
// session and records its part handle. The size bound is enforced before
// any call to the object store. Concurrent uploads for distinct chunk IDs
// on the same session are safe: the session store's append is atomic.
func (s *Server) UploadChunk(ctx context.Context, subject, resource string, chunkID int, data []byte) Outcome {
	if int64(len(data)) > s.cfg.MaxChunkBytes {
		return softFailure(fmt.Sprintf("chunk exceeds maximum size of %d bytes", s.cfg.MaxChunkBytes))
	}

	path := filePath(subject, resource)

	sessionID, err := s.cfg.Sessions.SessionID(ctx, path)
	if errors.Is(err, session.ErrNotFound) {
		return softFailure("no upload session for resource")
	}
	if err != nil {
		slog.Warn("Look up upload session", "path", path, "err", err)
		return softFailure("could not upload chunk")
	}

	handle, err := s.cfg.Store.UploadPart(ctx, path, sessionID, chunkID, data)
	if err != nil {
		slog.Warn("Upload part", "path", path, "session_id", sessionID, "part", chunkID, "err", err)
		return softFailure("could not upload chunk")
	}

	if err := s.cfg.Sessions.AppendChunk(ctx, sessionID, session.ChunkResult{
		PartNumber: chunkID,
		Handle:     handle,
	}); err != nil {
		slog.Warn("Record chunk result", "path", path, "session_id", sessionID, "part", chunkID, "err", err)
		return softFailure("could not upload chunk")
	}

	return Outcome{OK: true}
}
