package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"valetgate/internal/blobstore"
	"valetgate/internal/events"
	"valetgate/internal/session"
)

// CreateSession begins a multipart upload for the subject's resource and
// records the path-to-session mapping. Two concurrent creates for the same
// path yield two independent sessions; whichever finishes later wins.
func (s *Server) CreateSession(ctx context.Context, subject, resource string) (string, error) {
	path := filePath(subject, resource)

	sessionID, err := s.cfg.Store.CreateMultipartUpload(ctx, path)
	if err != nil {
		return "", fmt.Errorf("begin multipart upload for %q: %w", path, err)
	}

	if err := s.cfg.Sessions.SetSessionID(ctx, path, sessionID); err != nil {
		// The store-side upload is now orphaned; discard it on a best-effort
		// basis before reporting the failure.
		if abortErr := s.cfg.Store.AbortMultipartUpload(ctx, path, sessionID); abortErr != nil {
			slog.Warn("Abort orphaned upload", "path", path, "session_id", sessionID, "err", abortErr)
		}
		return "", fmt.Errorf("record session for %q: %w", path, err)
	}

	return sessionID, nil
}

// FinishSession assembles the object from its recorded chunks and publishes
// a file.uploaded event. Every failure mode is a soft outcome: finishing a
// path with no session, or hitting an upstream fault, reports OK=false and
// never raises an error to the caller.
func (s *Server) FinishSession(ctx context.Context, subject, resource string) Outcome {
	path := filePath(subject, resource)

	sessionID, err := s.cfg.Sessions.SessionID(ctx, path)
	if errors.Is(err, session.ErrNotFound) {
		return softFailure("no upload session for resource")
	}
	if err != nil {
		slog.Warn("Look up upload session", "path", path, "err", err)
		return softFailure("could not finish upload")
	}

	results, err := s.cfg.Sessions.ChunkResults(ctx, sessionID)
	if err != nil {
		slog.Warn("Read chunk results", "path", path, "session_id", sessionID, "err", err)
		return softFailure("could not finish upload")
	}

	parts, err := assembleParts(results)
	if err != nil {
		slog.Warn("Validate chunk sequence", "path", path, "session_id", sessionID, "err", err)
		return softFailure(err.Error())
	}

	if err := s.cfg.Store.CompleteMultipartUpload(ctx, path, sessionID, parts); err != nil {
		slog.Warn("Complete multipart upload", "path", path, "session_id", sessionID, "err", err)
		return softFailure("could not finish upload")
	}

	if err := s.cfg.Sessions.Clear(ctx, path, sessionID); err != nil {
		slog.Warn("Clear upload session", "path", path, "session_id", sessionID, "err", err)
	}

	env := events.NewEnvelope(events.TypeFileUploaded, subject, path, resource)
	if err := s.cfg.Events.Publish(ctx, env); err != nil {
		slog.Warn("Publish file.uploaded", "path", path, "err", err)
	}

	return Outcome{OK: true}
}

// AbortSession discards an in-progress upload and its recorded chunks.
func (s *Server) AbortSession(ctx context.Context, subject, resource string) Outcome {
	path := filePath(subject, resource)

	sessionID, err := s.cfg.Sessions.SessionID(ctx, path)
	if errors.Is(err, session.ErrNotFound) {
		return softFailure("no upload session for resource")
	}
	if err != nil {
		slog.Warn("Look up upload session", "path", path, "err", err)
		return softFailure("could not abort upload")
	}

	if err := s.cfg.Store.AbortMultipartUpload(ctx, path, sessionID); err != nil {
		slog.Warn("Abort multipart upload", "path", path, "session_id", sessionID, "err", err)
		return softFailure("could not abort upload")
	}

	if err := s.cfg.Sessions.Clear(ctx, path, sessionID); err != nil {
		slog.Warn("Clear upload session", "path", path, "session_id", sessionID, "err", err)
	}

	return Outcome{OK: true}
}

// RemoveFile deletes the assembled object and publishes a file.removed
// event.
func (s *Server) RemoveFile(ctx context.Context, subject, resource string) Outcome {
	path := filePath(subject, resource)

	if err := s.cfg.Store.Remove(ctx, path); err != nil {
		slog.Warn("Remove object", "path", path, "err", err)
		return softFailure("could not remove file")
	}

	env := events.NewEnvelope(events.TypeFileRemoved, subject, path, resource)
	if err := s.cfg.Events.Publish(ctx, env); err != nil {
		slog.Warn("Publish file.removed", "path", path, "err", err)
	}

	return Outcome{OK: true}
}

// assembleParts orders the recorded chunk results by part number and checks
// that they form a gap-free sequence starting at part 1. A chunk uploaded
// more than once keeps its most recently recorded handle.
func assembleParts(results []session.ChunkResult) ([]blobstore.Part, error) {
	if len(results) == 0 {
		return nil, errors.New("no chunks recorded for upload")
	}

	latest := make(map[int]string, len(results))
	for _, r := range results {
		latest[r.PartNumber] = r.Handle
	}

	parts := make([]blobstore.Part, 0, len(latest))
	for number, handle := range latest {
		parts = append(parts, blobstore.Part{Number: number, Handle: handle})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Number < parts[j].Number })

	for i, p := range parts {
		if p.Number != i+1 {
			return nil, fmt.Errorf("chunk sequence has a gap at part %d", i+1)
		}
	}

	return parts, nil
}
