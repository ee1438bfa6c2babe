package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"valetgate/internal/valet"
)

// Request headers consumed by the gateway.
const (
	ChunkIDHeader   = "x-chunk-id"
	ChunkSizeHeader = "x-chunk-size"
)

// grantFor fetches the request's grant and checks it covers the resource
// and operation. On failure it writes a 401 and returns ok=false.
func (s *Server) grantFor(w http.ResponseWriter, r *http.Request, resource string, op valet.Operation) (*valet.Grant, bool) {
	grant, ok := valet.GrantFromContext(r.Context())
	if !ok || !grant.Allows(resource, op) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	return grant, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationWrite)
	if !ok {
		return
	}

	sessionID, err := s.CreateSession(r.Context(), grant.Subject, resource)
	if err != nil {
		slog.Warn("Create upload session", "resource", resource, "err", err)
		writeJSON(w, http.StatusBadRequest, softFailure("could not create upload session"))
		return
	}

	writeJSON(w, http.StatusCreated, CreateSessionResponse{SessionID: sessionID})
}

func (s *Server) handleUploadChunk(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationWrite)
	if !ok {
		return
	}

	rawChunkID := r.Header.Get(ChunkIDHeader)
	if rawChunkID == "" {
		writeError(w, http.StatusBadRequest, "missing "+ChunkIDHeader+" header")
		return
	}
	chunkID, err := strconv.Atoi(rawChunkID)
	if err != nil || chunkID < 0 {
		writeError(w, http.StatusBadRequest, "invalid "+ChunkIDHeader+" header")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read chunk body")
		return
	}
	defer r.Body.Close()

	outcome := s.UploadChunk(r.Context(), grant.Subject, resource, chunkID, data)
	writeOutcome(w, outcome)
}

func (s *Server) handleFinishSession(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationWrite)
	if !ok {
		return
	}
	writeOutcome(w, s.FinishSession(r.Context(), grant.Subject, resource))
}

func (s *Server) handleAbortSession(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationWrite)
	if !ok {
		return
	}
	writeOutcome(w, s.AbortSession(r.Context(), grant.Subject, resource))
}

func (s *Server) handleRemoveFile(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationWrite)
	if !ok {
		return
	}
	writeOutcome(w, s.RemoveFile(r.Context(), grant.Subject, resource))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request, resource string) {
	grant, ok := s.grantFor(w, r, resource, valet.OperationRead)
	if !ok {
		return
	}

	plan, err := s.PlanDownload(r.Context(), grant.Subject, resource,
		r.Header.Get("Range"), r.Header.Get(ChunkSizeHeader))
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, ErrRangeNotSatisfiable):
		writeError(w, http.StatusRequestedRangeNotSatisfiable, "range not satisfiable")
		return
	case errors.Is(err, ErrCannotLocate):
		writeError(w, http.StatusBadRequest, "cannot locate resource")
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, "cannot plan download")
		return
	}

	// Headers go out before the backing stream is opened; a late open
	// failure can only truncate the body, which the client detects against
	// Content-Length.
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(plan.Length, 10))
	w.Header().Set("Content-Range", plan.ContentRange())
	w.WriteHeader(http.StatusPartialContent)

	rc, err := plan.Open(r.Context())
	if err != nil {
		slog.Error("Open range stream", "resource", resource, "err", err)
		return
	}
	defer rc.Close()

	if _, err := io.Copy(w, rc); err != nil {
		slog.Error("Stream range", "resource", resource, "err", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeOutcome(w http.ResponseWriter, outcome Outcome) {
	status := http.StatusOK
	if !outcome.OK {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, outcome)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Encode JSON response", "err", err)
	}
}
