package gateway

import (
	"net/http"

	"valetgate/internal/valet"
)

// Handler returns an http.Handler exposing the gateway API. Every /files/
// route sits behind the valet-token gate; /healthz does not.
func (s *Server) Handler() http.Handler {
	files := http.NewServeMux()

	// Upload session lifecycle
	files.HandleFunc("POST /files/{resource}/uploads", func(w http.ResponseWriter, r *http.Request) {
		s.handleCreateSession(w, r, r.PathValue("resource"))
	})
	files.HandleFunc("POST /files/{resource}/uploads/complete", func(w http.ResponseWriter, r *http.Request) {
		s.handleFinishSession(w, r, r.PathValue("resource"))
	})
	files.HandleFunc("DELETE /files/{resource}/uploads", func(w http.ResponseWriter, r *http.Request) {
		s.handleAbortSession(w, r, r.PathValue("resource"))
	})

	// Chunk ingestion
	files.HandleFunc("PUT /files/{resource}/chunks", func(w http.ResponseWriter, r *http.Request) {
		s.handleUploadChunk(w, r, r.PathValue("resource"))
	})

	// File-level operations
	files.HandleFunc("GET /files/{resource}", func(w http.ResponseWriter, r *http.Request) {
		s.handleDownload(w, r, r.PathValue("resource"))
	})
	files.HandleFunc("DELETE /files/{resource}", func(w http.ResponseWriter, r *http.Request) {
		s.handleRemoveFile(w, r, r.PathValue("resource"))
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("/files/", valet.RequireGrant(s.cfg.Decoder, files))

	return LogRequest(mux)
}
