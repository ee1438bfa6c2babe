package gateway

import (
	"errors"

	"valetgate/internal/blobstore"
	"valetgate/internal/events"
	"valetgate/internal/session"
	"valetgate/internal/valet"
)

// DefaultMaxChunkBytes is used when Config.MaxChunkBytes is left zero.
const DefaultMaxChunkBytes = 5 * 1024 * 1024

// Config wires the gateway's collaborators together. Store, Sessions, and
// Decoder are required; Events defaults to a discard publisher.
type Config struct {
	// MaxChunkBytes bounds both uploaded chunk payloads and the negotiated
	// download chunk size.
	MaxChunkBytes int64

	Store    blobstore.ObjectStore
	Sessions session.Store
	Events   events.Publisher
	Decoder  valet.Decoder
}

// Server mediates chunked uploads and byte-range downloads against the
// backing object store, gated by valet-token grants.
type Server struct {
	cfg Config
}

// NewServer validates the wiring and returns a new Server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("Store must not be nil")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("Sessions must not be nil")
	}
	if cfg.Decoder == nil {
		return nil, errors.New("Decoder must not be nil")
	}
	if cfg.Events == nil {
		cfg.Events = events.Discard{}
	}
	if cfg.MaxChunkBytes <= 0 {
		cfg.MaxChunkBytes = DefaultMaxChunkBytes
	}

	return &Server{cfg: cfg}, nil
}

// filePath derives the object-store key for a subject's resource.
func filePath(subject, resource string) string {
	return subject + "/" + resource
}
