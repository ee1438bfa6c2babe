package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event types published by the gateway.
const (
	TypeFileUploaded = "file.uploaded"
	TypeFileRemoved  = "file.removed"
)

// Envelope is the message published to the event bus when a file changes.
type Envelope struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Subject  string    `json:"subject"`
	Path     string    `json:"path"`
	FileName string    `json:"fileName"`
	At       time.Time `json:"at"`
}

// NewEnvelope stamps a fresh envelope with an ID and timestamp.
func NewEnvelope(eventType, subject, path, fileName string) Envelope {
	return Envelope{
		ID:       uuid.NewString(),
		Type:     eventType,
		Subject:  subject,
		Path:     path,
		FileName: fileName,
		At:       time.Now().UTC(),
	}
}

// Publisher delivers envelopes to the message bus. Publication is
// fire-and-forget from the gateway's perspective: failures are logged by
// the caller, never retried.
type Publisher interface {
	Publish(ctx context.Context, e Envelope) error
}

// Discard is a Publisher that drops everything. Used when no bus is
// configured.
type Discard struct{}

func (Discard) Publish(context.Context, Envelope) error { return nil }
