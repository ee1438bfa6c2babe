package gateway

// Outcome is the result of an upload-session or chunk operation. Failed
// preconditions and upstream faults surface here as OK=false with a short
// message; they are never raised to HTTP callers as errors.
type Outcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

func softFailure(message string) Outcome {
	return Outcome{OK: false, Message: message}
}

// CreateSessionResponse is the body returned when an upload session opens.
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// ErrorResponse is the JSON envelope for request-level failures.
type ErrorResponse struct {
	Error string `json:"error"`
}
