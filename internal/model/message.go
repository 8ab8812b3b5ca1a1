package model

import "time"

// Message kinds stored in the outbox.
const (
	MessageKindText  = "text"
	MessageKindMedia = "media"
)

// Message is an outbox record for a send that was accepted by the backend.
// This is a pure domain model with no database-specific dependencies or tags.
// MediaPath and ContentType are set for media sends only; BackendID is the
// message identifier assigned by the remote backend.
type Message struct {
	ID          string    `json:"id"`
	SessionName string    `json:"session_name"`
	Recipient   string    `json:"recipient"`
	Kind        string    `json:"kind"`
	Body        string    `json:"body,omitempty"`
	BackendID   string    `json:"backend_id"`
	MediaPath   string    `json:"media_path,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	Size        int64     `json:"size,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
