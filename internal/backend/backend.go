package backend

import (
	"context"
	"errors"
	"io"
	"time"
)

// Package-level sentinel errors returned by Client implementations.
// Callers decide retry behavior by checking ErrRetryable with errors.Is;
// the client itself never sleeps or retries.
var (
	ErrRetryable       = errors.New("backend temporarily unavailable")
	ErrUnauthorized    = errors.New("backend rejected credentials")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrBackend         = errors.New("backend error")
)

// SessionState is the normalized session view. The backend replies with two
// body shapes (flat and nested under "data"); both are folded into this type.
type SessionState struct {
	Name   string
	State  string
	QRCode string
}

// SendResult carries the backend's acknowledgement of an accepted message.
type SendResult struct {
	MessageID string
	Timestamp time.Time
}

// MediaInfo describes an outbound media payload.
type MediaInfo struct {
	Filename    string
	ContentType string
	Size        int64
	Caption     string
}

// Client wraps the remote messaging backend's HTTP API.
// All methods honor context cancellation and return wrapped sentinel errors.
type Client interface {
	// CreateSession asks the backend to start a session. A 409 maps to
	// ErrSessionExists; retryable failures wrap ErrRetryable.
	CreateSession(ctx context.Context, name string) (*SessionState, error)

	// SessionStatus returns the normalized state of an existing session.
	SessionStatus(ctx context.Context, name string) (*SessionState, error)

	// SendText delivers a text message through the given session.
	SendText(ctx context.Context, session, to, body string) (*SendResult, error)

	// SendMedia streams a media payload through the given session.
	SendMedia(ctx context.Context, session, to string, r io.Reader, info MediaInfo) (*SendResult, error)

	// Health reports whether the backend answers its health endpoint.
	Health(ctx context.Context) error
}
