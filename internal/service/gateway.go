package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"chatgate/internal/backend"
	"chatgate/internal/model"
	"chatgate/internal/repository"
	"chatgate/internal/storage"
)

var (
	ErrSessionNameRequired = errors.New("session name is required")
	ErrRecipientRequired   = errors.New("recipient is required")
	ErrBodyRequired        = errors.New("message body is required")
	ErrReaderNil           = errors.New("reader is nil")
	ErrMediaTooLarge       = errors.New("media exceeds size limit")
	ErrMediaEmpty          = errors.New("media size must be positive")
	ErrAttemptsExhausted   = errors.New("session creation attempts exhausted")
)

// MessageListResult is the service-level DTO for paginated outbox records.
type MessageListResult struct {
	Items []model.Message `json:"data"`
	Total int             `json:"total"`
}

// HealthReport describes the state of the gateway's dependencies.
type HealthReport struct {
	Backend bool `json:"backend"`
}

// RetryPolicy bounds the session-creation retry loop. Attempts counts total
// tries, not retries; Backoff grows linearly with the attempt number.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// GatewayService defines the use cases of the messaging gateway frontend.
type GatewayService interface {
	// OpenSession creates a session on the backend, retrying transient
	// failures per the configured policy. An already-existing session is
	// resolved to its current status rather than an error.
	OpenSession(ctx context.Context, name string) (*model.Session, error)

	// Status returns the normalized state of a session.
	Status(ctx context.Context, name string) (*model.Session, error)

	// SendText delivers a text message and records it in the outbox.
	SendText(ctx context.Context, session, to, body string) (*model.Message, error)

	// SendMedia stages the payload in object storage, streams it to the
	// backend, and records the send; staged objects are removed if the
	// backend rejects the send.
	SendMedia(ctx context.Context, session, to string, r io.Reader, originalFilename, contentType string, size int64, caption string) (*model.Message, error)

	// ListMessages returns outbox records using limit/offset and a total count.
	ListMessages(ctx context.Context, session string, limit, offset int) (*MessageListResult, error)

	// MediaURL returns a presigned download URL for a media record.
	MediaURL(ctx context.Context, id string, expiry time.Duration) (string, error)

	// Health reports backend reachability.
	Health(ctx context.Context) (*HealthReport, error)
}

// gatewayService is a concrete implementation of GatewayService.
type gatewayService struct {
	backend  backend.Client
	repo     repository.OutboxRepository
	store    storage.Storage
	retry    RetryPolicy
	maxMedia int64
}

// NewGatewayService constructs a new GatewayService.
func NewGatewayService(be backend.Client, repo repository.OutboxRepository, store storage.Storage, retry RetryPolicy, maxMediaBytes int64) GatewayService {
	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}
	if maxMediaBytes <= 0 {
		maxMediaBytes = 16 << 20
	}
	return &gatewayService{backend: be, repo: repo, store: store, retry: retry, maxMedia: maxMediaBytes}
}

func (s *gatewayService) OpenSession(ctx context.Context, name string) (*model.Session, error) {
	if name == "" {
		return nil, ErrSessionNameRequired
	}

	var lastErr error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		st, err := s.backend.CreateSession(ctx, name)
		if err == nil {
			return toSession(st), nil
		}
		if errors.Is(err, backend.ErrSessionExists) {
			// The session is already live on the backend; attach to it.
			st, err := s.backend.SessionStatus(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("attach to existing session: %w", err)
			}
			sess := toSession(st)
			if sess.State == "" {
				sess.State = model.SessionStateAttached
			}
			return sess, nil
		}
		if !errors.Is(err, backend.ErrRetryable) {
			return nil, err
		}

		lastErr = err
		if attempt == s.retry.Attempts {
			break
		}
		if err := sleepCtx(ctx, s.retry.Backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %v", ErrAttemptsExhausted, s.retry.Attempts, lastErr)
}

func (s *gatewayService) Status(ctx context.Context, name string) (*model.Session, error) {
	if name == "" {
		return nil, ErrSessionNameRequired
	}
	st, err := s.backend.SessionStatus(ctx, name)
	if err != nil {
		return nil, err
	}
	return toSession(st), nil
}

func (s *gatewayService) SendText(ctx context.Context, session, to, body string) (*model.Message, error) {
	if session == "" {
		return nil, ErrSessionNameRequired
	}
	if to == "" {
		return nil, ErrRecipientRequired
	}
	if body == "" {
		return nil, ErrBodyRequired
	}

	res, err := s.backend.SendText(ctx, session, to, body)
	if err != nil {
		return nil, fmt.Errorf("send text: %w", err)
	}

	msg := &model.Message{
		ID:          uuid.New().String(),
		SessionName: session,
		Recipient:   to,
		Kind:        model.MessageKindText,
		Body:        body,
		BackendID:   res.MessageID,
		CreatedAt:   res.Timestamp,
	}
	stored, err := s.repo.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("record sent message: %w", err)
	}
	return stored, nil
}

func (s *gatewayService) SendMedia(ctx context.Context, session, to string, r io.Reader, originalFilename, contentType string, size int64, caption string) (*model.Message, error) {
	if session == "" {
		return nil, ErrSessionNameRequired
	}
	if to == "" {
		return nil, ErrRecipientRequired
	}
	if r == nil {
		return nil, ErrReaderNil
	}
	if size <= 0 {
		return nil, ErrMediaEmpty
	}
	if size > s.maxMedia {
		return nil, ErrMediaTooLarge
	}

	// Stage under a generated key; the original name survives as metadata.
	ext := filepath.Ext(originalFilename)
	key := filepath.ToSlash(filepath.Join("media", uuid.New().String()+ext))

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := s.store.Put(ctx, key, r, storage.PutOptions{
		Size:        size,
		ContentType: contentType,
		Metadata: map[string]string{
			"original-filename": originalFilename,
		},
	}); err != nil {
		return nil, fmt.Errorf("stage media: %w", err)
	}

	// Stream the staged object to the backend.
	obj, _, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read staged media: %w", err)
	}
	defer obj.Close()

	res, err := s.backend.SendMedia(ctx, session, to, obj, backend.MediaInfo{
		Filename:    originalFilename,
		ContentType: contentType,
		Size:        size,
		Caption:     caption,
	})
	if err != nil {
		// The backend never saw the payload; drop the staged copy.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("send media failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("send media: %w", err)
	}

	msg := &model.Message{
		ID:          uuid.New().String(),
		SessionName: session,
		Recipient:   to,
		Kind:        model.MessageKindMedia,
		Body:        caption,
		BackendID:   res.MessageID,
		MediaPath:   key,
		ContentType: contentType,
		Size:        size,
		CreatedAt:   res.Timestamp,
	}
	stored, err := s.repo.Create(ctx, msg)
	if err != nil {
		// The send went through; keep the staged object so the payload can
		// still be recovered, but surface the bookkeeping failure.
		return nil, fmt.Errorf("media sent (backend id %s) but record failed: %w", res.MessageID, err)
	}
	return stored, nil
}

// ListMessages returns paginated outbox records without exposing repository types.
func (s *gatewayService) ListMessages(ctx context.Context, session string, limit, offset int) (*MessageListResult, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	res, err := s.repo.List(ctx, repository.PageQuery{Limit: limit, Offset: offset, Session: session})
	if err != nil {
		return nil, err
	}
	return &MessageListResult{Items: res.Items, Total: res.Total}, nil
}

// MediaURL presigns the staged payload of a media record.
func (s *gatewayService) MediaURL(ctx context.Context, id string, expiry time.Duration) (string, error) {
	if id == "" {
		return "", errors.New("id is required")
	}
	msg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}
	if msg.MediaPath == "" {
		return "", fmt.Errorf("message %s has no media payload", id)
	}
	return s.store.PresignGet(ctx, msg.MediaPath, expiry)
}

func (s *gatewayService) Health(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{Backend: true}
	if err := s.backend.Health(ctx); err != nil {
		report.Backend = false
		return report, err
	}
	return report, nil
}

func toSession(st *backend.SessionState) *model.Session {
	return &model.Session{
		Name:      st.Name,
		State:     st.State,
		QRCode:    st.QRCode,
		UpdatedAt: time.Now().UTC(),
	}
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
