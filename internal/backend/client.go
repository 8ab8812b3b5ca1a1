package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chatgate/internal/config"
)

// maxErrorBody caps how much of an error response is read for classification.
const maxErrorBody = 1 << 20

// httpClient implements Client over the backend's HTTP API.
// It is safe for concurrent use by multiple goroutines.
type httpClient struct {
	base     *url.URL
	token    string
	client   *http.Client
	requests *prometheus.CounterVec
}

// NewHTTPClient builds a Client for the configured backend. The outbound
// transport is wrapped with otelhttp and per-operation request counters are
// registered on reg.
func NewHTTPClient(cfg config.BackendConfig, reg prometheus.Registerer) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend base url: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of requests sent to the messaging backend.",
		},
		[]string{"operation", "status"},
	)
	if reg != nil {
		if err := reg.Register(requests); err != nil {
			return nil, err
		}
	}

	return &httpClient{
		base:  base,
		token: cfg.Token,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		requests: requests,
	}, nil
}

// sessionBody is the wire shape for session creation and status responses.
// Older backend versions nest the payload under "data"; newer ones reply flat.
// The "retry" flag marks a transient condition on 422/503 responses.
type sessionBody struct {
	Status string       `json:"status"`
	QRCode string       `json:"qrcode"`
	Retry  bool         `json:"retry"`
	Error  string       `json:"error"`
	Data   *sessionBody `json:"data"`
}

// sendBody is the wire shape for message/media send acknowledgements.
type sendBody struct {
	ID        string    `json:"id"`
	Timestamp int64     `json:"timestamp"`
	Error     string    `json:"error"`
	Data      *sendBody `json:"data"`
}

// normalize folds the flat and nested response shapes into one SessionState.
func (b *sessionBody) normalize(name string) *SessionState {
	status, qr := b.Status, b.QRCode
	if status == "" && b.Data != nil {
		status, qr = b.Data.Status, b.Data.QRCode
	}
	return &SessionState{Name: name, State: strings.ToLower(status), QRCode: qr}
}

// normalize folds the flat and nested acknowledgement shapes into one SendResult.
func (b *sendBody) normalize() *SendResult {
	id, ts := b.ID, b.Timestamp
	if id == "" && b.Data != nil {
		id, ts = b.Data.ID, b.Data.Timestamp
	}
	res := &SendResult{MessageID: id}
	if ts > 0 {
		res.Timestamp = time.Unix(ts, 0).UTC()
	} else {
		res.Timestamp = time.Now().UTC()
	}
	return res
}

// message returns the backend-supplied error string, if any.
func (b *sessionBody) message() string {
	if b.Error != "" {
		return b.Error
	}
	if b.Data != nil && b.Data.Error != "" {
		return b.Data.Error
	}
	return ""
}

// classifyCreate maps a session-creation response to a sentinel error.
// This is the retry decision table: status code plus the "retry" body flag.
func classifyCreate(status int, body *sessionBody) error {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusConflict:
		return ErrSessionExists
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusUnprocessableEntity || status == http.StatusServiceUnavailable:
		if body.Retry || (body.Data != nil && body.Data.Retry) {
			return ErrRetryable
		}
		return ErrBackend
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return ErrRetryable
	default:
		return ErrBackend
	}
}

// classifyOp maps non-creation responses (status, sends) to a sentinel error.
func classifyOp(status int) error {
	switch {
	case status == http.StatusOK || status == http.StatusCreated:
		return nil
	case status == http.StatusNotFound:
		return ErrSessionNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrUnauthorized
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		return ErrRetryable
	default:
		return ErrBackend
	}
}

func (c *httpClient) CreateSession(ctx context.Context, name string) (*SessionState, error) {
	if name == "" {
		return nil, fmt.Errorf("session name is required")
	}

	payload, _ := json.Marshal(map[string]string{"session": name})
	resp, err := c.do(ctx, "create_session", http.MethodPost, "/api/sessions", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, fmt.Errorf("create session %q: %w", name, err)
	}
	defer drainClose(resp.Body)

	var body sessionBody
	decodeJSON(resp.Body, &body)

	if err := classifyCreate(resp.StatusCode, &body); err != nil {
		return nil, wrapStatus("create session "+strconv.Quote(name), resp.StatusCode, body.message(), err)
	}
	return body.normalize(name), nil
}

func (c *httpClient) SessionStatus(ctx context.Context, name string) (*SessionState, error) {
	if name == "" {
		return nil, fmt.Errorf("session name is required")
	}

	resp, err := c.do(ctx, "session_status", http.MethodGet, "/api/sessions/"+url.PathEscape(name)+"/status", nil, "")
	if err != nil {
		return nil, fmt.Errorf("session status %q: %w", name, err)
	}
	defer drainClose(resp.Body)

	var body sessionBody
	decodeJSON(resp.Body, &body)

	if err := classifyOp(resp.StatusCode); err != nil {
		return nil, wrapStatus("session status "+strconv.Quote(name), resp.StatusCode, body.message(), err)
	}
	return body.normalize(name), nil
}

func (c *httpClient) SendText(ctx context.Context, session, to, body string) (*SendResult, error) {
	if session == "" {
		return nil, fmt.Errorf("session name is required")
	}

	payload, _ := json.Marshal(map[string]string{"to": to, "body": body})
	resp, err := c.do(ctx, "send_text", http.MethodPost, "/api/sessions/"+url.PathEscape(session)+"/messages", bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, fmt.Errorf("send text via %q: %w", session, err)
	}
	defer drainClose(resp.Body)

	var ack sendBody
	decodeJSON(resp.Body, &ack)

	if err := classifyOp(resp.StatusCode); err != nil {
		return nil, wrapStatus("send text via "+strconv.Quote(session), resp.StatusCode, ack.Error, err)
	}
	return ack.normalize(), nil
}

func (c *httpClient) SendMedia(ctx context.Context, session, to string, r io.Reader, info MediaInfo) (*SendResult, error) {
	if session == "" {
		return nil, fmt.Errorf("session name is required")
	}
	if r == nil {
		return nil, fmt.Errorf("media reader is nil")
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeMediaForm(mw, to, r, info)
		mw.Close()
		pw.CloseWithError(err)
	}()

	resp, err := c.do(ctx, "send_media", http.MethodPost, "/api/sessions/"+url.PathEscape(session)+"/media", pr, mw.FormDataContentType())
	if err != nil {
		return nil, fmt.Errorf("send media via %q: %w", session, err)
	}
	defer drainClose(resp.Body)

	var ack sendBody
	decodeJSON(resp.Body, &ack)

	if err := classifyOp(resp.StatusCode); err != nil {
		return nil, wrapStatus("send media via "+strconv.Quote(session), resp.StatusCode, ack.Error, err)
	}
	return ack.normalize(), nil
}

func (c *httpClient) Health(ctx context.Context) error {
	resp, err := c.do(ctx, "health", http.MethodGet, "/api/health", nil, "")
	if err != nil {
		return fmt.Errorf("backend health: %w", err)
	}
	defer drainClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return wrapStatus("backend health", resp.StatusCode, "", ErrBackend)
	}
	return nil
}

// do issues one request with auth header and records the request counter.
func (c *httpClient) do(ctx context.Context, operation, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	u := c.base.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.requests.WithLabelValues(operation, "error").Inc()
		return nil, err
	}
	c.requests.WithLabelValues(operation, strconv.Itoa(resp.StatusCode)).Inc()
	return resp, nil
}

// writeMediaForm emits the multipart form for a media send.
func writeMediaForm(mw *multipart.Writer, to string, r io.Reader, info MediaInfo) error {
	if err := mw.WriteField("to", to); err != nil {
		return err
	}
	if info.Caption != "" {
		if err := mw.WriteField("caption", info.Caption); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(info.Filename)))
	ct := info.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// decodeJSON best-effort decodes a response body; classification falls back
// to status codes when the body is not JSON.
func decodeJSON(r io.Reader, v any) {
	_ = json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(v)
}

// drainClose consumes the remainder of a body so the connection can be reused.
func drainClose(rc io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, maxErrorBody))
	_ = rc.Close()
}

// wrapStatus attaches the HTTP status and backend message to a sentinel error.
func wrapStatus(op string, status int, msg string, sentinel error) error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return fmt.Errorf("%s: status %d (%s): %w", op, status, msg, sentinel)
}
