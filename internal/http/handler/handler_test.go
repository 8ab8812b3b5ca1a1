package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"chatgate/internal/backend"
	"chatgate/internal/model"
	"chatgate/internal/service"
	serviceMocks "chatgate/internal/service/mocks"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Get("/health", HealthCheck(db, mockSvc))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)
		mockSvc.On("Health", mock.Anything).Return(&service.HealthReport{Backend: true}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "healthy", body["status"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("db unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
	})

	t.Run("backend unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)
		mockSvc.On("Health", mock.Anything).Return(&service.HealthReport{Backend: false}, backend.ErrBackend).Once()

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "BACKEND_UNAVAILABLE", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOpenSession(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Post("/sessions", OpenSession(mockSvc))

	post := func(body string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		return resp
	}

	t.Run("created with pairing code", func(t *testing.T) {
		mockSvc.On("OpenSession", mock.Anything, "primary").
			Return(&model.Session{Name: "primary", State: model.SessionStateQRCode, QRCode: "data:..."}, nil).Once()

		resp := post(`{"session":"primary"}`)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var sess model.Session
		json.NewDecoder(resp.Body).Decode(&sess)
		assert.Equal(t, model.SessionStateQRCode, sess.State)
		assert.NotEmpty(t, sess.QRCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("missing session name", func(t *testing.T) {
		resp := post(`{}`)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SESSION_REQUIRED", body.Error.Code)
	})

	t.Run("backend exhausted maps to 503", func(t *testing.T) {
		mockSvc.On("OpenSession", mock.Anything, "primary").
			Return(nil, service.ErrAttemptsExhausted).Once()

		resp := post(`{"session":"primary"}`)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "BACKEND_UNAVAILABLE", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("backend credentials rejected maps to 502", func(t *testing.T) {
		mockSvc.On("OpenSession", mock.Anything, "primary").
			Return(nil, backend.ErrUnauthorized).Once()

		resp := post(`{"session":"primary"}`)

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "BACKEND_UNAUTHORIZED", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestSessionStatus(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Get("/sessions/:name/status", SessionStatus(mockSvc))

	t.Run("success", func(t *testing.T) {
		mockSvc.On("Status", mock.Anything, "primary").
			Return(&model.Session{Name: "primary", State: model.SessionStateConnected}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/sessions/primary/status", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var sess model.Session
		json.NewDecoder(resp.Body).Decode(&sess)
		assert.Equal(t, model.SessionStateConnected, sess.State)
		mockSvc.AssertExpectations(t)
	})

	t.Run("unknown session maps to 404", func(t *testing.T) {
		mockSvc.On("Status", mock.Anything, "ghost").
			Return(nil, backend.ErrSessionNotFound).Once()

		req := httptest.NewRequest(http.MethodGet, "/sessions/ghost/status", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "SESSION_NOT_FOUND", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})
}

func TestSendText(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Post("/sessions/:name/messages/text", SendText(mockSvc))

	t.Run("success", func(t *testing.T) {
		expected := &model.Message{ID: uuid.New().String(), Kind: model.MessageKindText, BackendID: "msg-1"}
		mockSvc.On("SendText", mock.Anything, "primary", "+15550001", "hello").
			Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/text",
			bytes.NewReader([]byte(`{"to":"+15550001","body":"hello"}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var msg model.Message
		json.NewDecoder(resp.Body).Decode(&msg)
		assert.Equal(t, expected.ID, msg.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		mockSvc.On("SendText", mock.Anything, "primary", "", "hello").
			Return(nil, service.ErrRecipientRequired).Once()

		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/text",
			bytes.NewReader([]byte(`{"body":"hello"}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_REQUEST", body.Error.Code)
		mockSvc.AssertExpectations(t)
	})

	t.Run("backend rate limit maps to 503", func(t *testing.T) {
		mockSvc.On("SendText", mock.Anything, "primary", "+15550001", "hello").
			Return(nil, backend.ErrRetryable).Once()

		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/text",
			bytes.NewReader([]byte(`{"to":"+15550001","body":"hello"}`)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestSendMedia(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Post("/sessions/:name/messages/media", SendMedia(mockSvc))

	t.Run("success", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		writer.WriteField("to", "+15550001")
		writer.WriteField("caption", "vacation")
		part, _ := writer.CreateFormFile("file", "photo.jpg")
		part.Write([]byte("jpegbytes"))
		writer.Close()

		expected := &model.Message{ID: uuid.New().String(), Kind: model.MessageKindMedia}
		mockSvc.On("SendMedia", mock.Anything, "primary", "+15550001", mock.Anything, "photo.jpg", mock.Anything, int64(9), "vacation").
			Return(expected, nil).Once()

		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/media", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var msg model.Message
		json.NewDecoder(resp.Body).Decode(&msg)
		assert.Equal(t, expected.ID, msg.ID)
		mockSvc.AssertExpectations(t)
	})

	t.Run("no file", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/media", nil)
		// Missing content-type and body
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var res errorPayload
		json.NewDecoder(resp.Body).Decode(&res)
		assert.Equal(t, "FILE_REQUIRED", res.Error.Code)
	})

	t.Run("oversized media maps to 413", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		writer.WriteField("to", "+15550001")
		part, _ := writer.CreateFormFile("file", "big.bin")
		part.Write([]byte("xxxxxxxxxx"))
		writer.Close()

		mockSvc.On("SendMedia", mock.Anything, "primary", "+15550001", mock.Anything, "big.bin", mock.Anything, int64(10), "").
			Return(nil, service.ErrMediaTooLarge).Once()

		req := httptest.NewRequest(http.MethodPost, "/sessions/primary/messages/media", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestListMessages(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Get("/messages", ListMessages(mockSvc))

	t.Run("success", func(t *testing.T) {
		expectedRes := &service.MessageListResult{
			Items: []model.Message{{ID: uuid.New().String(), Kind: model.MessageKindText}},
			Total: 1,
		}
		mockSvc.On("ListMessages", mock.Anything, "primary", 10, 0).Return(expectedRes, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/messages?limit=10&offset=0&session=primary", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var result service.MessageListResult
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/messages?limit=abc", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_LIMIT", body.Error.Code)
	})

	t.Run("service error", func(t *testing.T) {
		mockSvc.On("ListMessages", mock.Anything, "", 10, 0).Return(nil, errors.New("service error")).Once()

		req := httptest.NewRequest(http.MethodGet, "/messages", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})
}

func TestMediaURL(t *testing.T) {
	mockSvc := new(serviceMocks.MockGatewayService)
	app := fiber.New()
	app.Get("/messages/:id/media", MediaURL(mockSvc))

	t.Run("success", func(t *testing.T) {
		id := uuid.New().String()
		mockSvc.On("MediaURL", mock.Anything, id, 15*time.Minute).
			Return("https://minio/presigned", nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/messages/"+id+"/media", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body map[string]string
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "https://minio/presigned", body["url"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("invalid id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/messages/not-a-uuid/media", nil)
		resp, _ := app.Test(req)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		var body errorPayload
		json.NewDecoder(resp.Body).Decode(&body)
		assert.Equal(t, "INVALID_ID", body.Error.Code)
	})
}
