package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"chatgate/internal/backend"
	"chatgate/internal/service"
)

// mediaURLExpiry bounds how long presigned media download links stay valid.
const mediaURLExpiry = 15 * time.Minute

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic; they translate between
// HTTP and the gateway service.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.GatewayService) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", HealthCheck(db, svc))
	app.Get("/healthz", LivenessProbe())

	app.Post("/sessions", OpenSession(svc))
	app.Get("/sessions/:name/status", SessionStatus(svc))
	app.Post("/sessions/:name/messages/text", SendText(svc))
	app.Post("/sessions/:name/messages/media", SendMedia(svc))

	app.Get("/messages", ListMessages(svc))
	app.Get("/messages/:id/media", MediaURL(svc))
}

// HealthCheck verifies DB connectivity and backend reachability.
func HealthCheck(db *sql.DB, svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		if _, err := svc.Health(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "messaging backend unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check with no dependency probes.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// openSessionRequest is the request body for session creation.
type openSessionRequest struct {
	Session string `json:"session"`
}

// OpenSession creates or attaches a messaging-backend session.
func OpenSession(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req openSessionRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.Session == "" {
			return writeError(c, fiber.StatusBadRequest, "SESSION_REQUIRED", "session is required")
		}

		sess, err := svc.OpenSession(c.UserContext(), req.Session)
		if err != nil {
			return gatewayError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(sess)
	}
}

// SessionStatus returns the normalized state of a session.
func SessionStatus(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")

		sess, err := svc.Status(c.UserContext(), name)
		if err != nil {
			return gatewayError(c, err)
		}
		return c.JSON(sess)
	}
}

// sendTextRequest is the request body for text sends.
type sendTextRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// SendText delivers a text message through a session.
func SendText(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")

		var req sendTextRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		msg, err := svc.SendText(c.UserContext(), name, req.To, req.Body)
		if err != nil {
			return gatewayError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}

// SendMedia delivers a media message through a session
// (multipart/form-data, fields: file, to, caption).
func SendMedia(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name := c.Params("name")
		to := c.FormValue("to")
		caption := c.FormValue("caption")

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		msg, err := svc.SendMedia(c.UserContext(), name, to, f, fh.Filename, ct, fh.Size, caption)
		if err != nil {
			return gatewayError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(msg)
	}
}

// ListMessages returns paginated outbox records.
func ListMessages(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limitStr := c.Query("limit", "10")
		offsetStr := c.Query("offset", "0")
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.ListMessages(c.UserContext(), c.Query("session"), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// MediaURL returns a presigned download URL for a sent media message.
func MediaURL(svc service.GatewayService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}

		u, err := svc.MediaURL(c.UserContext(), id, mediaURLExpiry)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "message not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"url": u})
	}
}

// gatewayError maps service and backend errors to standardized responses.
func gatewayError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSessionNameRequired),
		errors.Is(err, service.ErrRecipientRequired),
		errors.Is(err, service.ErrBodyRequired),
		errors.Is(err, service.ErrMediaEmpty),
		errors.Is(err, service.ErrReaderNil):
		return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, service.ErrMediaTooLarge):
		return writeError(c, fiber.StatusRequestEntityTooLarge, "MEDIA_TOO_LARGE", "media exceeds size limit")
	case errors.Is(err, backend.ErrSessionNotFound):
		return writeError(c, fiber.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	case errors.Is(err, backend.ErrUnauthorized):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_UNAUTHORIZED", "backend rejected gateway credentials")
	case errors.Is(err, service.ErrAttemptsExhausted),
		errors.Is(err, backend.ErrRetryable):
		return writeError(c, fiber.StatusServiceUnavailable, "BACKEND_UNAVAILABLE", "messaging backend unavailable")
	case errors.Is(err, backend.ErrBackend):
		return writeError(c, fiber.StatusBadGateway, "BACKEND_ERROR", "messaging backend error")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
