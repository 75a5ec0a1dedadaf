// Response helpers shared by all endpoints in this package.
//
// Every failure leaves the API as an ErrorResponse with a stable `code`, so
// clients can branch on machine-readable values instead of scraping
// messages. Success bodies are written through ok/noContent to keep the
// handlers uniform.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studyloop/go-chat-store/internal/http/middleware"
)

// ErrorResponse is the error envelope every endpoint returns on failure.
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "message": "chat entry not found"
//	}
type ErrorResponse struct {
	// RequestID echoes X-Request-ID so a client report can be matched to
	// server logs.
	RequestID string `json:"request_id,omitempty"`
	// Code is one of the constants in errors.go.
	Code string `json:"code"`
	// Message is safe to surface to end users.
	Message string `json:"message"`
}

// fail aborts the request with the standard error envelope. Server-side
// failures (status >= 500) are additionally logged through the
// request-scoped logger so they carry the request id, method, and path.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail exposes fail to other packages; the router uses it for the NoRoute
// and NoMethod fallbacks so 404s match the rest of the API.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
