// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the correlation-id injector, the panic recovery handler,
// and LoggerFrom, the accessor for the request-scoped logger attached by
// RedactingLogger. Install RequestID before RedactingLogger and Recovery so
// both the access log and any panic report carry the correlation id.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// Gin context key for the correlation id
	requestIDKey = "requestID"
	// header carrying the correlation id in both directions
	requestIDHeader = "X-Request-ID"
	// Gin context key for the request-scoped logger
	loggerKey = "logger"
	// raw query strings longer than this are cut before logging
	maxQueryLogLength = 2048
)

// RequestID reuses the caller's X-Request-ID when present, otherwise mints a
// UUIDv4. The id is echoed on the response header and stored in the Gin
// context for downstream middleware.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(requestIDHeader, rid)
		c.Next()
	}
}

// Recovery turns panics into JSON 500 responses. The stack goes to the log,
// never to the client. When the handler already wrote part of a response the
// body cannot be replaced, so only the status is forced to 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			rid, _ := c.Get(requestIDKey)
			log.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", asString(rid)).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			c.Header("Content-Type", "application/json")
			c.Header(requestIDHeader, asString(rid))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"request_id": asString(rid),
				"code":       "internal_error",
				"message":    "internal server error",
			})
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger RedactingLogger attached for this request,
// already carrying request_id, method, and path. Without RedactingLogger in
// the chain it falls back to a plain logger, so callers never nil-check.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if lg, ok := v.(*zerolog.Logger); ok {
			return lg
		}
	}
	l := log.With().Logger()
	return &l
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// truncate cuts s at max bytes and appends an ellipsis. A max <= 0 disables
// the cut. Byte-level slicing can split a multibyte rune, which is fine for
// log output.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
