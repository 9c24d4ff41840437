package middleware

import (
	"net/http"
	"time"

	"invoiceflow/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var internalError = apierror.New("INTERNAL_ERROR", "Internal server error")

// ErrorHandler renders the last error a handler attached with c.Error.
// Typed *apierror.Error values keep their status and body; anything else
// becomes a generic 500. Causes are logged, never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		e, ok := apierror.As(err)
		if !ok {
			requestLog(c, log.Error()).Err(err).Msg("unclassified error")
			c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
			return
		}
		if e.Kind == apierror.KindUpstream {
			requestLog(c, log.Error()).Str("code", e.Code).Err(e.Err).Msg(e.Message)
		}
		c.AbortWithStatusJSON(e.Status(), e.Body())
	}
}

// Recovery turns a panic into a 500 with the request id attached.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				requestLog(c, log.Error()).Interface("panic", r).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, internalError)
			}
		}()
		c.Next()
	}
}

// Logger writes one line per request; 4xx at warn, 5xx at error.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ev := log.Info()
		switch {
		case status >= http.StatusInternalServerError:
			ev = log.Error()
		case status >= http.StatusBadRequest:
			ev = log.Warn()
		}
		ev.Str("request_id", c.GetString(RequestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request")
	}
}

func requestLog(c *gin.Context, ev *zerolog.Event) *zerolog.Event {
	return ev.Str("request_id", c.GetString(RequestIDKey)).
		Str("method", c.Request.Method).
		Str("path", c.FullPath())
}
