package relay

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrorHandler renders anything a handler or middleware did not answer
// itself. Client errors raised by echo (unknown route, wrong method,
// oversized body) keep their status; everything else becomes a generic 500.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		msg := MsgInternal

		var he *echo.HTTPError
		if errors.As(err, &he) && he.Code >= 400 && he.Code < 500 {
			status = he.Code
			msg = fmt.Sprintf("%v", he.Message)
		}

		rid, _ := c.Get("request_id").(string)
		evt := logger.Error()
		if status < http.StatusInternalServerError {
			evt = logger.Warn()
		}
		evt.Err(err).
			Str("request_id", rid).
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", status).
			Msg("unhandled error")

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = fail(c, status, msg)
		}
		if writeErr != nil {
			logger.Error().Err(writeErr).Str("request_id", rid).Msg("failed to write error response")
		}
	}
}
