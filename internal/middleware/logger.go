package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// RequestLogger writes one structured line per request.  Server errors are
// logged at error level, client errors at warn, everything else at info.
func RequestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let echo's error handler pick the status before logging
				c.Error(err)
			}
			status := c.Response().Status
			ev := logger.Info()
			switch {
			case status >= 500:
				ev = logger.Error().Err(err)
			case status >= 400:
				ev = logger.Warn()
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				ev = ev.Str("request_id", id)
			}
			ev.Str("method", c.Request().Method).
				Str("path", c.Path()).
				Int("status", status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Str("user", rateUser(c)).
				Msg("request")
			return nil
		}
	}
}
