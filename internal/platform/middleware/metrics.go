package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fhir/pats/internal/platform/metrics"
)

// Metrics records request counts and latency per route pattern. It must sit
// outside Logger so the status has already been written.
func Metrics(m *metrics.Metrics) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(c.Request().Method, route, c.Response().Status, start)
			return err
		}
	}
}
