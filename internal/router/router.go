package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noxly/redemptions/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication and
// are not part of the versioned API: the health check used by load
// balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterPublic registers unauthenticated endpoints.  The coupon catalogue
// is served through cache (a Redis response cache, or a passthrough when
// Redis is unavailable); the server time is never cached because clients
// align their countdowns to it.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/time", p.ServerTime)

	g := e.Group("/v1/coupons")
	if cache != nil {
		g.Use(cache)
	}
	g.GET("", p.ListCoupons)
	g.GET("/:id", p.GetCoupon)
}
