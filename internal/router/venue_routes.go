package router

import (
	"github.com/labstack/echo/v4"

	"github.com/noxly/redemptions/internal/handler"
	"github.com/noxly/redemptions/internal/middleware"
)

// RegisterVenue registers the endpoints used by venue staff at the counter
// under /v1/venue.  Routes require a valid JWT and the VENUE role; every
// query is scoped to the venue_id claim by the handler.  verifyLimit, when
// non-nil, runs after authentication on the verify route only.
func RegisterVenue(e *echo.Echo, h *handler.VenueHandler, jwtSecret string, verifyLimit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1/venue",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleVenue),
	)
	if verifyLimit != nil {
		g.POST("/redemptions/verify", h.VerifyCode, verifyLimit)
	} else {
		g.POST("/redemptions/verify", h.VerifyCode)
	}
	g.GET("/redemptions", h.ListRedemptions)
}
