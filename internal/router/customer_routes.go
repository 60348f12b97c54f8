package router

import (
	"github.com/labstack/echo/v4"

	"github.com/noxly/redemptions/internal/handler"
	"github.com/noxly/redemptions/internal/middleware"
)

// RegisterCustomer registers customer-scoped endpoints under /v1.  All routes
// require a valid JWT and the CUSTOMER role.  Customers obtain redemption
// codes, list their own redemptions and follow a code's countdown.
// Ownership of a single redemption is checked within the handler.
func RegisterCustomer(e *echo.Echo, h *handler.CustomerHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(middleware.RoleCustomer),
	)
	g.POST("/coupons/:id/redeem", h.Redeem)
	g.GET("/my-redemptions", h.ListRedemptions)
	g.GET("/redemptions/:id", h.GetRedemption)
	g.GET("/redemptions/:id/countdown", h.Countdown)
}
