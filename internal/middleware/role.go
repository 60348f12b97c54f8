package middleware // middleware provides shared request processing for handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Roles carried in the "role" claim.
const (
	RoleCustomer = "CUSTOMER"
	RoleVenue    = "VENUE"
	RoleAdmin    = "ADMIN"
)

// RequireRole rejects requests whose role claim is not one of roles with
// 403 Forbidden.  Role names compare case-insensitively.  JWTAuth must run
// first.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[strings.ToUpper(r)] = struct{}{}
	}
	required := strings.Join(roles, ",")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if _, ok := allowed[strings.ToUpper(role)]; !ok || role == "" {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "required_role": required})
			}
			return next(c)
		}
	}
}
