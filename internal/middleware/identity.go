package middleware

// identity.go turns the loosely typed claims stored by JWTAuth into the
// owner scope used by handlers: the customer's user id or the staff
// member's venue id.

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ErrNoIdentity is returned when the context lacks a usable claim.
var ErrNoIdentity = errors.New("missing identity claim")

// UserID returns the authenticated user's id.
func UserID(c echo.Context) (uint64, error) { return claimID(c, CtxUserID) }

// VenueID returns the venue the authenticated staff member works for.
func VenueID(c echo.Context) (uint64, error) { return claimID(c, CtxVenueID) }

func claimID(c echo.Context, key string) (uint64, error) {
	switch t := c.Get(key).(type) {
	case uint64:
		if t > 0 {
			return t, nil
		}
	case int:
		if t > 0 {
			return uint64(t), nil
		}
	case int64:
		if t > 0 {
			return uint64(t), nil
		}
	case float64: // numeric claims decode as float64
		if t > 0 && t == float64(uint64(t)) {
			return uint64(t), nil
		}
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil && n > 0 {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrNoIdentity, key)
}

// rateUser returns the identity used in rate limit keys; "anon" for
// unauthenticated requests.
func rateUser(c echo.Context) string {
	if id, err := UserID(c); err == nil {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
