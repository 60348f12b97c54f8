// Package repository defines the MySQL data access layer and the error
// values shared by its repositories.  These sentinel values allow handlers
// to distinguish between failure scenarios: ErrForbidden indicates that the
// current user does not own the resource, ErrConflict signals that an
// operation cannot proceed because of the record's current state (for
// example validating a code that was already consumed).
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// conflicting state, such as consuming a redemption that is already
// consumed. Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrCouponNotFound is returned when no coupon matches the given id.
var ErrCouponNotFound = errors.New("coupon not found")

// ErrRedemptionNotFound is returned when no redemption matches the given id.
var ErrRedemptionNotFound = errors.New("redemption not found")
