// Package redemption implements the coupon redemption lifecycle: how a
// redemption code moves from creation to consumption or expiry, how that
// state is projected into a live countdown and how a batch of codes is
// ordered for presentation.  The package performs no I/O; records are
// supplied by the host's persistence layer.
package redemption

import (
	"errors"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
)

// ErrInvalidRecord is returned when a record supplied by the host is missing
// required fields.  Callers match it with errors.Is.
var ErrInvalidRecord = errors.New("invalid redemption record")

// Record is a single redemption code owned by a user.
//
// Fields:
//
//	ID        – opaque unique identifier.
//	Code      – short numeric code shown to venue staff.
//	CreatedAt – instant the code was generated; never changes.
//	Consumed  – set once when staff validate the code; never reverted.
//	SubjectID – coupon or offer the code redeems.
type Record struct {
	ID        string    `validate:"required"`
	Code      string    `validate:"required"`
	CreatedAt time.Time
	Consumed  bool
	SubjectID string `validate:"required"`
}

var validate = validatorv10.New()

// Validate reports whether the record carries every field the evaluator
// relies on.  The returned error wraps ErrInvalidRecord.
func (r Record) Validate() error {
	if err := validate.Struct(r); err != nil {
		var ve validatorv10.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return fmt.Errorf("%w: %s is %s", ErrInvalidRecord, ve[0].Field(), ve[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.CreatedAt.IsZero() {
		return fmt.Errorf("%w: CreatedAt is required", ErrInvalidRecord)
	}
	return nil
}
