package model

import (
	"strconv"
	"time"

	"github.com/noxly/redemptions/internal/redemption"
)

// CouponUsage records one redemption of a coupon by a customer.  The row is
// written once when the customer redeems and updated once when venue staff
// validate the code; it is never deleted by the service.
//
// Fields:
//  ID         – uuid primary key.
//  CouponID   – coupon being redeemed.
//  UserID     – customer who owns the redemption.
//  VenueID    – venue owning the coupon (joined from coupons).
//  Code       – six digit verification code.
//  CreatedAt  – when the code was generated.
//  Consumed   – whether staff validated the code.
//  ConsumedAt – when it was validated (nullable).
//  ConsumedBy – staff user who validated it (nullable).
type CouponUsage struct {
	ID         string     // coupon_usages.id
	CouponID   uint64     // coupon_usages.coupon_id
	UserID     uint64     // coupon_usages.user_id
	VenueID    uint64     // coupons.venue_id
	Code       string     // coupon_usages.code
	CreatedAt  time.Time  // coupon_usages.created_at
	Consumed   bool       // coupon_usages.consumed
	ConsumedAt *time.Time // coupon_usages.consumed_at (nullable)
	ConsumedBy *uint64    // coupon_usages.consumed_by (nullable)
}

// Record converts the row into the value evaluated by the redemption
// lifecycle.  The coupon id becomes the record's subject.
func (u CouponUsage) Record() redemption.Record {
	subject := ""
	if u.CouponID != 0 {
		subject = strconv.FormatUint(u.CouponID, 10)
	}
	return redemption.Record{
		ID:        u.ID,
		Code:      u.Code,
		CreatedAt: u.CreatedAt,
		Consumed:  u.Consumed,
		SubjectID: subject,
	}
}

// Records converts a slice of usages.
func Records(usages []CouponUsage) []redemption.Record {
	out := make([]redemption.Record, 0, len(usages))
	for _, u := range usages {
		out = append(out, u.Record())
	}
	return out
}
