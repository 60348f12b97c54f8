package model

import "time"

// Coupon is an offer published by a venue that customers can redeem.
// Redeeming a coupon creates a CouponUsage carrying a short code that the
// venue's staff validate at the counter.
//
// Fields:
//  ID            – primary key identifier.
//  VenueID       – venue (organization) that owns the coupon.
//  Title         – short headline shown in the catalogue.
//  Description   – longer description of the offer (nullable).
//  DiscountLabel – display string such as "-20%" or "2x1".
//  ValidFrom     – first instant the coupon may be redeemed (nullable).
//  ValidUntil    – last instant the coupon may be redeemed (nullable).
//  IsActive      – whether the venue has the coupon switched on.
//  CreatedAt     – creation timestamp.
type Coupon struct {
	ID            uint64     // coupons.id
	VenueID       uint64     // coupons.venue_id
	Title         string     // coupons.title
	Description   *string    // coupons.description (nullable)
	DiscountLabel string     // coupons.discount_label
	ValidFrom     *time.Time // coupons.valid_from (nullable)
	ValidUntil    *time.Time // coupons.valid_until (nullable)
	IsActive      bool       // coupons.is_active
	CreatedAt     time.Time  // coupons.created_at
}

// RedeemableAt reports whether the coupon accepts new redemptions at t.
func (c Coupon) RedeemableAt(t time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}
