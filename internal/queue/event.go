// Package queue defines message payloads exchanged over the message broker.
package queue

// RedemptionConsumedQueue is the durable queue carrying RedemptionConsumedEvent.
const RedemptionConsumedQueue = "redemption.consumed"

// RedemptionConsumedEvent is published when venue staff validate a code.
// It carries enough information for downstream consumers (audit log, the
// customer's live views) to react without querying the primary database.
type RedemptionConsumedEvent struct {
	RedemptionID string `json:"redemption_id"`
	CouponID     uint64 `json:"coupon_id"`
	VenueID      uint64 `json:"venue_id"`
	UserID       uint64 `json:"user_id"`
	StaffID      uint64 `json:"staff_id"`
	Code         string `json:"code"`
	CreatedAt    string `json:"created_at"`
	ConsumedAt   string `json:"consumed_at"`
}
