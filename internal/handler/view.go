package handler

import (
	"context"
	"time"

	"github.com/noxly/redemptions/internal/model"
	"github.com/noxly/redemptions/internal/queue"
	"github.com/noxly/redemptions/internal/redemption"
)

// EventPublisher publishes redemption change notifications.  It is
// satisfied by *service.Publisher.
type EventPublisher interface {
	PublishRedemptionConsumed(ctx context.Context, ev queue.RedemptionConsumedEvent) error
}

// Lifecycle carries the redemption timing settings shared by handlers.
type Lifecycle struct {
	Clock   redemption.Clock
	Window  time.Duration // validity window of a code
	Tick    time.Duration // countdown emission interval
	Refresh time.Duration // countdown re-fetch interval
}

// now reads the clock at the millisecond precision created_at is stored
// with, so a code evaluated right after creation reports the full window.
func (l Lifecycle) now() time.Time {
	c := l.Clock
	if c == nil {
		c = redemption.SystemClock{}
	}
	return c.Now().UTC().Truncate(time.Millisecond)
}

func (l Lifecycle) window() time.Duration {
	if l.Window <= 0 {
		return redemption.DefaultWindow
	}
	return l.Window
}

// redemptionView is the JSON shape of an evaluated redemption.
type redemptionView struct {
	ID          string            `json:"id"`
	CouponID    uint64            `json:"coupon_id"`
	UserID      uint64            `json:"user_id,omitempty"`
	Code        string            `json:"code"`
	Status      redemption.Status `json:"status"`
	RemainingMs int64             `json:"remaining_ms"`
	Label       string            `json:"label"`
	CreatedAt   time.Time         `json:"created_at"`
	ConsumedAt  *time.Time        `json:"consumed_at,omitempty"`
}

func newRedemptionView(u model.CouponUsage, ev redemption.Evaluation) redemptionView {
	return redemptionView{
		ID:          u.ID,
		CouponID:    u.CouponID,
		Code:        u.Code,
		Status:      ev.Status,
		RemainingMs: ev.RemainingMs(),
		Label:       ev.Label(),
		CreatedAt:   u.CreatedAt,
		ConsumedAt:  u.ConsumedAt,
	}
}

type skippedView struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// redemptionList is the response of the list endpoints.
type redemptionList struct {
	Now     time.Time                 `json:"now"`
	Items   []redemptionView          `json:"items"`
	Counts  map[redemption.Status]int `json:"counts"`
	Skipped []skippedView             `json:"skipped"`
}

// aggregateUsages evaluates and orders usages at now.  withUser includes
// the owning customer in each item.
func aggregateUsages(usages []model.CouponUsage, now time.Time, window time.Duration, withUser bool) (redemptionList, redemption.Result) {
	byID := make(map[string]model.CouponUsage, len(usages))
	for _, u := range usages {
		byID[u.ID] = u
	}
	res := redemption.Aggregate(model.Records(usages), now, window)

	out := redemptionList{
		Now:     now,
		Items:   make([]redemptionView, 0, len(res.Entries)),
		Counts:  res.Counts(),
		Skipped: make([]skippedView, 0, len(res.Skipped)),
	}
	for _, e := range res.Entries {
		v := newRedemptionView(byID[e.Record.ID], e.Evaluation)
		if withUser {
			v.UserID = byID[e.Record.ID].UserID
		}
		out.Items = append(out.Items, v)
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, skippedView{ID: s.ID, Error: s.Err.Error()})
	}
	return out, res
}

// couponView is the public JSON shape of a coupon.
type couponView struct {
	ID            uint64     `json:"id"`
	VenueID       uint64     `json:"venue_id"`
	Title         string     `json:"title"`
	Description   *string    `json:"description,omitempty"`
	DiscountLabel string     `json:"discount_label"`
	ValidFrom     *time.Time `json:"valid_from,omitempty"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Redeemable    bool       `json:"redeemable"`
}

func newCouponView(c model.Coupon, now time.Time) couponView {
	return couponView{
		ID:            c.ID,
		VenueID:       c.VenueID,
		Title:         c.Title,
		Description:   c.Description,
		DiscountLabel: c.DiscountLabel,
		ValidFrom:     c.ValidFrom,
		ValidUntil:    c.ValidUntil,
		Redeemable:    c.RedeemableAt(now),
	}
}

func (l Lifecycle) tick() time.Duration {
	if l.Tick <= 0 {
		return redemption.DefaultTickInterval
	}
	return l.Tick
}

func (l Lifecycle) refresh() time.Duration {
	if l.Refresh <= 0 {
		return 5 * time.Second
	}
	return l.Refresh
}
