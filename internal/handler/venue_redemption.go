package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/logging"
	"github.com/noxly/redemptions/internal/metrics"
	"github.com/noxly/redemptions/internal/middleware"
	"github.com/noxly/redemptions/internal/model"
	"github.com/noxly/redemptions/internal/queue"
	"github.com/noxly/redemptions/internal/redemption"
	"github.com/noxly/redemptions/internal/repository"
)

// verifyLookback bounds how far back a code is searched.  Codes older than
// the window but inside the lookback are reported as expired rather than
// unknown.
const verifyLookback = 24 * time.Hour

// VenueHandler serves venue staff validating codes at the counter.  Every
// query is scoped to the venue_id claim of the caller.
type VenueHandler struct {
	Redemptions *repository.RedemptionRepo
	Lifecycle   Lifecycle
	Publisher   EventPublisher // optional
	Dev         bool           // log codes unredacted
	Log         zerolog.Logger
}

// NewVenueHandler constructs a VenueHandler.  The repository must be
// non-nil; a nil publisher disables change notifications.
func NewVenueHandler(redemptions *repository.RedemptionRepo, lc Lifecycle, pub EventPublisher, dev bool, logger zerolog.Logger) *VenueHandler {
	if redemptions == nil {
		panic("nil repository passed to NewVenueHandler")
	}
	return &VenueHandler{Redemptions: redemptions, Lifecycle: lc, Publisher: pub, Dev: dev, Log: logger}
}

type verifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// VerifyCode handles POST /v1/venue/redemptions/verify.  The newest ACTIVE
// redemption carrying the code is marked consumed inside a transaction and
// returned.  A code that was already used yields 409; an expired or
// unknown code yields 404.
func (h *VenueHandler) VerifyCode(c echo.Context) error {
	staffID, err := middleware.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	venueID, err := middleware.VenueID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "venue scope required"})
	}
	var body verifyRequest
	if msg, ok := bindAndValidate(c, &body); !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx := c.Request().Context()
	now := h.Lifecycle.now()
	window := h.Lifecycle.window()
	since := now.Add(-max(window, verifyLookback))
	log := h.Log.With().Uint64("venue_id", venueID).Str("code", logging.RedactCode(body.Code, h.Dev)).Logger()

	tx, err := h.Redemptions.DB().BeginTx(ctx, nil)
	if err != nil {
		log.Error().Err(err).Msg("verify: begin tx")
		metrics.IncVerification("error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	usages, err := h.Redemptions.FindByCodeTx(ctx, tx, venueID, body.Code, since)
	if err != nil {
		log.Error().Err(err).Msg("verify: find code")
		metrics.IncVerification("error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	var (
		target *model.CouponUsage
		seen   = map[redemption.Status]bool{}
	)
	for i := range usages {
		st := redemption.Evaluate(usages[i].Record(), now, window).Status
		seen[st] = true
		if st == redemption.StatusActive && target == nil {
			target = &usages[i] // rows come newest first
		}
	}
	if target == nil {
		switch {
		case seen[redemption.StatusUsed]:
			metrics.IncVerification("used")
			return c.JSON(http.StatusConflict, echo.Map{"error": "code already used"})
		case seen[redemption.StatusExpired]:
			metrics.IncVerification("expired")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "code expired"})
		default:
			metrics.IncVerification("not_found")
			return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found"})
		}
	}

	if err := h.Redemptions.MarkConsumedTx(ctx, tx, target.ID, staffID, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			metrics.IncVerification("used")
			return c.JSON(http.StatusConflict, echo.Map{"error": "code already used"})
		}
		log.Error().Err(err).Str("redemption_id", target.ID).Msg("verify: mark consumed")
		metrics.IncVerification("error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if err := tx.Commit(); err != nil {
		log.Error().Err(err).Msg("verify: commit")
		metrics.IncVerification("error")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	committed = true
	metrics.IncVerification("consumed")

	consumedAt := now.UTC().Truncate(time.Millisecond)
	target.Consumed = true
	target.ConsumedAt = &consumedAt
	target.ConsumedBy = &staffID
	log.Info().Str("redemption_id", target.ID).Uint64("staff_id", staffID).Msg("redemption consumed")

	h.publishConsumed(*target, staffID)

	view := newRedemptionView(*target, redemption.Evaluate(target.Record(), now, window))
	view.UserID = target.UserID
	return c.JSON(http.StatusOK, view)
}

// publishConsumed notifies listeners in the background; a broker outage
// never fails the verification.
func (h *VenueHandler) publishConsumed(u model.CouponUsage, staffID uint64) {
	if h.Publisher == nil {
		return
	}
	ev := queue.RedemptionConsumedEvent{
		RedemptionID: u.ID,
		CouponID:     u.CouponID,
		VenueID:      u.VenueID,
		UserID:       u.UserID,
		StaffID:      staffID,
		Code:         u.Code,
		CreatedAt:    u.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if u.ConsumedAt != nil {
		ev.ConsumedAt = u.ConsumedAt.UTC().Format(time.RFC3339Nano)
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.Publisher.PublishRedemptionConsumed(ctx, ev); err != nil {
			h.Log.Warn().Err(err).Str("redemption_id", ev.RedemptionID).Msg("publish redemption.consumed failed")
		}
	}()
}

// ListRedemptions handles GET /v1/venue/redemptions.
func (h *VenueHandler) ListRedemptions(c echo.Context) error {
	venueID, err := middleware.VenueID(c)
	if err != nil {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "venue scope required"})
	}
	usages, err := h.Redemptions.ListByVenue(c.Request().Context(), venueID)
	if err != nil {
		h.Log.Error().Err(err).Uint64("venue_id", venueID).Msg("list venue redemptions")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	list, res := aggregateUsages(usages, h.Lifecycle.now(), h.Lifecycle.window(), true)
	for _, s := range res.Skipped {
		h.Log.Warn().Err(s.Err).Str("redemption_id", s.ID).Msg("skipping invalid redemption record")
	}
	metrics.ObserveStatuses(list.Counts)
	return c.JSON(http.StatusOK, list)
}
