package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/metrics"
	"github.com/noxly/redemptions/internal/middleware"
	"github.com/noxly/redemptions/internal/model"
	"github.com/noxly/redemptions/internal/redemption"
	"github.com/noxly/redemptions/internal/repository"
)

// CustomerHandler groups the endpoints a customer uses to obtain
// redemption codes and follow their countdown.  All methods assume that
// JWT authentication and role validation has already been performed by
// middleware; they return 401 when the user id cannot be extracted from
// the context.
type CustomerHandler struct {
	Coupons     *repository.CouponRepo
	Redemptions *repository.RedemptionRepo
	Lifecycle   Lifecycle
	// Scheduler drives countdown streams; nil uses the wall clock.
	Scheduler redemption.Scheduler
	Log       zerolog.Logger
}

// NewCustomerHandler constructs a CustomerHandler.  All repositories must
// be non-nil.
func NewCustomerHandler(coupons *repository.CouponRepo, redemptions *repository.RedemptionRepo, lc Lifecycle, logger zerolog.Logger) *CustomerHandler {
	if coupons == nil || redemptions == nil {
		panic("nil repository passed to NewCustomerHandler")
	}
	return &CustomerHandler{Coupons: coupons, Redemptions: redemptions, Lifecycle: lc, Log: logger}
}

// Redeem handles POST /v1/coupons/:id/redeem.  When the customer already
// holds an ACTIVE code for the coupon that code is returned with 200;
// otherwise a new code is generated and returned with 201.  Coupons that
// are switched off or outside their validity period yield 409.
func (h *CustomerHandler) Redeem(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	couponID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || couponID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon id"})
	}
	ctx := c.Request().Context()

	coupon, err := h.Coupons.GetByID(ctx, couponID)
	if errors.Is(err, repository.ErrCouponNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("coupon_id", couponID).Msg("redeem: load coupon")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}

	now := h.Lifecycle.now()
	if !coupon.RedeemableAt(now) {
		return c.JSON(http.StatusConflict, echo.Map{"error": "coupon is not redeemable"})
	}

	latest, err := h.Redemptions.LatestForUserAndCoupon(ctx, userID, couponID)
	if err != nil {
		h.Log.Error().Err(err).Uint64("coupon_id", couponID).Msg("redeem: load latest redemption")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if latest != nil {
		if ev := redemption.Evaluate(latest.Record(), now, h.Lifecycle.window()); ev.Status == redemption.StatusActive {
			return c.JSON(http.StatusOK, newRedemptionView(*latest, ev))
		}
	}

	usage, err := h.Redemptions.Create(ctx, couponID, userID, now)
	if err != nil {
		h.Log.Error().Err(err).Uint64("coupon_id", couponID).Msg("redeem: create redemption")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	usage.VenueID = coupon.VenueID
	metrics.IncRedemptionCreated()
	h.Log.Info().Str("redemption_id", usage.ID).Uint64("coupon_id", couponID).Uint64("user_id", userID).Msg("redemption created")

	return c.JSON(http.StatusCreated, newRedemptionView(usage, redemption.Evaluate(usage.Record(), now, h.Lifecycle.window())))
}

// ListRedemptions handles GET /v1/my-redemptions.  Active codes come first
// ordered by the time they have left, followed by used and expired ones.
func (h *CustomerHandler) ListRedemptions(c echo.Context) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	usages, err := h.Redemptions.ListByUser(c.Request().Context(), userID)
	if err != nil {
		h.Log.Error().Err(err).Uint64("user_id", userID).Msg("list redemptions")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	list, res := aggregateUsages(usages, h.Lifecycle.now(), h.Lifecycle.window(), false)
	for _, s := range res.Skipped {
		h.Log.Warn().Err(s.Err).Str("redemption_id", s.ID).Msg("skipping invalid redemption record")
	}
	metrics.ObserveStatuses(list.Counts)
	return c.JSON(http.StatusOK, list)
}

// loadOwned fetches a redemption and checks it belongs to the caller.  On
// failure it has already written the response and returns ok=false.
func (h *CustomerHandler) loadOwned(c echo.Context) (model.CouponUsage, bool, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return model.CouponUsage{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id := c.Param("id")
	if id == "" {
		return model.CouponUsage{}, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid redemption id"})
	}
	usage, err := h.Redemptions.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrRedemptionNotFound) {
		return model.CouponUsage{}, false, c.JSON(http.StatusNotFound, echo.Map{"error": "redemption not found"})
	}
	if err != nil {
		h.Log.Error().Err(err).Str("redemption_id", id).Msg("load redemption")
		return model.CouponUsage{}, false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	if usage.UserID != userID {
		return model.CouponUsage{}, false, c.JSON(http.StatusForbidden, echo.Map{"error": repository.ErrForbidden.Error()})
	}
	return usage, true, nil
}

// GetRedemption handles GET /v1/redemptions/:id.
func (h *CustomerHandler) GetRedemption(c echo.Context) error {
	usage, ok, err := h.loadOwned(c)
	if !ok {
		return err
	}
	ev := redemption.Evaluate(usage.Record(), h.Lifecycle.now(), h.Lifecycle.window())
	metrics.ObserveStatus(ev.Status)
	return c.JSON(http.StatusOK, newRedemptionView(usage, ev))
}

// tickEvent is the data payload of one countdown event.
type tickEvent struct {
	Status      redemption.Status `json:"status"`
	RemainingMs int64             `json:"remaining_ms"`
	Label       string            `json:"label"`
	Terminal    bool              `json:"terminal"`
}

// Countdown handles GET /v1/redemptions/:id/countdown as a server-sent
// events stream.  Each countdown tick is written as a "tick" event; the
// stream ends after the terminal USED or EXPIRED event or when the client
// goes away.  The record is re-fetched periodically so a code validated by
// staff mid-countdown ends the stream with USED.
func (h *CustomerHandler) Countdown(c echo.Context) error {
	usage, ok, err := h.loadOwned(c)
	if !ok {
		return err
	}
	rec := usage.Record()
	if err := rec.Validate(); err != nil {
		h.Log.Error().Err(err).Str("redemption_id", usage.ID).Msg("countdown: invalid record")
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "invalid redemption record"})
	}

	ctx := c.Request().Context()
	ticks := make(chan redemption.Tick, 4)
	stop := make(chan struct{})
	defer close(stop)
	p := redemption.NewProjector(rec,
		redemption.WithWindow(h.Lifecycle.window()),
		redemption.WithTickInterval(h.Lifecycle.tick()),
		redemption.WithClock(redemption.ClockFunc(h.Lifecycle.now)),
		redemption.WithScheduler(h.Scheduler),
	)
	p.OnTick(func(t redemption.Tick) {
		select {
		case ticks <- t:
		case <-stop:
		case <-ctx.Done():
		}
	})

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	res.WriteHeader(http.StatusOK)

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	log := h.Log.With().Str("redemption_id", usage.ID).Logger()
	refresh := time.NewTicker(h.Lifecycle.refresh())
	defer refresh.Stop()
	defer p.Cancel()
	p.Start()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("countdown: client disconnected")
			return nil
		case t := <-ticks:
			if err := writeTick(res, t); err != nil {
				log.Debug().Err(err).Msg("countdown: write failed")
				return nil
			}
			if t.Terminal {
				metrics.ObserveStatus(t.Status)
				return nil
			}
		case <-refresh.C:
			fresh, err := h.Redemptions.GetByID(ctx, usage.ID)
			if err != nil {
				log.Warn().Err(err).Msg("countdown: refresh failed")
				continue
			}
			if err := p.Refresh(fresh.Record()); err != nil {
				log.Warn().Err(err).Msg("countdown: refresh rejected")
			}
		}
	}
}

func writeTick(res *echo.Response, t redemption.Tick) error {
	data, err := json.Marshal(tickEvent{
		Status:      t.Status,
		RemainingMs: t.Remaining.Milliseconds(),
		Label:       t.Label,
		Terminal:    t.Terminal,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: tick\ndata: %s\n\n", data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
