package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/noxly/redemptions/internal/repository"
)

// DBClock reads the database clock.  It is satisfied by
// *repository.RedemptionRepo.
type DBClock interface {
	Now(ctx context.Context) (time.Time, error)
}

// PublicHandler serves the unauthenticated coupon catalogue and the server
// time used by clients to align their countdowns.
type PublicHandler struct {
	Coupons   *repository.CouponRepo
	Lifecycle Lifecycle
	DB        DBClock // optional; adds db_now and skew_ms to /v1/time
	Log       zerolog.Logger
}

// NewPublicHandler constructs a PublicHandler.  The repository must be
// non-nil.
func NewPublicHandler(coupons *repository.CouponRepo, lc Lifecycle, logger zerolog.Logger) *PublicHandler {
	if coupons == nil {
		panic("nil repository passed to NewPublicHandler")
	}
	return &PublicHandler{Coupons: coupons, Lifecycle: lc, Log: logger}
}

// ListCoupons handles GET /v1/coupons and returns the coupons that accept
// redemptions right now.
func (h *PublicHandler) ListCoupons(c echo.Context) error {
	now := h.Lifecycle.now()
	coupons, err := h.Coupons.ListActive(c.Request().Context(), now)
	if err != nil {
		h.Log.Error().Err(err).Msg("list coupons")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	items := make([]couponView, 0, len(coupons))
	for _, cp := range coupons {
		items = append(items, newCouponView(cp, now))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetCoupon handles GET /v1/coupons/:id.  Switched-off coupons are
// reported as not found.
func (h *PublicHandler) GetCoupon(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon id"})
	}
	cp, err := h.Coupons.GetByID(c.Request().Context(), id)
	if errors.Is(err, repository.ErrCouponNotFound) || (err == nil && !cp.IsActive) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
	}
	if err != nil {
		h.Log.Error().Err(err).Uint64("coupon_id", id).Msg("get coupon")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
	}
	return c.JSON(http.StatusOK, newCouponView(cp, h.Lifecycle.now()))
}

// ServerTime handles GET /v1/time.  Clients compute remaining time against
// this instant instead of their own clock.
// When a database clock is configured the response also carries its
// reading and the drift from the application clock; a failed read only
// drops those fields.
func (h *PublicHandler) ServerTime(c echo.Context) error {
	now := h.Lifecycle.now()
	out := echo.Map{
		"now":              now,
		"window_ms":        h.Lifecycle.window().Milliseconds(),
		"tick_interval_ms": h.Lifecycle.tick().Milliseconds(),
	}
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		dbNow, err := h.DB.Now(ctx)
		if err != nil {
			h.Log.Warn().Err(err).Msg("server time: read database clock")
		} else {
			out["db_now"] = dbNow
			out["skew_ms"] = now.Sub(dbNow).Milliseconds()
		}
	}
	return c.JSON(http.StatusOK, out)
}
