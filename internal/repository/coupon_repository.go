package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/noxly/redemptions/internal/model"
)

// CouponRepo provides read access to the coupons table.
type CouponRepo struct{ db *sql.DB }

// NewCouponRepo returns a CouponRepo bound to db.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

const couponColumns = `id, venue_id, title, description, discount_label, valid_from, valid_until, is_active, created_at`

func scanCoupon(sc interface{ Scan(...any) error }) (model.Coupon, error) {
	var (
		c                     model.Coupon
		desc                  sql.NullString
		validFrom, validUntil sql.NullTime
	)
	if err := sc.Scan(&c.ID, &c.VenueID, &c.Title, &desc, &c.DiscountLabel, &validFrom, &validUntil, &c.IsActive, &c.CreatedAt); err != nil {
		return model.Coupon{}, err
	}
	if desc.Valid {
		c.Description = &desc.String
	}
	if validFrom.Valid {
		t := validFrom.Time
		c.ValidFrom = &t
	}
	if validUntil.Valid {
		t := validUntil.Time
		c.ValidUntil = &t
	}
	return c, nil
}

// GetByID returns the coupon with the given id or ErrCouponNotFound.
func (r *CouponRepo) GetByID(ctx context.Context, id uint64) (model.Coupon, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+couponColumns+` FROM coupons WHERE id = ?`, id)
	c, err := scanCoupon(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Coupon{}, ErrCouponNotFound
	}
	return c, err
}

// ListActive returns the coupons that accept redemptions at now, newest
// first.
func (r *CouponRepo) ListActive(ctx context.Context, now time.Time) ([]model.Coupon, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+couponColumns+` FROM coupons
		 WHERE is_active = 1
		   AND (valid_from IS NULL OR valid_from <= ?)
		   AND (valid_until IS NULL OR valid_until >= ?)
		 ORDER BY created_at DESC, id DESC`,
		now.UTC(), now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	coupons := []model.Coupon{}
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, err
		}
		coupons = append(coupons, c)
	}
	return coupons, rows.Err()
}
