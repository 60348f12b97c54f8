package repository

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/noxly/redemptions/internal/model"
)

// listLimit bounds list queries; older rows are always expired or used and
// only matter for history screens.
const listLimit = 200

// RedemptionRepo provides data access to the coupon_usages table.  Every
// timestamp is written and compared in UTC.
type RedemptionRepo struct {
	db *sql.DB
}

// NewRedemptionRepo returns a new RedemptionRepo bound to the provided database.
func NewRedemptionRepo(db *sql.DB) *RedemptionRepo { return &RedemptionRepo{db: db} }

// DB exposes the underlying handle so handlers can open transactions.
func (r *RedemptionRepo) DB() *sql.DB { return r.db }

const usageSelect = `SELECT u.id, u.coupon_id, u.user_id, c.venue_id, u.code, u.created_at, u.consumed, u.consumed_at, u.consumed_by
	FROM coupon_usages u JOIN coupons c ON c.id = u.coupon_id`

func scanUsage(sc interface{ Scan(...any) error }) (model.CouponUsage, error) {
	var (
		u          model.CouponUsage
		consumedAt sql.NullTime
		consumedBy sql.NullInt64
	)
	if err := sc.Scan(&u.ID, &u.CouponID, &u.UserID, &u.VenueID, &u.Code, &u.CreatedAt, &u.Consumed, &consumedAt, &consumedBy); err != nil {
		return model.CouponUsage{}, err
	}
	if consumedAt.Valid {
		t := consumedAt.Time
		u.ConsumedAt = &t
	}
	if consumedBy.Valid {
		by := uint64(consumedBy.Int64)
		u.ConsumedBy = &by
	}
	return u, nil
}

func collectUsages(rows *sql.Rows) ([]model.CouponUsage, error) {
	defer rows.Close()
	usages := []model.CouponUsage{}
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}
	return usages, rows.Err()
}

// GenerateCode returns a uniformly random six digit numeric code.  Codes
// are not globally unique; a code is only looked up together with the
// venue that owns the coupon and only while it is active.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// Create inserts a new redemption for the user and coupon with a fresh id
// and code.  createdAt is stored with millisecond precision.
func (r *RedemptionRepo) Create(ctx context.Context, couponID, userID uint64, createdAt time.Time) (model.CouponUsage, error) {
	code, err := GenerateCode()
	if err != nil {
		return model.CouponUsage{}, fmt.Errorf("generate code: %w", err)
	}
	u := model.CouponUsage{
		ID:        uuid.NewString(),
		CouponID:  couponID,
		UserID:    userID,
		Code:      code,
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO coupon_usages (id, coupon_id, user_id, code, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.CouponID, u.UserID, u.Code, u.CreatedAt)
	if err != nil {
		return model.CouponUsage{}, err
	}
	return u, nil
}

// GetByID returns the redemption with the given id or ErrRedemptionNotFound.
func (r *RedemptionRepo) GetByID(ctx context.Context, id string) (model.CouponUsage, error) {
	u, err := scanUsage(r.db.QueryRowContext(ctx, usageSelect+` WHERE u.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.CouponUsage{}, ErrRedemptionNotFound
	}
	return u, err
}

// ListByUser returns the most recent redemptions owned by a customer.
func (r *RedemptionRepo) ListByUser(ctx context.Context, userID uint64) ([]model.CouponUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		usageSelect+` WHERE u.user_id = ? ORDER BY u.created_at DESC LIMIT ?`, userID, listLimit)
	if err != nil {
		return nil, err
	}
	return collectUsages(rows)
}

// ListByVenue returns the most recent redemptions of coupons owned by a
// venue.
func (r *RedemptionRepo) ListByVenue(ctx context.Context, venueID uint64) ([]model.CouponUsage, error) {
	rows, err := r.db.QueryContext(ctx,
		usageSelect+` WHERE c.venue_id = ? ORDER BY u.created_at DESC LIMIT ?`, venueID, listLimit)
	if err != nil {
		return nil, err
	}
	return collectUsages(rows)
}

// LatestForUserAndCoupon returns the newest redemption of a coupon by a
// user, or nil when there is none.
func (r *RedemptionRepo) LatestForUserAndCoupon(ctx context.Context, userID, couponID uint64) (*model.CouponUsage, error) {
	u, err := scanUsage(r.db.QueryRowContext(ctx,
		usageSelect+` WHERE u.user_id = ? AND u.coupon_id = ? ORDER BY u.created_at DESC LIMIT 1`, userID, couponID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByCodeTx locks and returns the redemptions of the venue's coupons
// carrying code and created at or after since, newest first.  Callers pass
// now minus the redemption window as since and still evaluate each row:
// several customers may hold the same code and some rows may already be
// consumed.
func (r *RedemptionRepo) FindByCodeTx(ctx context.Context, tx *sql.Tx, venueID uint64, code string, since time.Time) ([]model.CouponUsage, error) {
	rows, err := tx.QueryContext(ctx,
		usageSelect+` WHERE c.venue_id = ? AND u.code = ? AND u.created_at >= ?
		ORDER BY u.created_at DESC FOR UPDATE`,
		venueID, code, since.UTC())
	if err != nil {
		return nil, err
	}
	return collectUsages(rows)
}

// MarkConsumedTx flips the consumed flag of one redemption.  The update only
// applies to rows that are still unconsumed so the flag can never be
// reverted or set twice; ErrConflict is returned when no row changed.
func (r *RedemptionRepo) MarkConsumedTx(ctx context.Context, tx *sql.Tx, id string, staffID uint64, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE coupon_usages SET consumed = 1, consumed_at = ?, consumed_by = ? WHERE id = ? AND consumed = 0`,
		at.UTC().Truncate(time.Millisecond), staffID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Now reads the database clock.
func (r *RedemptionRepo) Now(ctx context.Context) (time.Time, error) {
	var now time.Time
	if err := r.db.QueryRowContext(ctx, `SELECT UTC_TIMESTAMP(3)`).Scan(&now); err != nil {
		return time.Time{}, err
	}
	return now.UTC(), nil
}
