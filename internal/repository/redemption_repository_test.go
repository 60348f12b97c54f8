package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var usageCols = []string{"id", "coupon_id", "user_id", "venue_id", "code", "created_at", "consumed", "consumed_at", "consumed_by"}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestGenerateCode(t *testing.T) {
	digits := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, digits, code)
	}
}

func TestRedemptionRepo_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)
	created := time.Date(2026, 4, 2, 22, 15, 3, 123456789, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO coupon_usages (id, coupon_id, user_id, code, created_at)`)).
		WithArgs(sqlmock.AnyArg(), uint64(11), uint64(7), sqlmock.AnyArg(), created.Truncate(time.Millisecond)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := repo.Create(context.Background(), 11, 7, created)
	require.NoError(t, err)

	_, err = uuid.Parse(u.ID)
	assert.NoError(t, err)
	assert.Len(t, u.Code, 6)
	assert.Equal(t, uint64(11), u.CouponID)
	assert.Equal(t, created.Truncate(time.Millisecond), u.CreatedAt)
	assert.False(t, u.Consumed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepo_GetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)
	created := time.Date(2026, 4, 2, 22, 0, 0, 0, time.UTC)
	consumedAt := created.Add(time.Minute)

	mock.ExpectQuery(`FROM coupon_usages u JOIN coupons c ON c.id = u.coupon_id\s+WHERE u.id = \?`).
		WithArgs("r-1").
		WillReturnRows(sqlmock.NewRows(usageCols).AddRow("r-1", 11, 7, 3, "004211", created, true, consumedAt, 99))

	u, err := repo.GetByID(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), u.VenueID)
	assert.True(t, u.Consumed)
	require.NotNil(t, u.ConsumedAt)
	assert.Equal(t, consumedAt, *u.ConsumedAt)
	require.NotNil(t, u.ConsumedBy)
	assert.Equal(t, uint64(99), *u.ConsumedBy)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)

	mock.ExpectQuery(`WHERE u.id = \?`).WithArgs("missing").WillReturnRows(sqlmock.NewRows(usageCols))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRedemptionNotFound)
}

func TestRedemptionRepo_ListByUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)
	created := time.Date(2026, 4, 2, 22, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE u.user_id = \? ORDER BY u.created_at DESC LIMIT \?`).
		WithArgs(uint64(7), listLimit).
		WillReturnRows(sqlmock.NewRows(usageCols).
			AddRow("r-2", 11, 7, 3, "111111", created.Add(time.Minute), false, nil, nil).
			AddRow("r-1", 12, 7, 4, "222222", created, true, created.Add(30*time.Second), 5))

	usages, err := repo.ListByUser(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, usages, 2)
	assert.Equal(t, "r-2", usages[0].ID)
	assert.Nil(t, usages[0].ConsumedAt)
	assert.Nil(t, usages[0].ConsumedBy)
	assert.Equal(t, uint64(4), usages[1].VenueID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepo_ListByVenueEmpty(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)

	mock.ExpectQuery(`WHERE c.venue_id = \? ORDER BY`).WithArgs(uint64(3), listLimit).WillReturnRows(sqlmock.NewRows(usageCols))

	usages, err := repo.ListByVenue(context.Background(), 3)
	require.NoError(t, err)
	assert.NotNil(t, usages)
	assert.Empty(t, usages)
}

func TestRedemptionRepo_LatestForUserAndCoupon(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)

	mock.ExpectQuery(`WHERE u.user_id = \? AND u.coupon_id = \?`).WithArgs(uint64(7), uint64(11)).WillReturnRows(sqlmock.NewRows(usageCols))
	got, err := repo.LatestForUserAndCoupon(context.Background(), 7, 11)
	require.NoError(t, err)
	assert.Nil(t, got)

	created := time.Date(2026, 4, 2, 22, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE u.user_id = \? AND u.coupon_id = \?`).WithArgs(uint64(7), uint64(11)).
		WillReturnRows(sqlmock.NewRows(usageCols).AddRow("r-9", 11, 7, 3, "999999", created, false, nil, nil))
	got, err = repo.LatestForUserAndCoupon(context.Background(), 7, 11)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r-9", got.ID)
}

func TestRedemptionRepo_FindAndMarkConsumedTx(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)
	now := time.Date(2026, 4, 2, 22, 2, 0, 0, time.UTC)
	since := now.Add(-3 * time.Minute)

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE c.venue_id = \? AND u.code = \? AND u.created_at >= \?\s+ORDER BY u.created_at DESC FOR UPDATE`).
		WithArgs(uint64(3), "004211", since).
		WillReturnRows(sqlmock.NewRows(usageCols).AddRow("r-1", 11, 7, 3, "004211", now.Add(-time.Minute), false, nil, nil))
	mock.ExpectExec(`UPDATE coupon_usages SET consumed = 1, consumed_at = \?, consumed_by = \? WHERE id = \? AND consumed = 0`).
		WithArgs(now, uint64(42), "r-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE coupon_usages SET consumed = 1`).
		WithArgs(now, uint64(42), "r-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)
	usages, err := repo.FindByCodeTx(ctx, tx, 3, "004211", since)
	require.NoError(t, err)
	require.Len(t, usages, 1)

	require.NoError(t, repo.MarkConsumedTx(ctx, tx, "r-1", 42, now))
	assert.ErrorIs(t, repo.MarkConsumedTx(ctx, tx, "r-1", 42, now), ErrConflict)
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedemptionRepo_Now(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRedemptionRepo(db)
	dbNow := time.Date(2026, 4, 2, 22, 2, 0, 500_000_000, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT UTC_TIMESTAMP(3)`)).WillReturnRows(sqlmock.NewRows([]string{"now"}).AddRow(dbNow))

	got, err := repo.Now(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dbNow, got)
}
