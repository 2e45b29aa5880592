package voucher

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
)

func setupVoucherTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:voucher_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	vouchers := `
CREATE TABLE vouchers (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  discount_type TEXT NOT NULL,
  discount_value NUMERIC NOT NULL,
  max_discount INTEGER,
  min_order_amount INTEGER NOT NULL DEFAULT 0,
  usage_limit INTEGER,
  usage_limit_per_user INTEGER,
  starts_at DATETIME NOT NULL,
  ends_at DATETIME NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	usages := `
CREATE TABLE voucher_usages (
  id TEXT PRIMARY KEY,
  voucher_id TEXT NOT NULL,
  order_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  created_at DATETIME,
  UNIQUE (voucher_id, order_id)
);`
	for _, stmt := range []string{vouchers, usages} {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newVoucherService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)
	return svc
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

func seedVoucher(t *testing.T, db *gorm.DB, mutate func(*models.Voucher)) *models.Voucher {
	t.Helper()
	now := time.Now()
	voucher := models.Voucher{
		ID:            uuid.New(),
		Code:          "SUMMER10",
		DiscountType:  enums.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(time.Hour),
		IsActive:      true,
	}
	if mutate != nil {
		mutate(&voucher)
	}
	require.NoError(t, db.Create(&voucher).Error)
	return &voucher
}

func TestValidateReasons(t *testing.T) {
	t.Parallel()

	now := time.Now()
	cases := []struct {
		name   string
		mutate func(*models.Voucher)
		reason Reason
	}{
		{
			name:   "inactive",
			mutate: func(v *models.Voucher) { v.IsActive = false },
			reason: ReasonInactive,
		},
		{
			name:   "not yet active",
			mutate: func(v *models.Voucher) { v.StartsAt = now.Add(time.Hour) },
			reason: ReasonNotYetActive,
		},
		{
			name: "expired",
			mutate: func(v *models.Voucher) {
				v.StartsAt = now.Add(-2 * time.Hour)
				v.EndsAt = now.Add(-time.Hour)
			},
			reason: ReasonExpired,
		},
		{
			name:   "exhausted",
			mutate: func(v *models.Voucher) { v.UsageLimit = intPtr(1) },
			reason: ReasonExhausted,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db := setupVoucherTestDB(t)
			svc := newVoucherService(t, db)
			voucher := seedVoucher(t, db, tc.mutate)

			if tc.reason == ReasonExhausted {
				usage := models.VoucherUsage{
					ID:        uuid.New(),
					VoucherID: voucher.ID,
					OrderID:   uuid.New(),
					UserID:    uuid.New(),
				}
				require.NoError(t, db.Create(&usage).Error)
			}

			_, err := svc.Validate(context.Background(), voucher.Code, now)
			require.Error(t, err)
			require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVoucherInvalid))

			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			details, ok := typed.Details().(map[string]any)
			require.True(t, ok)
			require.Equal(t, string(tc.reason), details["reason"])
		})
	}
}

func TestValidateUnknownCode(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)

	_, err := svc.Validate(context.Background(), "NOPE", time.Now())
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestValidateNormalizesCode(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)
	seedVoucher(t, db, nil)

	voucher, err := svc.Validate(context.Background(), "  summer10 ", time.Now())
	require.NoError(t, err)
	require.Equal(t, "SUMMER10", voucher.Code)
}

func TestCanUserUse(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)
	voucher := seedVoucher(t, db, func(v *models.Voucher) { v.UsageLimitPerUser = intPtr(1) })
	userID := uuid.New()

	require.NoError(t, svc.CanUserUse(context.Background(), voucher, userID))

	usage := models.VoucherUsage{
		ID:        uuid.New(),
		VoucherID: voucher.ID,
		OrderID:   uuid.New(),
		UserID:    userID,
	}
	require.NoError(t, db.Create(&usage).Error)

	err := svc.CanUserUse(context.Background(), voucher, userID)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeVoucherIneligible))

	// Other users still have their own quota.
	require.NoError(t, svc.CanUserUse(context.Background(), voucher, uuid.New()))
}

func TestCalculateDiscount(t *testing.T) {
	t.Parallel()

	svc := newVoucherService(t, setupVoucherTestDB(t))

	cases := []struct {
		name        string
		voucher     models.Voucher
		orderAmount int64
		want        int64
		wantCode    pkgerrors.Code
	}{
		{
			name: "percentage",
			voucher: models.Voucher{
				DiscountType:  enums.DiscountPercentage,
				DiscountValue: decimal.NewFromInt(10),
			},
			orderAmount: 250_000,
			want:        25_000,
		},
		{
			name: "percentage rounds down",
			voucher: models.Voucher{
				DiscountType:  enums.DiscountPercentage,
				DiscountValue: decimal.RequireFromString("12.5"),
			},
			orderAmount: 999,
			want:        124,
		},
		{
			name: "percentage capped at max discount",
			voucher: models.Voucher{
				DiscountType:  enums.DiscountPercentage,
				DiscountValue: decimal.NewFromInt(50),
				MaxDiscount:   int64Ptr(30_000),
			},
			orderAmount: 200_000,
			want:        30_000,
		},
		{
			name: "fixed",
			voucher: models.Voucher{
				DiscountType:  enums.DiscountFixed,
				DiscountValue: decimal.NewFromInt(20_000),
			},
			orderAmount: 100_000,
			want:        20_000,
		},
		{
			name: "fixed clamped to order amount",
			voucher: models.Voucher{
				DiscountType:  enums.DiscountFixed,
				DiscountValue: decimal.NewFromInt(50_000),
			},
			orderAmount: 30_000,
			want:        30_000,
		},
		{
			name: "below minimum order amount",
			voucher: models.Voucher{
				DiscountType:   enums.DiscountPercentage,
				DiscountValue:  decimal.NewFromInt(10),
				MinOrderAmount: 100_000,
			},
			orderAmount: 99_999,
			wantCode:    pkgerrors.CodeMinimumOrderNotMet,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := svc.CalculateDiscount(&tc.voucher, tc.orderAmount)
			if tc.wantCode != "" {
				require.True(t, pkgerrors.HasCode(err, tc.wantCode))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestApplyRecordsUsageOnce(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)
	seedVoucher(t, db, func(v *models.Voucher) {
		v.DiscountType = enums.DiscountFixed
		v.DiscountValue = decimal.NewFromInt(15_000)
	})
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()

	voucher, discount, err := svc.Apply(ctx, db, "SUMMER10", userID, orderID, 100_000)
	require.NoError(t, err)
	require.Equal(t, int64(15_000), discount)
	require.Equal(t, "SUMMER10", voucher.Code)

	_, _, err = svc.Apply(ctx, db, "SUMMER10", userID, orderID, 100_000)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	var count int64
	require.NoError(t, db.Model(&models.VoucherUsage{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRemoveUsageIsIdempotent(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)
	seedVoucher(t, db, nil)
	ctx := context.Background()
	orderID := uuid.New()

	_, _, err := svc.Apply(ctx, db, "SUMMER10", uuid.New(), orderID, 100_000)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveUsage(ctx, db, orderID))
	require.NoError(t, svc.RemoveUsage(ctx, db, orderID))

	var count int64
	require.NoError(t, db.Model(&models.VoucherUsage{}).Count(&count).Error)
	require.EqualValues(t, 0, count)
}

func TestDeactivateExpired(t *testing.T) {
	t.Parallel()

	db := setupVoucherTestDB(t)
	svc := newVoucherService(t, db)
	now := time.Now()

	seedVoucher(t, db, func(v *models.Voucher) {
		v.Code = "OLD"
		v.EndsAt = now.Add(-time.Minute)
	})
	seedVoucher(t, db, func(v *models.Voucher) { v.Code = "LIVE" })

	affected, err := svc.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	affected, err = svc.DeactivateExpired(context.Background(), now)
	require.NoError(t, err)
	require.EqualValues(t, 0, affected)

	var live models.Voucher
	require.NoError(t, db.First(&live, "code = ?", "LIVE").Error)
	require.True(t, live.IsActive)
}
