package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/minhdang/storefront-backend/pkg/db"
	"github.com/minhdang/storefront-backend/pkg/db/models"
	"github.com/minhdang/storefront-backend/pkg/enums"
	pkgerrors "github.com/minhdang/storefront-backend/pkg/errors"
)

// Reason names the single sub-condition that made a voucher invalid.
type Reason string

const (
	ReasonInactive     Reason = "inactive"
	ReasonNotYetActive Reason = "not_yet_active"
	ReasonExpired      Reason = "expired"
	ReasonExhausted    Reason = "exhausted"
)

var hundred = decimal.NewFromInt(100)

// ServiceParams groups dependencies for the voucher service.
type ServiceParams struct {
	Repo Repository
}

// Service validates vouchers, computes discounts and owns usage rows.
type Service struct {
	repo Repository
}

// NewService builds a voucher service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("repo is required")
	}
	return &Service{repo: params.Repo}, nil
}

// Validate checks the voucher's own gates: active flag, validity window and
// the global usage quota. The returned error names exactly one failed
// sub-condition; validation stops at the first gate that fails.
func (s *Service) Validate(ctx context.Context, code string, now time.Time) (*models.Voucher, error) {
	return validate(ctx, s.repo, code, now)
}

// CanUserUse checks the per-user quota. A nil limit means unlimited.
func (s *Service) CanUserUse(ctx context.Context, voucher *models.Voucher, userID uuid.UUID) error {
	return canUserUse(ctx, s.repo, voucher, userID)
}

func validate(ctx context.Context, repo Repository, code string, now time.Time) (*models.Voucher, error) {
	voucher, err := repo.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !voucher.IsActive {
		return nil, invalidErr(ReasonInactive, "voucher is not active")
	}
	if now.Before(voucher.StartsAt) {
		return nil, invalidErr(ReasonNotYetActive, "voucher is not active yet")
	}
	if now.After(voucher.EndsAt) {
		return nil, invalidErr(ReasonExpired, "voucher has expired")
	}
	if voucher.UsageLimit != nil {
		used, err := repo.CountUsages(ctx, voucher.ID)
		if err != nil {
			return nil, err
		}
		if used >= int64(*voucher.UsageLimit) {
			return nil, invalidErr(ReasonExhausted, "voucher usage limit reached")
		}
	}
	return voucher, nil
}

func canUserUse(ctx context.Context, repo Repository, voucher *models.Voucher, userID uuid.UUID) error {
	if voucher.UsageLimitPerUser == nil {
		return nil
	}
	used, err := repo.CountUsagesByUser(ctx, voucher.ID, userID)
	if err != nil {
		return err
	}
	if used >= int64(*voucher.UsageLimitPerUser) {
		return pkgerrors.New(pkgerrors.CodeVoucherIneligible, "voucher usage limit reached for this user")
	}
	return nil
}

// CalculateDiscount computes the discount for an order amount in minor
// units. Percentage discounts go through decimal math and are clamped to
// max_discount; fixed discounts are clamped to the order amount. The result
// is always within [0, orderAmount].
func (s *Service) CalculateDiscount(voucher *models.Voucher, orderAmount int64) (int64, error) {
	if orderAmount < voucher.MinOrderAmount {
		return 0, pkgerrors.New(pkgerrors.CodeMinimumOrderNotMet, "order amount below voucher minimum").
			WithDetails(map[string]any{"min_order_amount": voucher.MinOrderAmount})
	}

	var discount int64
	switch voucher.DiscountType {
	case enums.DiscountPercentage:
		discount = decimal.NewFromInt(orderAmount).
			Mul(voucher.DiscountValue).
			Div(hundred).
			Floor().
			IntPart()
		if voucher.MaxDiscount != nil && discount > *voucher.MaxDiscount {
			discount = *voucher.MaxDiscount
		}
	case enums.DiscountFixed:
		discount = voucher.DiscountValue.Floor().IntPart()
	default:
		return 0, pkgerrors.New(pkgerrors.CodeInternal, "unknown discount type").
			WithDetails(map[string]any{"discount_type": string(voucher.DiscountType)})
	}

	if discount > orderAmount {
		discount = orderAmount
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// Apply runs the full validation chain and records the redemption. The
// usage insert rides the caller's transaction; its unique
// (voucher_id, order_id) index rejects a double apply for the same order.
func (s *Service) Apply(ctx context.Context, tx *gorm.DB, code string, userID, orderID uuid.UUID, orderAmount int64) (*models.Voucher, int64, error) {
	repo := s.repo.WithTx(tx)

	voucher, err := validate(ctx, repo, code, time.Now())
	if err != nil {
		return nil, 0, err
	}
	if err := canUserUse(ctx, repo, voucher, userID); err != nil {
		return nil, 0, err
	}
	discount, err := s.CalculateDiscount(voucher, orderAmount)
	if err != nil {
		return nil, 0, err
	}

	usage := models.VoucherUsage{
		VoucherID: voucher.ID,
		OrderID:   orderID,
		UserID:    userID,
	}
	if err := repo.CreateUsage(ctx, &usage); err != nil {
		if db.IsUniqueViolation(err, "idx_voucher_usages_voucher_order") {
			return nil, 0, pkgerrors.New(pkgerrors.CodeConflict, "voucher already applied to this order")
		}
		return nil, 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record voucher usage")
	}
	return voucher, discount, nil
}

// RemoveUsage voids the order's redemption, returning the slot to the user
// and global quotas. Removing a usage that is already gone is a no-op.
func (s *Service) RemoveUsage(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) error {
	_, err := s.repo.WithTx(tx).DeleteUsageByOrder(ctx, orderID)
	return err
}

// DeactivateExpired flips is_active off for every voucher past its end
// date and reports how many rows changed. Safe to run from any number of
// workers at once.
func (s *Service) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.repo.DeactivateExpired(ctx, now)
}

func invalidErr(reason Reason, message string) error {
	return pkgerrors.New(pkgerrors.CodeVoucherInvalid, message).
		WithDetails(map[string]any{"reason": string(reason)})
}
