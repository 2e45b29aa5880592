package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/minhdang/storefront-backend/pkg/logger"
)

type voucherSweeper interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

// VoucherExpiryJob flips vouchers past their end date to inactive. The
// underlying update only ever moves active to inactive, so running it
// alongside live checkout traffic is safe.
type VoucherExpiryJob struct {
	vouchers voucherSweeper
	log      *logger.Logger
}

// NewVoucherExpiryJob builds the expiry sweep job.
func NewVoucherExpiryJob(vouchers voucherSweeper, log *logger.Logger) (*VoucherExpiryJob, error) {
	if vouchers == nil {
		return nil, fmt.Errorf("voucher service required")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &VoucherExpiryJob{vouchers: vouchers, log: log}, nil
}

func (j *VoucherExpiryJob) Name() string {
	return "voucher-expiry"
}

func (j *VoucherExpiryJob) Run(ctx context.Context) error {
	affected, err := j.vouchers.DeactivateExpired(ctx, time.Now())
	if err != nil {
		return err
	}
	if affected > 0 {
		ctx = j.log.WithField(ctx, "deactivated", affected)
		j.log.Info(ctx, "expired vouchers deactivated")
	}
	return nil
}
