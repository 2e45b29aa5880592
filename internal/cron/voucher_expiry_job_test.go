package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/minhdang/storefront-backend/pkg/logger"
)

type fakeVoucherSweeper struct {
	affected int64
	err      error
	calls    int
}

func (f *fakeVoucherSweeper) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	f.calls++
	return f.affected, f.err
}

func TestVoucherExpiryJobRun(t *testing.T) {
	t.Parallel()

	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	sweeper := &fakeVoucherSweeper{affected: 3}

	job, err := NewVoucherExpiryJob(sweeper, log)
	require.NoError(t, err)
	require.Equal(t, "voucher-expiry", job.Name())

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, sweeper.calls)
}

func TestVoucherExpiryJobPropagatesErrors(t *testing.T) {
	t.Parallel()

	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})
	sweeper := &fakeVoucherSweeper{err: errors.New("db offline")}

	job, err := NewVoucherExpiryJob(sweeper, log)
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestNewVoucherExpiryJobValidation(t *testing.T) {
	t.Parallel()

	log := logger.New(logger.Options{ServiceName: "test", Level: zerolog.Disabled})

	_, err := NewVoucherExpiryJob(nil, log)
	require.Error(t, err)

	_, err = NewVoucherExpiryJob(&fakeVoucherSweeper{}, nil)
	require.Error(t, err)
}
