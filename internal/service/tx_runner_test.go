package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ledger-core/internal/core/ports"
	"ledger-core/internal/core/ports/mocks"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// counterTotal sums every series of a counter family.
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func contention() error {
	return fmt.Errorf("%w: deadlock detected", ports.ErrLockContention)
}

func TestTxRunner_RetriesThenSucceeds(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockTransactor(ctrl)
	reg := prometheus.NewRegistry()

	gomock.InOrder(
		transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(contention()),
		transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(contention()),
		transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(nil),
	)

	runner := newTxRunner(transactor, testOptions(), metrics.NewWithRegistry(reg), newTestLogger())
	err := runner.run(context.Background(), "transfer", func(context.Context, pgx.Tx) error { return nil })

	require.NoError(t, err)
	assert.Equal(t, 2.0, counterTotal(t, reg, "ledger_tx_retries_total"))
	assert.Equal(t, 0.0, counterTotal(t, reg, "ledger_lock_timeouts_total"))
}

func TestTxRunner_GivesUpWithLockTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockTransactor(ctrl)
	reg := prometheus.NewRegistry()
	opts := testOptions()
	opts.MaxRetries = 2

	transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(contention()).Times(3)

	runner := newTxRunner(transactor, opts, metrics.NewWithRegistry(reg), newTestLogger())
	err := runner.run(context.Background(), "transfer", func(context.Context, pgx.Tx) error { return nil })

	assert.True(t, apperror.Is(err, apperror.CodeLockTimeout))
	assert.ErrorIs(t, err, ports.ErrLockContention)
	assert.Equal(t, 2.0, counterTotal(t, reg, "ledger_tx_retries_total"))
	assert.Equal(t, 1.0, counterTotal(t, reg, "ledger_lock_timeouts_total"))
}

func TestTxRunner_OtherErrorsAreNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockTransactor(ctrl)
	boom := errors.New("boom")

	transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).Return(boom).Times(1)

	runner := newTxRunner(transactor, testOptions(), nil, newTestLogger())
	err := runner.run(context.Background(), "topup", func(context.Context, pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func TestTxRunner_StopsOnContextCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	transactor := mocks.NewMockTransactor(ctrl)
	opts := testOptions()
	opts.RetryBaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	transactor.EXPECT().WithinTx(gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, ports.TxFunc) error {
			cancel()
			return contention()
		},
	)

	runner := newTxRunner(transactor, opts, nil, newTestLogger())
	err := runner.run(ctx, "topup", func(context.Context, pgx.Tx) error { return nil })

	assert.True(t, apperror.Is(err, apperror.CodeLockTimeout))
	assert.ErrorIs(t, err, context.Canceled)
}
