package service

import (
	"context"
	"errors"
	"time"

	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"
	"ledger-core/pkg/metrics"

	"github.com/rs/zerolog"
)

// txRunner runs a ledger operation in one transaction and retries it
// when the store reports lock contention.
type txRunner struct {
	transactor ports.Transactor
	maxRetries int
	baseDelay  time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

func newTxRunner(t ports.Transactor, opts Options, m *metrics.Metrics, log zerolog.Logger) *txRunner {
	return &txRunner{
		transactor: t,
		maxRetries: opts.MaxRetries,
		baseDelay:  opts.RetryBaseDelay,
		metrics:    m,
		log:        log,
	}
}

// run executes fn with up to maxRetries retries, sleeping
// baseDelay * 2^attempt between attempts. Exhaustion yields SYS_002.
func (r *txRunner) run(ctx context.Context, op string, fn ports.TxFunc) error {
	for attempt := 0; ; attempt++ {
		err := r.transactor.WithinTx(ctx, fn)
		if err == nil || !errors.Is(err, ports.ErrLockContention) {
			return err
		}

		if attempt >= r.maxRetries {
			r.metrics.LockTimeout(op)
			r.log.Error().Err(err).Str("op", op).Int("attempts", attempt+1).Msg("lock contention, giving up")
			return apperror.ErrLockTimeout(err)
		}

		delay := r.baseDelay * time.Duration(1<<attempt)
		r.metrics.TxRetry(op)
		r.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Dur("backoff", delay).Msg("lock contention, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return apperror.ErrLockTimeout(ctx.Err())
		}
	}
}
