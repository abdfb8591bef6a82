package service

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-core/internal/core/domain"
	"ledger-core/internal/core/ports"
	"ledger-core/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

// IdempotencyGuard collapses repeated creates with the same
// (idempotency key, sender) into the first result.
//
// Lookup order: cache, payments table, then a distributed lock around the
// create. The unique index on payments is the final arbiter: a duplicate
// insert is answered with the stored payment.
type IdempotencyGuard struct {
	payments ports.PaymentRepository
	cache    ports.IdempotencyCache
	locker   ports.KeyLocker
	ttl      time.Duration
	lockTTL  time.Duration
	log      zerolog.Logger
}

// NewIdempotencyGuard wires the guard. cache and locker may be nil.
func NewIdempotencyGuard(payments ports.PaymentRepository, cache ports.IdempotencyCache, locker ports.KeyLocker, opts Options, log zerolog.Logger) *IdempotencyGuard {
	return &IdempotencyGuard{
		payments: payments,
		cache:    cache,
		locker:   locker,
		ttl:      opts.IdempotencyTTL,
		lockTTL:  opts.IdempotencyLockTTL,
		log:      log,
	}
}

// idempotencyEntry points at the stored payment. The payment itself is
// re-read on every hit so a replay reports its current status.
type idempotencyEntry struct {
	Fingerprint string    `json:"fingerprint"`
	PaymentID   uuid.UUID `json:"payment_id"`
}

// Execute returns the payment already stored for (senderID, key), or
// runs create. replayed is true when no new payment was made.
func (g *IdempotencyGuard) Execute(
	ctx context.Context,
	senderID uuid.UUID,
	key, fingerprint string,
	create func(ctx context.Context) (*domain.Payment, error),
) (p *domain.Payment, replayed bool, err error) {
	cacheKey := domain.BuildIdempotencyKey(senderID, key)

	if p, err := g.fromCache(ctx, cacheKey, fingerprint); p != nil || err != nil {
		return p, true, err
	}
	if p, err := g.fromStore(ctx, cacheKey, senderID, key, fingerprint); p != nil || err != nil {
		return p, true, err
	}

	if g.locker != nil {
		release, err := g.locker.Acquire(ctx, cacheKey, g.lockTTL)
		switch {
		case err == nil:
			defer func() {
				if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
					g.log.Warn().Err(rerr).Str("key", cacheKey).Msg("failed to release idempotency lock")
				}
			}()
			// A concurrent holder may have finished while we waited.
			if p, err := g.fromStore(ctx, cacheKey, senderID, key, fingerprint); p != nil || err != nil {
				return p, true, err
			}
		case ctx.Err() != nil:
			return nil, false, apperror.ErrLockTimeout(err)
		default:
			g.log.Warn().Err(err).Str("key", cacheKey).Msg("idempotency lock unavailable, relying on unique index")
		}
	}

	p, err = create(ctx)
	if errors.Is(err, ports.ErrDuplicateKey) {
		g.log.Info().Str("key", cacheKey).Msg("concurrent duplicate create, returning stored payment")
		p, err := g.fromStore(ctx, cacheKey, senderID, key, fingerprint)
		if err == nil && p == nil {
			// the collision was on another unique column, e.g. the gateway reference
			err = apperror.ErrDuplicateTransaction()
		}
		return p, true, err
	}
	if err != nil {
		return nil, false, err
	}

	g.remember(ctx, cacheKey, fingerprint, p)
	return p, false, nil
}

func (g *IdempotencyGuard) fromCache(ctx context.Context, cacheKey, fingerprint string) (*domain.Payment, error) {
	if g.cache == nil {
		return nil, nil
	}
	raw, err := g.cache.Get(ctx, cacheKey)
	if err != nil {
		g.log.Warn().Err(err).Str("key", cacheKey).Msg("idempotency cache check failed, falling through to DB")
		return nil, nil
	}
	if raw == nil {
		return nil, nil
	}
	var entry idempotencyEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.PaymentID == uuid.Nil {
		g.log.Warn().Err(err).Str("key", cacheKey).Msg("unreadable idempotency cache entry")
		return nil, nil
	}
	if entry.Fingerprint != fingerprint {
		return nil, apperror.ErrIdempotencyKeyReuse()
	}
	p, err := g.payments.GetByID(ctx, nil, entry.PaymentID)
	if err != nil || p == nil {
		g.log.Warn().Err(err).Str("key", cacheKey).Str("payment_id", entry.PaymentID.String()).
			Msg("cached payment not readable, falling through to idempotency lookup")
		return nil, nil
	}
	return p, nil
}

func (g *IdempotencyGuard) fromStore(ctx context.Context, cacheKey string, senderID uuid.UUID, key, fingerprint string) (*domain.Payment, error) {
	p, err := g.payments.GetByIdempotencyKey(ctx, nil, senderID, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if p == nil {
		return nil, nil
	}
	if p.RequestFingerprint != "" && p.RequestFingerprint != fingerprint {
		return nil, apperror.ErrIdempotencyKeyReuse()
	}
	g.remember(ctx, cacheKey, fingerprint, p)
	return p, nil
}

// remember is best effort.
func (g *IdempotencyGuard) remember(ctx context.Context, cacheKey, fingerprint string, p *domain.Payment) {
	if g.cache == nil {
		return
	}
	raw, err := json.Marshal(idempotencyEntry{Fingerprint: fingerprint, PaymentID: p.ID})
	if err != nil {
		g.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to encode idempotency entry")
		return
	}
	if err := g.cache.Set(ctx, cacheKey, raw, g.ttl); err != nil {
		g.log.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache idempotency entry")
	}
}

// Fingerprint hashes the fields that define a request so a reused key
// with a different body can be told apart from a retry.
func Fingerprint(parts ...string) string {
	sum := blake2b.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
