package postgres

import (
	"errors"
	"fmt"

	"ledger-core/internal/core/ports"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the ledger reacts to.
const (
	pgUniqueViolation      = "23505"
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// classify tags driver errors with the port-level sentinels so services
// can react without importing pgconn.
func classify(err error) error {
	if err == nil || errors.Is(err, ports.ErrLockContention) || errors.Is(err, ports.ErrDuplicateKey) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", ports.ErrLockContention, err)
	case pgUniqueViolation:
		return fmt.Errorf("%w: %w", ports.ErrDuplicateKey, err)
	}
	return err
}
