package quota

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger is the durable Ledger. The quota row is created lazily on
// the first reservation of a new period; the ceiling is frozen into the row
// at creation so a config change never shrinks a day retroactively below its
// already-spent count.
type PostgresLedger struct {
	pool    *pgxpool.Pool
	ceiling int
}

// NewPostgresLedger creates a ledger backed by the send_quota table.
func NewPostgresLedger(pool *pgxpool.Pool, ceiling int) *PostgresLedger {
	return &PostgresLedger{pool: pool, ceiling: ceiling}
}

// TryReserve performs the atomic check-and-increment. The conditional UPDATE
// under row-level locking is what keeps concurrent ticks from overshooting.
func (l *PostgresLedger) TryReserve(ctx context.Context, day time.Time) (bool, error) {
	if l == nil || l.pool == nil {
		return false, errors.New("quota ledger not configured")
	}

	var count int
	err := l.pool.QueryRow(ctx, `
		INSERT INTO send_quota (day, sent_count, ceiling)
		VALUES ($1, 1, $2)
		ON CONFLICT (day) DO UPDATE
		SET sent_count = send_quota.sent_count + 1, updated_at = now()
		WHERE send_quota.sent_count < send_quota.ceiling
		RETURNING sent_count
	`, PeriodKey(day), l.ceiling).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conflict hit and the guard failed: ceiling reached.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remaining returns the unspent quota for the day.
func (l *PostgresLedger) Remaining(ctx context.Context, day time.Time) (int, error) {
	if l == nil || l.pool == nil {
		return 0, errors.New("quota ledger not configured")
	}

	var remaining int
	err := l.pool.QueryRow(ctx, `
		SELECT GREATEST(ceiling - sent_count, 0)
		FROM send_quota
		WHERE day = $1
	`, PeriodKey(day)).Scan(&remaining)

	if errors.Is(err, pgx.ErrNoRows) {
		return l.ceiling, nil
	}
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

// PurgeOlderThan deletes quota rows whose period ended before the cutoff.
// Superseded periods carry no invariant, this is plain retention cleanup.
func (l *PostgresLedger) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	if l == nil || l.pool == nil {
		return 0, errors.New("quota ledger not configured")
	}

	tag, err := l.pool.Exec(ctx, `DELETE FROM send_quota WHERE day < $1`, PeriodKey(cutoff))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
