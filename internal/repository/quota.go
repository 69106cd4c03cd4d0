package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/store"
)

// QuotaRepository implements store.QuotaStore.
//
// The reset-then-increment sequence is the primary concurrency hazard for
// usage counters: two requests that both observe a stale counter and reset
// independently would undercount. Every operation here is therefore a single
// conditional upsert that resets-if-stale and applies the change in one
// statement.
type QuotaRepository struct {
	db *sqlx.DB
}

// NewQuotaRepository creates a new QuotaRepository.
func NewQuotaRepository(db *sqlx.DB) *QuotaRepository {
	return &QuotaRepository{db: db}
}

var _ store.QuotaStore = (*QuotaRepository)(nil)

// CheckAndReset lazily creates the counter and resets it to zero iff the
// stored period is older than periodStart. The reset happens exactly once
// per boundary crossing: a second call in the same period matches the ELSE
// branch and leaves the counter untouched.
func (r *QuotaRepository) CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time) (*domain.UsageCounter, error) {
	var counter domain.UsageCounter
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO usage_counters (user_id, feature, period_kind, period_start, used)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (user_id, feature) DO UPDATE SET
			used = CASE
				WHEN usage_counters.period_start < EXCLUDED.period_start THEN 0
				ELSE usage_counters.used
			END,
			period_kind = EXCLUDED.period_kind,
			period_start = GREATEST(usage_counters.period_start, EXCLUDED.period_start)
		RETURNING user_id, feature, period_kind, period_start, used`,
		userID, feature, kind, periodStart.UTC()).
		StructScan(&counter)
	if err != nil {
		return nil, fmt.Errorf("check and reset counter: %w", err)
	}
	return &counter, nil
}

// Increment adds by to the counter, resetting first when the stored period
// is stale. Reset and increment are one atomic statement.
func (r *QuotaRepository) Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by int) (*domain.UsageCounter, error) {
	var counter domain.UsageCounter
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO usage_counters (user_id, feature, period_kind, period_start, used)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, feature) DO UPDATE SET
			used = CASE
				WHEN usage_counters.period_start < EXCLUDED.period_start THEN EXCLUDED.used
				ELSE usage_counters.used + EXCLUDED.used
			END,
			period_kind = EXCLUDED.period_kind,
			period_start = GREATEST(usage_counters.period_start, EXCLUDED.period_start)
		RETURNING user_id, feature, period_kind, period_start, used`,
		userID, feature, kind, periodStart.UTC(), by).
		StructScan(&counter)
	if err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}
	return &counter, nil
}

// TryIncrement is Increment with a limit guard. The WHERE clause refuses the
// update when the counter is current and the increment would exceed limit;
// in that case no row comes back and the current state is read instead.
func (r *QuotaRepository) TryIncrement(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by, limit int) (*domain.UsageCounter, bool, error) {
	// A fresh insert bypasses the conflict guard, so an increment that could
	// never fit must be rejected up front.
	if by > limit {
		counter, err := r.CheckAndReset(ctx, userID, feature, kind, periodStart)
		if err != nil {
			return nil, false, err
		}
		return counter, false, nil
	}

	var counter domain.UsageCounter
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO usage_counters (user_id, feature, period_kind, period_start, used)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, feature) DO UPDATE SET
			used = CASE
				WHEN usage_counters.period_start < EXCLUDED.period_start THEN EXCLUDED.used
				ELSE usage_counters.used + EXCLUDED.used
			END,
			period_kind = EXCLUDED.period_kind,
			period_start = GREATEST(usage_counters.period_start, EXCLUDED.period_start)
		WHERE usage_counters.period_start < EXCLUDED.period_start
		   OR usage_counters.used + EXCLUDED.used <= $6
		RETURNING user_id, feature, period_kind, period_start, used`,
		userID, feature, kind, periodStart.UTC(), by, limit).
		StructScan(&counter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Guard refused the write; report the untouched counter.
			current, cerr := r.CheckAndReset(ctx, userID, feature, kind, periodStart)
			if cerr != nil {
				return nil, false, cerr
			}
			return current, false, nil
		}
		return nil, false, fmt.Errorf("try increment counter: %w", err)
	}
	return &counter, true, nil
}

// DeleteStale removes counters whose period started before the cutoff.
func (r *QuotaRepository) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM usage_counters WHERE period_start < $1`,
		before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete stale counters: %w", err)
	}
	return result.RowsAffected()
}
