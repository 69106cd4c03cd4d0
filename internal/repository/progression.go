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

// ProgressionRepository implements store.ProgressionStore.
type ProgressionRepository struct {
	db *sqlx.DB
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(db *sqlx.DB) *ProgressionRepository {
	return &ProgressionRepository{db: db}
}

var _ store.ProgressionStore = (*ProgressionRepository)(nil)

// CreateState initializes a progression row with zero XP. Creating an
// existing user is a no-op.
func (r *ProgressionRepository) CreateState(ctx context.Context, userID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO user_progression (user_id, total_xp, study_streak)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`,
		userID)
	if err != nil {
		return fmt.Errorf("create progression state: %w", err)
	}
	return nil
}

// GetState retrieves a user's progression state.
func (r *ProgressionRepository) GetState(ctx context.Context, userID uuid.UUID) (*domain.ProgressionState, error) {
	var state domain.ProgressionState
	err := r.db.GetContext(ctx, &state, `
		SELECT user_id, total_xp, study_streak, last_study_date, created_at, updated_at
		FROM user_progression
		WHERE user_id = $1`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get progression state: %w", err)
	}
	return &state, nil
}

// CreditXP appends one ledger entry and adds its value to the running total
// in a single transaction. The total increment is a single-statement add, so
// concurrent credits never lose updates; the streak is folded into the same
// statement for study events.
func (r *ProgressionRepository) CreditXP(ctx context.Context, params store.CreditXPParams) (*store.CreditXPResult, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO xp_events (id, user_id, event_type, value)
		VALUES ($1, $2, $3, $4)`,
		uuid.New(), params.UserID, params.EventType, params.Value)
	if err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}

	var result store.CreditXPResult
	if params.UpdateStreak {
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO user_progression (user_id, total_xp, study_streak, last_study_date)
			VALUES ($1, $2, 1, $3::date)
			ON CONFLICT (user_id) DO UPDATE SET
				total_xp = user_progression.total_xp + EXCLUDED.total_xp,
				study_streak = CASE
					WHEN user_progression.last_study_date = EXCLUDED.last_study_date THEN user_progression.study_streak
					WHEN user_progression.last_study_date = EXCLUDED.last_study_date - 1 THEN user_progression.study_streak + 1
					ELSE 1
				END,
				last_study_date = GREATEST(user_progression.last_study_date, EXCLUDED.last_study_date),
				updated_at = now()
			RETURNING total_xp, study_streak`,
			params.UserID, params.Value, params.ActivityDate.UTC()).
			Scan(&result.TotalXP, &result.StudyStreak)
	} else {
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO user_progression (user_id, total_xp, study_streak)
			VALUES ($1, $2, 0)
			ON CONFLICT (user_id) DO UPDATE SET
				total_xp = user_progression.total_xp + EXCLUDED.total_xp,
				updated_at = now()
			RETURNING total_xp, study_streak`,
			params.UserID, params.Value).
			Scan(&result.TotalXP, &result.StudyStreak)
	}
	if err != nil {
		return nil, fmt.Errorf("update running total: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit credit: %w", err)
	}
	return &result, nil
}

// SumLedger returns the sum of all ledger entries for a user.
func (r *ProgressionRepository) SumLedger(ctx context.Context, userID uuid.UUID) (int, error) {
	var sum int
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(value), 0) FROM xp_events WHERE user_id = $1`,
		userID)
	if err != nil {
		return 0, fmt.Errorf("sum ledger: %w", err)
	}
	return sum, nil
}

// ListEvents returns a user's ledger entries, newest first.
func (r *ProgressionRepository) ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]domain.XPEvent, error) {
	events := []domain.XPEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, user_id, event_type, value, created_at
		FROM xp_events
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	return events, nil
}

// RecentlyActive returns users whose progression changed since the given time.
func (r *ProgressionRepository) RecentlyActive(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := r.db.SelectContext(ctx, &ids, `
		SELECT user_id FROM user_progression
		WHERE updated_at >= $1
		ORDER BY updated_at DESC
		LIMIT $2`,
		since, limit)
	if err != nil {
		return nil, fmt.Errorf("list recently active: %w", err)
	}
	return ids, nil
}
