package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/store"
)

// StatsRepository implements store.StatsStore.
type StatsRepository struct {
	db *sqlx.DB
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(db *sqlx.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

var _ store.StatsStore = (*StatsRepository)(nil)

// RecordSession stores one completed session's answer statistics.
func (r *StatsRepository) RecordSession(ctx context.Context, userID uuid.UUID, stats domain.SessionStats, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO session_stats (id, user_id, unit, total_questions, correct_answers, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New(), userID, stats.Unit, stats.TotalQuestions, stats.CorrectAnswers, at.UTC())
	if err != nil {
		return fmt.Errorf("record session stats: %w", err)
	}
	return nil
}

// ActivityStats returns the aggregates the badge rule engine evaluates:
// cumulative correct answers, per-unit attempted/correct, and whether any
// single session was perfect.
func (r *StatsRepository) ActivityStats(ctx context.Context, userID uuid.UUID) (domain.ActivityStats, error) {
	var stats domain.ActivityStats

	err := r.db.GetContext(ctx, &stats.TotalCorrect, `
		SELECT COALESCE(SUM(correct_answers), 0)
		FROM session_stats
		WHERE user_id = $1`,
		userID)
	if err != nil {
		return stats, fmt.Errorf("sum correct answers: %w", err)
	}

	units := []domain.UnitAccuracy{}
	err = r.db.SelectContext(ctx, &units, `
		SELECT unit,
		       SUM(total_questions) AS attempted,
		       SUM(correct_answers) AS correct
		FROM session_stats
		WHERE user_id = $1
		GROUP BY unit`,
		userID)
	if err != nil {
		return stats, fmt.Errorf("aggregate unit accuracy: %w", err)
	}
	stats.UnitAccuracy = units

	err = r.db.GetContext(ctx, &stats.HasPerfectQuiz, `
		SELECT EXISTS (
			SELECT 1 FROM session_stats
			WHERE user_id = $1
			  AND total_questions > 0
			  AND correct_answers = total_questions
		)`,
		userID)
	if err != nil {
		return stats, fmt.Errorf("check perfect session: %w", err)
	}

	return stats, nil
}
