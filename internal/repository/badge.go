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

// BadgeRepository implements store.BadgeStore.
type BadgeRepository struct {
	db *sqlx.DB
}

// NewBadgeRepository creates a new BadgeRepository.
func NewBadgeRepository(db *sqlx.DB) *BadgeRepository {
	return &BadgeRepository{db: db}
}

var _ store.BadgeStore = (*BadgeRepository)(nil)

// ListDefinitions returns all badge definitions.
func (r *BadgeRepository) ListDefinitions(ctx context.Context) ([]domain.BadgeDefinition, error) {
	defs := []domain.BadgeDefinition{}
	err := r.db.SelectContext(ctx, &defs, `
		SELECT id, name, description, criteria_type, criteria_value, bonus_xp
		FROM badge_definitions
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list badge definitions: %w", err)
	}
	return defs, nil
}

// ListAwards returns the badges a user has already unlocked.
func (r *BadgeRepository) ListAwards(ctx context.Context, userID uuid.UUID) ([]domain.BadgeAward, error) {
	awards := []domain.BadgeAward{}
	err := r.db.SelectContext(ctx, &awards, `
		SELECT user_id, badge_id, awarded_at
		FROM badge_awards
		WHERE user_id = $1
		ORDER BY awarded_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list badge awards: %w", err)
	}
	return awards, nil
}

// InsertAward records an unlock. The unique (user_id, badge_id) constraint
// is the at-most-once guarantee: under a concurrent evaluation the losing
// insert no-ops and reports false.
func (r *BadgeRepository) InsertAward(ctx context.Context, userID uuid.UUID, badgeID string, awardedAt time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO badge_awards (user_id, badge_id, awarded_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, badge_id) DO NOTHING`,
		userID, badgeID, awardedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert badge award: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert badge award: %w", err)
	}
	return rows > 0, nil
}
