package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/store"
)

// SubscriptionRepository implements store.SubscriptionStore. It reads the
// subscriptions table maintained by the billing webhook; this engine never
// writes tier state.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

var _ store.SubscriptionStore = (*SubscriptionRepository)(nil)

// TierFor returns the user's subscription tier. Users without a subscription
// row are free tier. Unknown tier values pass through unchanged; the limits
// table fails them closed.
func (r *SubscriptionRepository) TierFor(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	var tier domain.SubscriptionTier
	err := r.db.GetContext(ctx, &tier, `
		SELECT tier FROM subscriptions WHERE user_id = $1`,
		userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.SubscriptionTierFree, nil
		}
		return "", fmt.Errorf("get subscription tier: %w", err)
	}
	return tier, nil
}
