package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// CreditXPParams describes one ledger credit. The ledger insert and the
// running-total increment happen in a single transaction; the increment is a
// single-statement add so concurrent credits never lose updates.
type CreditXPParams struct {
	UserID    uuid.UUID
	EventType domain.EventType
	Value     int

	// UpdateStreak bumps the study streak for ActivityDate: unchanged if the
	// user already studied that day, +1 if the previous study day was
	// yesterday, reset to 1 otherwise. Bonus credits leave the streak alone.
	UpdateStreak bool
	ActivityDate time.Time
}

// CreditXPResult reports the post-credit state.
type CreditXPResult struct {
	TotalXP     int
	StudyStreak int
}

// ProgressionStore persists the XP ledger and per-user progression state.
type ProgressionStore interface {
	// CreateState initializes a progression row with zero XP at account
	// creation. Creating an existing user is a no-op.
	CreateState(ctx context.Context, userID uuid.UUID) error

	// GetState retrieves a user's progression state.
	// Returns ErrNotFound if the user has no progression row.
	GetState(ctx context.Context, userID uuid.UUID) (*domain.ProgressionState, error)

	// CreditXP appends one ledger entry and adds its value to the running
	// total atomically. The whole credit fails or succeeds as a unit.
	CreditXP(ctx context.Context, params CreditXPParams) (*CreditXPResult, error)

	// SumLedger returns the sum of all ledger entries for a user, used to
	// verify the reconciliation invariant SUM(ledger) == total_xp.
	SumLedger(ctx context.Context, userID uuid.UUID) (int, error)

	// ListEvents returns a user's ledger entries, newest first.
	ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]domain.XPEvent, error)

	// RecentlyActive returns users whose progression changed since the given
	// time, for reconciliation sweeps.
	RecentlyActive(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error)
}

// QuotaStore persists per-feature usage counters. All three operations are
// single-statement conditional upserts: a stale counter is reset and
// incremented in one atomic step, never as a separate read-modify-write.
type QuotaStore interface {
	// CheckAndReset lazily creates the counter and resets it to zero iff the
	// stored period is older than periodStart. Reading the counter again in
	// the same period does not reset it twice.
	CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time) (*domain.UsageCounter, error)

	// Increment adds by to the counter, resetting first if the period is
	// stale. It does not enforce any limit.
	Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by int) (*domain.UsageCounter, error)

	// TryIncrement is Increment with a limit guard: the write is refused when
	// it would push used past limit. Returns the resulting counter and
	// whether the increment was applied.
	TryIncrement(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by, limit int) (*domain.UsageCounter, bool, error)

	// DeleteStale removes counters whose period ended before the cutoff.
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// BadgeStore persists badge definitions and awards. The unique
// (user_id, badge_id) constraint is the sole at-most-once mechanism for
// awards; InsertAward treats a conflict as a successful no-op.
type BadgeStore interface {
	// ListDefinitions returns all badge definitions.
	ListDefinitions(ctx context.Context) ([]domain.BadgeDefinition, error)

	// ListAwards returns the badges a user has already unlocked.
	ListAwards(ctx context.Context, userID uuid.UUID) ([]domain.BadgeAward, error)

	// InsertAward records an unlock. Returns false without error when the
	// badge was already awarded (uniqueness conflict).
	InsertAward(ctx context.Context, userID uuid.UUID, badgeID string, awardedAt time.Time) (bool, error)
}

// StatsStore persists per-session answer statistics and serves the
// aggregates the badge rule engine evaluates against.
type StatsStore interface {
	// RecordSession stores one completed session's stats.
	RecordSession(ctx context.Context, userID uuid.UUID, stats domain.SessionStats, at time.Time) error

	// ActivityStats returns cumulative correct answers, per-unit accuracy,
	// and whether any session was perfect.
	ActivityStats(ctx context.Context, userID uuid.UUID) (domain.ActivityStats, error)
}

// SubscriptionStore is the read-only boundary to the billing collaborator.
// This engine never writes tier state.
type SubscriptionStore interface {
	// TierFor returns the user's subscription tier. Users without a
	// subscription row are free tier.
	TierFor(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error)
}
