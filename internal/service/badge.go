// Package service contains the business logic layer.
//
// This file implements the badge rule engine. The storage-level uniqueness
// constraint on awards is the only at-most-once mechanism; the evaluate-
// then-insert sequence here is racy by itself and relies on it.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/events"
	"github.com/paperpath/engine/internal/metrics"
	"github.com/paperpath/engine/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// BadgeService evaluates badge criteria and records unlocks.
type BadgeService interface {
	// EvaluateBadges re-checks every badge the user has not yet unlocked
	// against current aggregates and returns the newly unlocked definitions.
	// Evaluation is idempotent: a second pass with no new activity unlocks
	// nothing.
	EvaluateBadges(ctx context.Context, userID uuid.UUID, trigger domain.BadgeTrigger, now time.Time) ([]domain.BadgeDefinition, error)

	// ListUnlocked returns the badges a user has unlocked so far.
	ListUnlocked(ctx context.Context, userID uuid.UUID) ([]domain.BadgeAward, error)
}

// =============================================================================
// Implementation
// =============================================================================

type badgeService struct {
	badges      store.BadgeStore
	progression store.ProgressionStore
	stats       store.StatsStore
	xp          ProgressionService
	emitter     events.Emitter
	logger      *slog.Logger
}

// NewBadgeService creates a new BadgeService. Bonus XP for unlocked badges
// is credited through the given ProgressionService so it lands in the
// ledger like any other credit.
func NewBadgeService(
	badges store.BadgeStore,
	progression store.ProgressionStore,
	stats store.StatsStore,
	xp ProgressionService,
	emitter events.Emitter,
	logger *slog.Logger,
) BadgeService {
	return &badgeService{
		badges:      badges,
		progression: progression,
		stats:       stats,
		xp:          xp,
		emitter:     emitter,
		logger:      logger,
	}
}

// EvaluateBadges re-checks un-awarded badges against current aggregates.
func (s *badgeService) EvaluateBadges(ctx context.Context, userID uuid.UUID, trigger domain.BadgeTrigger, now time.Time) ([]domain.BadgeDefinition, error) {
	const op = "badge.evaluate"

	if userID == uuid.Nil {
		return nil, domain.Invalid(op, "user id is required")
	}

	state, err := s.progression.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			state = &domain.ProgressionState{UserID: userID}
		} else {
			return nil, domain.Internal(err, op, "failed to load progression state")
		}
	}

	defs, err := s.badges.ListDefinitions(ctx)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load badge definitions")
	}

	awards, err := s.badges.ListAwards(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load badge awards")
	}
	awarded := make(map[string]bool, len(awards))
	for _, award := range awards {
		awarded[award.BadgeID] = true
	}

	stats, err := s.stats.ActivityStats(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load activity stats")
	}

	var unlocked []domain.BadgeDefinition
	for _, def := range defs {
		if awarded[def.ID] {
			continue
		}
		if !domain.MeetsCriteria(def, state, stats, trigger) {
			continue
		}

		// A concurrent evaluation may have inserted first; the conflict
		// no-op means this badge is not ours to report.
		inserted, err := s.badges.InsertAward(ctx, userID, def.ID, now)
		if err != nil {
			return unlocked, domain.Internal(err, op, "failed to insert badge award")
		}
		if !inserted {
			continue
		}

		unlocked = append(unlocked, def)
		metrics.BadgesUnlockedTotal.WithLabelValues(def.ID).Inc()
		s.emitter.Emit(ctx, events.NewBadgeUnlocked(userID, def.ID, def.Name, now))

		s.logger.Info("badge unlocked",
			"user_id", userID,
			"badge_id", def.ID,
			"criteria_type", def.CriteriaType,
		)

		if def.BonusXP > 0 {
			s.creditBonus(ctx, userID, def, now)
		}
	}

	return unlocked, nil
}

// creditBonus routes a badge's bonus XP through the ledger. The bonus credit
// does not re-run evaluation within this pass; the next triggering event
// picks up anything it newly qualifies. A failed bonus is logged and left
// for the reconciliation sweep, since the award row already stands.
func (s *badgeService) creditBonus(ctx context.Context, userID uuid.UUID, def domain.BadgeDefinition, now time.Time) {
	bonus := def.BonusXP
	if _, err := s.xp.AwardXP(ctx, userID, domain.EventBadgeBonus, &bonus, now); err != nil {
		s.logger.Error("badge bonus credit failed",
			"error", err,
			"user_id", userID,
			"badge_id", def.ID,
			"bonus_xp", bonus,
		)
	}
}

// ListUnlocked returns the badges a user has unlocked so far.
func (s *badgeService) ListUnlocked(ctx context.Context, userID uuid.UUID) ([]domain.BadgeAward, error) {
	const op = "badge.list_unlocked"

	awards, err := s.badges.ListAwards(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to load badge awards")
	}
	return awards, nil
}
