// Package service contains the business logic layer.
//
// This file implements the progression ledger service: XP credits, level
// computation, and the level-up bonus.
package service

import (
	"context"
	"errors"
	"fmt"
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

// ProgressionService defines operations on the XP ledger and the derived
// per-user progression state.
type ProgressionService interface {
	// AwardXP credits XP for an event and returns the post-credit totals.
	// explicitValue overrides the fixed value table; it is required for
	// event types the table does not cover. A zero value is a no-op that
	// writes nothing. Crossing a level threshold appends one non-cascading
	// level_up_bonus ledger entry.
	// Returns domain.EINVALID for unknown event types and negative values.
	AwardXP(ctx context.Context, userID uuid.UUID, eventType domain.EventType, explicitValue *int, now time.Time) (*domain.AwardResult, error)

	// GetProgression returns a user's progression snapshot for display.
	// Returns domain.ENOTFOUND if the user has no progression state.
	GetProgression(ctx context.Context, userID uuid.UUID) (*ProgressionSnapshot, error)

	// History returns a user's most recent ledger entries, newest first.
	// A non-positive limit falls back to the default page size.
	History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.XPEvent, error)

	// InitUser creates the zero-XP progression row at account creation.
	InitUser(ctx context.Context, userID uuid.UUID) error
}

// ProgressionSnapshot is the display-oriented view of progression state.
type ProgressionSnapshot struct {
	UserID          uuid.UUID  `json:"user_id"`
	TotalXP         int        `json:"total_xp"`
	Level           int        `json:"level"`
	ProgressPercent int        `json:"progress_percent"`
	XPForNextLevel  int        `json:"xp_for_next_level"` // 0 at the level cap
	StudyStreak     int        `json:"study_streak"`
	LastStudyDate   *time.Time `json:"last_study_date,omitempty"`
}

// =============================================================================
// Implementation
// =============================================================================

type progressionService struct {
	progression store.ProgressionStore
	emitter     events.Emitter
	logger      *slog.Logger
}

// NewProgressionService creates a new ProgressionService.
func NewProgressionService(
	progression store.ProgressionStore,
	emitter events.Emitter,
	logger *slog.Logger,
) ProgressionService {
	return &progressionService{
		progression: progression,
		emitter:     emitter,
		logger:      logger,
	}
}

// AwardXP credits XP for an event.
func (s *progressionService) AwardXP(ctx context.Context, userID uuid.UUID, eventType domain.EventType, explicitValue *int, now time.Time) (*domain.AwardResult, error) {
	const op = "progression.award_xp"

	if userID == uuid.Nil {
		return nil, domain.Invalid(op, "user id is required")
	}

	value, err := resolveXPValue(op, eventType, explicitValue)
	if err != nil {
		return nil, err
	}

	// Zero-value events are a no-op: no ledger entry, current state returned.
	if value == 0 {
		state, err := s.progression.GetState(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return &domain.AwardResult{NewTotal: 0, NewLevel: 1}, nil
			}
			return nil, domain.Internal(err, op, "failed to load progression state")
		}
		return &domain.AwardResult{NewTotal: state.TotalXP, NewLevel: state.Level()}, nil
	}

	credit, err := s.progression.CreditXP(ctx, store.CreditXPParams{
		UserID:       userID,
		EventType:    eventType,
		Value:        value,
		UpdateStreak: eventType.IsStudyEvent(),
		ActivityDate: now,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to credit xp")
	}
	metrics.XPAwardedTotal.WithLabelValues(string(eventType)).Add(float64(value))

	oldLevel := domain.LevelOf(credit.TotalXP - value)
	newLevel := domain.LevelOf(credit.TotalXP)
	leveledUp := newLevel > oldLevel

	newTotal := credit.TotalXP
	if leveledUp {
		// One fixed bonus credit, ledgered like everything else. The bonus
		// never cascades into a further bonus even if it crosses another
		// threshold, which bounds a credit to two ledger writes.
		bonus, err := s.progression.CreditXP(ctx, store.CreditXPParams{
			UserID:    userID,
			EventType: domain.EventLevelUpBonus,
			Value:     domain.LevelUpBonusXP,
		})
		if err != nil {
			return nil, domain.Internal(err, op, "failed to credit level-up bonus")
		}
		newTotal = bonus.TotalXP
		newLevel = domain.LevelOf(newTotal)

		metrics.XPAwardedTotal.WithLabelValues(string(domain.EventLevelUpBonus)).Add(float64(domain.LevelUpBonusXP))
		metrics.LevelUpsTotal.Inc()
		s.emitter.Emit(ctx, events.NewLevelUp(userID, newLevel, now))

		s.logger.Info("level up",
			"user_id", userID,
			"old_level", oldLevel,
			"new_level", newLevel,
			"total_xp", newTotal,
		)
	}

	return &domain.AwardResult{
		NewTotal:  newTotal,
		NewLevel:  newLevel,
		LeveledUp: leveledUp,
	}, nil
}

// resolveXPValue picks the credit value for an event: the explicit override
// when given, otherwise the fixed table value.
func resolveXPValue(op string, eventType domain.EventType, explicitValue *int) (int, error) {
	if explicitValue != nil {
		if *explicitValue < 0 {
			return 0, domain.Invalid(op, "xp value must not be negative")
		}
		return *explicitValue, nil
	}
	value, ok := domain.XPValueFor(eventType)
	if !ok {
		return 0, domain.Invalid(op, fmt.Sprintf("unknown event type %q and no explicit value", eventType))
	}
	return value, nil
}

// GetProgression returns a user's progression snapshot.
func (s *progressionService) GetProgression(ctx context.Context, userID uuid.UUID) (*ProgressionSnapshot, error) {
	const op = "progression.get"

	state, err := s.progression.GetState(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, domain.NotFound(op, "progression", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to load progression state")
	}

	level := state.Level()
	next, _ := domain.XPForNextLevel(level)

	return &ProgressionSnapshot{
		UserID:          state.UserID,
		TotalXP:         state.TotalXP,
		Level:           level,
		ProgressPercent: domain.ProgressWithinLevel(state.TotalXP, level),
		XPForNextLevel:  next,
		StudyStreak:     state.StudyStreak,
		LastStudyDate:   state.LastStudyDate,
	}, nil
}

// Ledger history page bounds.
const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// History returns a user's most recent ledger entries.
func (s *progressionService) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.XPEvent, error) {
	const op = "progression.history"

	if userID == uuid.Nil {
		return nil, domain.Invalid(op, "user id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.progression.ListEvents(ctx, userID, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list ledger entries")
	}
	return entries, nil
}

// InitUser creates the zero-XP progression row.
func (s *progressionService) InitUser(ctx context.Context, userID uuid.UUID) error {
	const op = "progression.init_user"

	if userID == uuid.Nil {
		return domain.Invalid(op, "user id is required")
	}
	if err := s.progression.CreateState(ctx, userID); err != nil {
		return domain.Internal(err, op, "failed to create progression state")
	}
	return nil
}
