// Package service contains the business logic layer.
//
// This file implements activity ingestion: the single inbound path that
// turns a session/quiz/flashcard event into ledger credits, counter bumps,
// and a badge evaluation pass.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// ActivityService ingests activity events from the session-completion and
// quiz-submission collaborators.
type ActivityService interface {
	// RecordActivity credits XP for the event, records session statistics
	// when present, bumps the matching usage counter, and re-evaluates
	// badges. The XP credit is atomic; badge evaluation is best-effort and
	// retried implicitly on the next event.
	// Returns domain.EINVALID for unknown event types.
	RecordActivity(ctx context.Context, event domain.ActivityEvent, now time.Time) (*ActivityResult, error)
}

// ActivityResult is what the notification collaborator needs from one event.
type ActivityResult struct {
	Award          *domain.AwardResult      `json:"award"`
	UnlockedBadges []domain.BadgeDefinition `json:"unlocked_badges,omitempty"`
}

// =============================================================================
// Implementation
// =============================================================================

type activityService struct {
	progression ProgressionService
	badges      BadgeService
	quotas      QuotaService
	stats       store.StatsStore
	logger      *slog.Logger
}

// NewActivityService creates a new ActivityService.
func NewActivityService(
	progression ProgressionService,
	badges BadgeService,
	quotas QuotaService,
	stats store.StatsStore,
	logger *slog.Logger,
) ActivityService {
	return &activityService{
		progression: progression,
		badges:      badges,
		quotas:      quotas,
		stats:       stats,
		logger:      logger,
	}
}

// RecordActivity processes one activity event.
func (s *activityService) RecordActivity(ctx context.Context, event domain.ActivityEvent, now time.Time) (*ActivityResult, error) {
	const op = "activity.record"

	if _, ok := domain.XPValueFor(event.EventType); !ok {
		return nil, domain.Invalid(op, "unknown event type")
	}

	// Session stats land first so the badge pass below sees them.
	if event.SessionStats != nil {
		if err := s.stats.RecordSession(ctx, event.UserID, *event.SessionStats, now); err != nil {
			return nil, domain.Internal(err, op, "failed to record session stats")
		}
	}

	award, err := s.progression.AwardXP(ctx, event.UserID, event.EventType, nil, now)
	if err != nil {
		return nil, err
	}

	// Flashcard reviews count against the daily flashcard quota. Mock exams
	// and study plans consume their quota at access time, before the action.
	if event.EventType == domain.EventFlashcardReviewed {
		if _, err := s.quotas.Increment(ctx, event.UserID, domain.FeatureFlashcards, 1, now); err != nil {
			s.logger.Error("usage counter bump failed",
				"error", err,
				"user_id", event.UserID,
				"feature", domain.FeatureFlashcards,
			)
		}
	}

	// Badge evaluation runs after the credit commits. If it fails the
	// credit stands; the next event re-evaluates idempotently.
	unlocked, err := s.badges.EvaluateBadges(ctx, event.UserID, domain.BadgeTrigger{
		NewXPTotal: award.NewTotal,
		EventType:  event.EventType,
	}, now)
	if err != nil {
		s.logger.Error("badge evaluation failed",
			"error", err,
			"user_id", event.UserID,
			"event_type", event.EventType,
		)
		unlocked = nil
	}

	return &ActivityResult{
		Award:          award,
		UnlockedBadges: unlocked,
	}, nil
}
