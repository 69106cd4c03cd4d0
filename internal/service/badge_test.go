package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/events"
	"github.com/paperpath/engine/internal/store"
)

type badgeFixture struct {
	badges      BadgeService
	progression *fakeProgressionStore
	stats       *fakeStatsStore
	emitted     *[]events.Event
}

func newBadgeFixture(defs ...domain.BadgeDefinition) *badgeFixture {
	progression := newFakeProgressionStore()
	badgeStore := newFakeBadgeStore(defs...)
	stats := newFakeStatsStore()
	emitter := events.NewInMemoryEmitter(testLogger())

	var emitted []events.Event
	emitter.Register(events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		emitted = append(emitted, event)
		return nil
	}))

	xp := NewProgressionService(progression, emitter, testLogger())
	badges := NewBadgeService(badgeStore, progression, stats, xp, emitter, testLogger())

	return &badgeFixture{
		badges:      badges,
		progression: progression,
		stats:       stats,
		emitted:     &emitted,
	}
}

func TestEvaluateBadges_UnlocksAtMostOnce(t *testing.T) {
	fx := newBadgeFixture(
		domain.BadgeDefinition{ID: "xp-10", Name: "Starter", CriteriaType: domain.CriteriaXPTotal, CriteriaValue: 10},
	)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	_, err := fx.progression.CreditXP(ctx, creditParams(userID, 15, now))
	require.NoError(t, err)

	unlocked, err := fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{NewXPTotal: 15}, now)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "xp-10", unlocked[0].ID)

	// A second pass with no new activity unlocks nothing.
	unlocked, err = fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{NewXPTotal: 15}, now)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	awards, err := fx.badges.ListUnlocked(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, awards, 1)

	require.Len(t, *fx.emitted, 1)
	assert.Equal(t, events.TypeBadgeUnlocked, (*fx.emitted)[0].Type)
	assert.Equal(t, "xp-10", (*fx.emitted)[0].BadgeID)
}

// Two racing evaluations of the same newly-qualifying badge must produce
// exactly one award row; the insert conflict decides which pass reports it.
func TestEvaluateBadges_ConcurrentPassesAwardOnce(t *testing.T) {
	fx := newBadgeFixture(
		domain.BadgeDefinition{ID: "xp-10", Name: "Starter", CriteriaType: domain.CriteriaXPTotal, CriteriaValue: 10},
	)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	_, err := fx.progression.CreditXP(ctx, creditParams(userID, 15, now))
	require.NoError(t, err)

	var (
		wg            sync.WaitGroup
		totalUnlocked atomic.Int64
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlocked, err := fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{NewXPTotal: 15}, now)
			assert.NoError(t, err)
			totalUnlocked.Add(int64(len(unlocked)))
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), totalUnlocked.Load())

	awards, err := fx.badges.ListUnlocked(ctx, userID)
	require.NoError(t, err)
	require.Len(t, awards, 1)
	assert.Equal(t, "xp-10", awards[0].BadgeID)
}

func TestEvaluateBadges_BonusXPLandsInLedger(t *testing.T) {
	fx := newBadgeFixture(
		domain.BadgeDefinition{ID: "xp-10", Name: "Starter", CriteriaType: domain.CriteriaXPTotal, CriteriaValue: 10, BonusXP: 50},
	)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	_, err := fx.progression.CreditXP(ctx, creditParams(userID, 15, now))
	require.NoError(t, err)

	unlocked, err := fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{NewXPTotal: 15}, now)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)

	state, err := fx.progression.GetState(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 65, state.TotalXP)

	entries := fx.progression.ledgerEntries(userID)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.EventBadgeBonus, entries[1].EventType)
	assert.Equal(t, 50, entries[1].Value)
}

func TestEvaluateBadges_StreakAndStats(t *testing.T) {
	fx := newBadgeFixture(
		domain.BadgeDefinition{ID: "streak-3", CriteriaType: domain.CriteriaStreak, CriteriaValue: 3},
		domain.BadgeDefinition{ID: "perfect", CriteriaType: domain.CriteriaPerfectQuiz},
		domain.BadgeDefinition{ID: "unit-90", CriteriaType: domain.CriteriaUnitAccuracy, CriteriaValue: 90},
	)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	require.NoError(t, fx.stats.RecordSession(ctx, userID, domain.SessionStats{
		Unit: "mechanics", TotalQuestions: 12, CorrectAnswers: 12,
	}, now))

	unlocked, err := fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{EventType: domain.EventQuizCompleted}, now)
	require.NoError(t, err)

	// Perfect quiz and 100% unit accuracy over 12 attempts qualify; the
	// streak badge needs three study days and stays locked.
	ids := make([]string, 0, len(unlocked))
	for _, def := range unlocked {
		ids = append(ids, def.ID)
	}
	assert.ElementsMatch(t, []string{"perfect", "unit-90"}, ids)
}

func TestEvaluateBadges_OnboardingFiresOnTriggerOnly(t *testing.T) {
	fx := newBadgeFixture(
		domain.BadgeDefinition{ID: "first-steps", CriteriaType: domain.CriteriaOnboarding},
	)
	userID := uuid.New()
	ctx := context.Background()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	unlocked, err := fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{EventType: domain.EventQuizCompleted}, now)
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	unlocked, err = fx.badges.EvaluateBadges(ctx, userID, domain.BadgeTrigger{EventType: domain.EventOnboardingComplete}, now)
	require.NoError(t, err)
	require.Len(t, unlocked, 1)
	assert.Equal(t, "first-steps", unlocked[0].ID)
}

func creditParams(userID uuid.UUID, value int, at time.Time) store.CreditXPParams {
	return store.CreditXPParams{
		UserID:       userID,
		EventType:    domain.EventSessionCompleted,
		Value:        value,
		UpdateStreak: true,
		ActivityDate: at,
	}
}
