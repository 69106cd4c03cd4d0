package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/events"
	"github.com/paperpath/engine/internal/store"
)

type activityFixture struct {
	activity    ActivityService
	progression *fakeProgressionStore
	quotaStore  *fakeQuotaStore
	badgeStore  *fakeBadgeStore
}

func newActivityFixture(defs ...domain.BadgeDefinition) *activityFixture {
	progression := newFakeProgressionStore()
	quotaStore := newFakeQuotaStore()
	badgeStore := newFakeBadgeStore(defs...)
	stats := newFakeStatsStore()
	subscriptions := newFakeSubscriptionStore()
	emitter := events.NewInMemoryEmitter(testLogger())

	xp := NewProgressionService(progression, emitter, testLogger())
	badges := NewBadgeService(badgeStore, progression, stats, xp, emitter, testLogger())
	quotas := NewQuotaService(quotaStore, subscriptions, testLogger())
	activity := NewActivityService(xp, badges, quotas, stats, testLogger())

	return &activityFixture{
		activity:    activity,
		progression: progression,
		quotaStore:  quotaStore,
		badgeStore:  badgeStore,
	}
}

func TestRecordActivity_QuizUnlocksPerfectBadge(t *testing.T) {
	fx := newActivityFixture(
		domain.BadgeDefinition{ID: "perfect", Name: "Flawless", CriteriaType: domain.CriteriaPerfectQuiz},
	)
	userID := uuid.New()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	result, err := fx.activity.RecordActivity(context.Background(), domain.ActivityEvent{
		UserID:    userID,
		EventType: domain.EventQuizCompleted,
		SessionStats: &domain.SessionStats{
			Unit: "mechanics", TotalQuestions: 10, CorrectAnswers: 10,
		},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, 20, result.Award.NewTotal)
	require.Len(t, result.UnlockedBadges, 1)
	assert.Equal(t, "perfect", result.UnlockedBadges[0].ID)
}

func TestRecordActivity_UnknownEventType(t *testing.T) {
	fx := newActivityFixture()

	_, err := fx.activity.RecordActivity(context.Background(), domain.ActivityEvent{
		UserID:    uuid.New(),
		EventType: domain.EventType("made_up"),
	}, time.Now().UTC())
	require.Error(t, err)
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestRecordActivity_FlashcardBumpsDailyCounter(t *testing.T) {
	fx := newActivityFixture()
	userID := uuid.New()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		_, err := fx.activity.RecordActivity(context.Background(), domain.ActivityEvent{
			UserID:    userID,
			EventType: domain.EventFlashcardReviewed,
		}, now)
		require.NoError(t, err)
	}

	counter, err := fx.quotaStore.CheckAndReset(context.Background(), userID,
		domain.FeatureFlashcards, domain.PeriodDaily, domain.PeriodStartFor(domain.PeriodDaily, now))
	require.NoError(t, err)
	assert.Equal(t, 3, counter.Used)
}

// failingStatsStore returns an error from the aggregate query so badge
// evaluation fails after the credit committed.
type failingStatsStore struct {
	fakeStatsStore
}

var _ store.StatsStore = (*failingStatsStore)(nil)

func (f *failingStatsStore) ActivityStats(ctx context.Context, userID uuid.UUID) (domain.ActivityStats, error) {
	return domain.ActivityStats{}, errors.New("aggregate query timeout")
}

func TestRecordActivity_BadgeFailureDoesNotRollBackCredit(t *testing.T) {
	progression := newFakeProgressionStore()
	quotaStore := newFakeQuotaStore()
	badgeStore := newFakeBadgeStore(
		domain.BadgeDefinition{ID: "perfect", CriteriaType: domain.CriteriaPerfectQuiz},
	)
	stats := &failingStatsStore{}
	subscriptions := newFakeSubscriptionStore()
	emitter := events.NewInMemoryEmitter(testLogger())

	xp := NewProgressionService(progression, emitter, testLogger())
	badges := NewBadgeService(badgeStore, progression, stats, xp, emitter, testLogger())
	quotas := NewQuotaService(quotaStore, subscriptions, testLogger())
	activity := NewActivityService(xp, badges, quotas, stats, testLogger())

	userID := uuid.New()
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	result, err := activity.RecordActivity(context.Background(), domain.ActivityEvent{
		UserID:    userID,
		EventType: domain.EventQuizCompleted,
	}, now)
	require.NoError(t, err)

	// The credit stands; badge evaluation is retried on the next event.
	assert.Equal(t, 20, result.Award.NewTotal)
	assert.Empty(t, result.UnlockedBadges)

	state, err := progression.GetState(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 20, state.TotalXP)
}
