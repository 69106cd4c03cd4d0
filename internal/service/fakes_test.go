package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// =============================================================================
// In-memory ProgressionStore
// =============================================================================

type fakeProgressionStore struct {
	mu     sync.Mutex
	states map[uuid.UUID]*domain.ProgressionState
	ledger []domain.XPEvent
}

func newFakeProgressionStore() *fakeProgressionStore {
	return &fakeProgressionStore{states: make(map[uuid.UUID]*domain.ProgressionState)}
}

var _ store.ProgressionStore = (*fakeProgressionStore)(nil)

func (f *fakeProgressionStore) CreateState(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.states[userID]; !ok {
		f.states[userID] = &domain.ProgressionState{UserID: userID}
	}
	return nil
}

func (f *fakeProgressionStore) GetState(ctx context.Context, userID uuid.UUID) (*domain.ProgressionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state, ok := f.states[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *state
	return &copied, nil
}

func (f *fakeProgressionStore) CreditXP(ctx context.Context, params store.CreditXPParams) (*store.CreditXPResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ledger = append(f.ledger, domain.XPEvent{
		ID:        uuid.New(),
		UserID:    params.UserID,
		EventType: params.EventType,
		Value:     params.Value,
		CreatedAt: time.Now(),
	})

	state, ok := f.states[params.UserID]
	if !ok {
		state = &domain.ProgressionState{UserID: params.UserID}
		f.states[params.UserID] = state
	}
	state.TotalXP += params.Value

	if params.UpdateStreak {
		day := params.ActivityDate.UTC().Truncate(24 * time.Hour)
		switch {
		case state.LastStudyDate != nil && state.LastStudyDate.Equal(day):
			// same day, streak unchanged
		case state.LastStudyDate != nil && state.LastStudyDate.Equal(day.AddDate(0, 0, -1)):
			state.StudyStreak++
		default:
			state.StudyStreak = 1
		}
		if state.LastStudyDate == nil || state.LastStudyDate.Before(day) {
			state.LastStudyDate = &day
		}
	}
	state.UpdatedAt = time.Now()

	return &store.CreditXPResult{TotalXP: state.TotalXP, StudyStreak: state.StudyStreak}, nil
}

func (f *fakeProgressionStore) SumLedger(ctx context.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := 0
	for _, e := range f.ledger {
		if e.UserID == userID {
			sum += e.Value
		}
	}
	return sum, nil
}

func (f *fakeProgressionStore) ListEvents(ctx context.Context, userID uuid.UUID, limit int) ([]domain.XPEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	events := []domain.XPEvent{}
	for i := len(f.ledger) - 1; i >= 0 && len(events) < limit; i-- {
		if f.ledger[i].UserID == userID {
			events = append(events, f.ledger[i])
		}
	}
	return events, nil
}

func (f *fakeProgressionStore) RecentlyActive(ctx context.Context, since time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []uuid.UUID{}
	for id, state := range f.states {
		if !state.UpdatedAt.Before(since) && len(ids) < limit {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeProgressionStore) ledgerEntries(userID uuid.UUID) []domain.XPEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := []domain.XPEvent{}
	for _, e := range f.ledger {
		if e.UserID == userID {
			entries = append(entries, e)
		}
	}
	return entries
}

// =============================================================================
// In-memory QuotaStore
// =============================================================================

type counterKey struct {
	userID  uuid.UUID
	feature domain.Feature
}

type fakeQuotaStore struct {
	mu       sync.Mutex
	counters map[counterKey]*domain.UsageCounter
}

func newFakeQuotaStore() *fakeQuotaStore {
	return &fakeQuotaStore{counters: make(map[counterKey]*domain.UsageCounter)}
}

var _ store.QuotaStore = (*fakeQuotaStore)(nil)

func (f *fakeQuotaStore) get(userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time) *domain.UsageCounter {
	key := counterKey{userID, feature}
	counter, ok := f.counters[key]
	if !ok {
		counter = &domain.UsageCounter{
			UserID:      userID,
			Feature:     feature,
			PeriodKind:  kind,
			PeriodStart: periodStart,
		}
		f.counters[key] = counter
	}
	if counter.PeriodStart.Before(periodStart) {
		counter.Used = 0
		counter.PeriodStart = periodStart
	}
	counter.PeriodKind = kind
	return counter
}

func (f *fakeQuotaStore) CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time) (*domain.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counter := f.get(userID, feature, kind, periodStart)
	copied := *counter
	return &copied, nil
}

func (f *fakeQuotaStore) Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by int) (*domain.UsageCounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counter := f.get(userID, feature, kind, periodStart)
	counter.Used += by
	copied := *counter
	return &copied, nil
}

func (f *fakeQuotaStore) TryIncrement(ctx context.Context, userID uuid.UUID, feature domain.Feature, kind domain.PeriodKind, periodStart time.Time, by, limit int) (*domain.UsageCounter, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counter := f.get(userID, feature, kind, periodStart)
	if counter.Used+by > limit {
		copied := *counter
		return &copied, false, nil
	}
	counter.Used += by
	copied := *counter
	return &copied, true, nil
}

func (f *fakeQuotaStore) DeleteStale(ctx context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for key, counter := range f.counters {
		if counter.PeriodStart.Before(before) {
			delete(f.counters, key)
			deleted++
		}
	}
	return deleted, nil
}

// =============================================================================
// In-memory BadgeStore
// =============================================================================

type awardKey struct {
	userID  uuid.UUID
	badgeID string
}

type fakeBadgeStore struct {
	mu     sync.Mutex
	defs   []domain.BadgeDefinition
	awards map[awardKey]domain.BadgeAward
}

func newFakeBadgeStore(defs ...domain.BadgeDefinition) *fakeBadgeStore {
	return &fakeBadgeStore{defs: defs, awards: make(map[awardKey]domain.BadgeAward)}
}

var _ store.BadgeStore = (*fakeBadgeStore)(nil)

func (f *fakeBadgeStore) ListDefinitions(ctx context.Context) ([]domain.BadgeDefinition, error) {
	return f.defs, nil
}

func (f *fakeBadgeStore) ListAwards(ctx context.Context, userID uuid.UUID) ([]domain.BadgeAward, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	awards := []domain.BadgeAward{}
	for key, award := range f.awards {
		if key.userID == userID {
			awards = append(awards, award)
		}
	}
	return awards, nil
}

func (f *fakeBadgeStore) InsertAward(ctx context.Context, userID uuid.UUID, badgeID string, awardedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := awardKey{userID, badgeID}
	if _, ok := f.awards[key]; ok {
		return false, nil
	}
	f.awards[key] = domain.BadgeAward{UserID: userID, BadgeID: badgeID, AwardedAt: awardedAt}
	return true, nil
}

// =============================================================================
// In-memory StatsStore
// =============================================================================

type fakeStatsStore struct {
	mu       sync.Mutex
	sessions []domain.SessionStats
}

func newFakeStatsStore() *fakeStatsStore {
	return &fakeStatsStore{}
}

var _ store.StatsStore = (*fakeStatsStore)(nil)

func (f *fakeStatsStore) RecordSession(ctx context.Context, userID uuid.UUID, stats domain.SessionStats, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, stats)
	return nil
}

func (f *fakeStatsStore) ActivityStats(ctx context.Context, userID uuid.UUID) (domain.ActivityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var stats domain.ActivityStats
	byUnit := make(map[string]*domain.UnitAccuracy)
	for _, s := range f.sessions {
		stats.TotalCorrect += s.CorrectAnswers
		if s.IsPerfect() {
			stats.HasPerfectQuiz = true
		}
		unit, ok := byUnit[s.Unit]
		if !ok {
			unit = &domain.UnitAccuracy{Unit: s.Unit}
			byUnit[s.Unit] = unit
		}
		unit.Attempted += s.TotalQuestions
		unit.Correct += s.CorrectAnswers
	}
	for _, unit := range byUnit {
		stats.UnitAccuracy = append(stats.UnitAccuracy, *unit)
	}
	return stats, nil
}

// =============================================================================
// In-memory SubscriptionStore
// =============================================================================

type fakeSubscriptionStore struct {
	tiers map[uuid.UUID]domain.SubscriptionTier
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{tiers: make(map[uuid.UUID]domain.SubscriptionTier)}
}

var _ store.SubscriptionStore = (*fakeSubscriptionStore)(nil)

func (f *fakeSubscriptionStore) TierFor(ctx context.Context, userID uuid.UUID) (domain.SubscriptionTier, error) {
	if tier, ok := f.tiers[userID]; ok {
		return tier, nil
	}
	return domain.SubscriptionTierFree, nil
}
