// Package service contains the business logic layer.
//
// This file implements the usage quota tracker. The caller supplies "now"
// for all period-boundary decisions so reset behavior stays testable.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/metrics"
	"github.com/paperpath/engine/internal/store"
)

// =============================================================================
// Interface Definition
// =============================================================================

// QuotaService tracks per-feature usage counters with periodic resets.
type QuotaService interface {
	// CheckAndReset returns the counter for the current period, lazily
	// creating it and resetting a stale one exactly once per boundary.
	CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.UsageCounter, error)

	// Increment adds to the counter without enforcing any limit. Callers
	// that gate on a limit should use TryConsume instead.
	// Returns domain.EINVALID for non-positive amounts.
	Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.UsageCounter, error)

	// TryConsume atomically consumes quota for the user's tier: it refuses
	// the write when it would exceed the tier limit, so concurrent requests
	// can never overshoot. The returned status always reflects the counter
	// after the call.
	TryConsume(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.QuotaStatus, error)

	// Status reports current usage against the tier limit without consuming.
	Status(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.QuotaStatus, error)
}

// =============================================================================
// Implementation
// =============================================================================

type quotaService struct {
	quotas        store.QuotaStore
	subscriptions store.SubscriptionStore
	logger        *slog.Logger
}

// NewQuotaService creates a new QuotaService.
func NewQuotaService(
	quotas store.QuotaStore,
	subscriptions store.SubscriptionStore,
	logger *slog.Logger,
) QuotaService {
	return &quotaService{
		quotas:        quotas,
		subscriptions: subscriptions,
		logger:        logger,
	}
}

// CheckAndReset returns the counter for the current period.
func (s *quotaService) CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.UsageCounter, error) {
	const op = "quota.check_and_reset"

	if err := validateQuotaArgs(op, userID, feature); err != nil {
		return nil, err
	}

	kind := domain.PeriodKindFor(feature)
	counter, err := s.quotas.CheckAndReset(ctx, userID, feature, kind, domain.PeriodStartFor(kind, now))
	if err != nil {
		return nil, domain.Internal(err, op, "failed to read usage counter")
	}
	return counter, nil
}

// Increment adds to the counter without enforcing any limit.
func (s *quotaService) Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.UsageCounter, error) {
	const op = "quota.increment"

	if err := validateQuotaArgs(op, userID, feature); err != nil {
		return nil, err
	}
	if by <= 0 {
		return nil, domain.Invalid(op, "increment amount must be positive")
	}

	kind := domain.PeriodKindFor(feature)
	counter, err := s.quotas.Increment(ctx, userID, feature, kind, domain.PeriodStartFor(kind, now), by)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to increment usage counter")
	}
	metrics.QuotaIncrementsTotal.WithLabelValues(string(feature)).Inc()
	return counter, nil
}

// TryConsume atomically consumes quota for the user's tier.
func (s *quotaService) TryConsume(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.QuotaStatus, error) {
	const op = "quota.try_consume"

	if err := validateQuotaArgs(op, userID, feature); err != nil {
		return nil, err
	}
	if by <= 0 {
		return nil, domain.Invalid(op, "increment amount must be positive")
	}

	tier, err := s.subscriptions.TierFor(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to look up subscription tier")
	}
	limit := domain.LimitsFor(tier).LimitFor(feature)
	kind := domain.PeriodKindFor(feature)
	periodStart := domain.PeriodStartFor(kind, now)

	// Unlimited tiers consume without a guard; the counter still counts.
	if limit == domain.Unlimited {
		counter, err := s.quotas.Increment(ctx, userID, feature, kind, periodStart, by)
		if err != nil {
			return nil, domain.Internal(err, op, "failed to increment usage counter")
		}
		metrics.QuotaIncrementsTotal.WithLabelValues(string(feature)).Inc()
		return quotaStatus(counter, limit, true, now), nil
	}

	counter, allowed, err := s.quotas.TryIncrement(ctx, userID, feature, kind, periodStart, by, limit)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to consume usage counter")
	}

	if allowed {
		metrics.QuotaIncrementsTotal.WithLabelValues(string(feature)).Inc()
	} else {
		metrics.QuotaDeniedTotal.WithLabelValues(string(feature)).Inc()
		s.logger.Info("quota denied",
			"user_id", userID,
			"feature", feature,
			"tier", tier,
			"used", counter.Used,
			"limit", limit,
		)
	}

	return quotaStatus(counter, limit, allowed, now), nil
}

// Status reports current usage against the tier limit without consuming.
func (s *quotaService) Status(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.QuotaStatus, error) {
	const op = "quota.status"

	counter, err := s.CheckAndReset(ctx, userID, feature, now)
	if err != nil {
		return nil, err
	}

	tier, err := s.subscriptions.TierFor(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to look up subscription tier")
	}
	limit := domain.LimitsFor(tier).LimitFor(feature)

	allowed := limit == domain.Unlimited || counter.Used < limit
	return quotaStatus(counter, limit, allowed, now), nil
}

// quotaStatus builds the structured allow/deny answer for callers.
func quotaStatus(counter *domain.UsageCounter, limit int, allowed bool, now time.Time) *domain.QuotaStatus {
	return &domain.QuotaStatus{
		Feature:   counter.Feature,
		Allowed:   allowed,
		Used:      counter.Used,
		Limit:     limit,
		Remaining: domain.Remaining(limit, counter.Used),
		ResetsAt:  domain.NextPeriodStart(counter.PeriodKind, now),
	}
}

func validateQuotaArgs(op string, userID uuid.UUID, feature domain.Feature) error {
	if userID == uuid.Nil {
		return domain.Invalid(op, "user id is required")
	}
	if !feature.IsValid() {
		return domain.Invalid(op, "unknown feature")
	}
	return nil
}
