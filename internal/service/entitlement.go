// Package service contains the business logic layer.
//
// This file implements the entitlement resolver: a stateless façade over
// the tier policy table and the usage quota tracker. Every answer is
// deterministic given a tier and current counters, and unknown tiers fail
// closed to the free tier.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
)

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService answers feature-access questions for calling code.
type EntitlementService interface {
	// LimitsFor returns the limits table entry for a tier, failing closed
	// for unknown tiers.
	LimitsFor(tier domain.SubscriptionTier) domain.TierLimits

	// HasFeature reports whether a tier grants a boolean feature flag.
	HasFeature(tier domain.SubscriptionTier, flag domain.FeatureFlag) bool

	// CanPerformAction reports whether a tier permits one more use of a
	// quota-gated feature given the current usage count.
	CanPerformAction(tier domain.SubscriptionTier, feature domain.Feature, currentUsage int) bool

	// QuestionBankVisibleCount returns how many questions of a bank the
	// tier may see.
	QuestionBankVisibleCount(tier domain.SubscriptionTier, totalQuestions int) int

	// CheckAccess combines the tier lookup with fresh counter state into a
	// structured allow/deny answer, without consuming quota.
	CheckAccess(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.QuotaStatus, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	quotas QuotaService
	logger *slog.Logger
}

// NewEntitlementService creates a new EntitlementService.
func NewEntitlementService(quotas QuotaService, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		quotas: quotas,
		logger: logger,
	}
}

// LimitsFor returns the limits table entry for a tier.
func (s *entitlementService) LimitsFor(tier domain.SubscriptionTier) domain.TierLimits {
	return domain.LimitsFor(tier)
}

// HasFeature reports whether a tier grants a boolean feature flag.
func (s *entitlementService) HasFeature(tier domain.SubscriptionTier, flag domain.FeatureFlag) bool {
	return domain.LimitsFor(tier).HasFlag(flag)
}

// CanPerformAction reports whether a tier permits one more use of a feature.
func (s *entitlementService) CanPerformAction(tier domain.SubscriptionTier, feature domain.Feature, currentUsage int) bool {
	limit := domain.LimitsFor(tier).LimitFor(feature)
	if limit == domain.Unlimited {
		return true
	}
	return currentUsage < limit
}

// QuestionBankVisibleCount returns how many questions of a bank the tier may see.
func (s *entitlementService) QuestionBankVisibleCount(tier domain.SubscriptionTier, totalQuestions int) int {
	return domain.QuestionBankVisibleCount(tier, totalQuestions)
}

// CheckAccess combines the tier lookup with fresh counter state.
func (s *entitlementService) CheckAccess(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.QuotaStatus, error) {
	return s.quotas.Status(ctx, userID, feature, now)
}
