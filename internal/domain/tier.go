// Package domain contains core business types and interfaces.
//
// This file defines subscription tiers and the static limits table that
// gates access to premium features.
package domain

// SubscriptionTier represents the pricing tier of a subscription.
type SubscriptionTier string

const (
	SubscriptionTierFree     SubscriptionTier = "free"
	SubscriptionTierPerPaper SubscriptionTier = "per_paper"
	SubscriptionTierPro      SubscriptionTier = "pro"
	SubscriptionTierElite    SubscriptionTier = "elite"
)

// IsValid returns true if the tier is one of the known values.
func (t SubscriptionTier) IsValid() bool {
	switch t {
	case SubscriptionTierFree, SubscriptionTierPerPaper, SubscriptionTierPro, SubscriptionTierElite:
		return true
	}
	return false
}

// Unlimited marks a numeric limit as uncapped.
const Unlimited = -1

// TierLimits defines the per-feature limits and flags for a subscription tier.
// The table is read-only at runtime.
type TierLimits struct {
	DailyFlashcards     int  // Flashcard reviews per day
	MocksPerWeek        int  // Mock exams per week
	DailyStudyPlans     int  // AI study plan generations per day
	QuestionBankPercent int  // Percentage of each question bank visible (0-100)
	ExamWeekMode        bool // Intensive revision scheduling
	MultiPaperDashboard bool // Cross-paper progress dashboard
}

// tierLimits maps subscription tiers to their limits. Loaded once, never
// mutated at runtime.
var tierLimits = map[SubscriptionTier]TierLimits{
	SubscriptionTierFree: {
		DailyFlashcards:     20,
		MocksPerWeek:        1,
		DailyStudyPlans:     1,
		QuestionBankPercent: 20,
	},
	SubscriptionTierPerPaper: {
		DailyFlashcards:     50,
		MocksPerWeek:        3,
		DailyStudyPlans:     3,
		QuestionBankPercent: 100,
	},
	SubscriptionTierPro: {
		DailyFlashcards:     Unlimited,
		MocksPerWeek:        10,
		DailyStudyPlans:     10,
		QuestionBankPercent: 100,
		ExamWeekMode:        true,
	},
	SubscriptionTierElite: {
		DailyFlashcards:     Unlimited,
		MocksPerWeek:        Unlimited,
		DailyStudyPlans:     Unlimited,
		QuestionBankPercent: 100,
		ExamWeekMode:        true,
		MultiPaperDashboard: true,
	},
}

// LimitsFor returns the limits for a tier. Unknown tiers fail closed to the
// free tier so a stale or missing tier lookup never grants extra access.
func LimitsFor(tier SubscriptionTier) TierLimits {
	if limits, ok := tierLimits[tier]; ok {
		return limits
	}
	return tierLimits[SubscriptionTierFree]
}

// FeatureFlag names a boolean capability on TierLimits.
type FeatureFlag string

const (
	FlagExamWeekMode        FeatureFlag = "exam_week_mode"
	FlagMultiPaperDashboard FeatureFlag = "multi_paper_dashboard"
)

// HasFlag reports whether the limits grant the named flag. Unknown flags
// fail closed.
func (l TierLimits) HasFlag(flag FeatureFlag) bool {
	switch flag {
	case FlagExamWeekMode:
		return l.ExamWeekMode
	case FlagMultiPaperDashboard:
		return l.MultiPaperDashboard
	}
	return false
}

// LimitFor returns the numeric limit for a quota-gated feature. Unknown
// features fail closed to zero.
func (l TierLimits) LimitFor(feature Feature) int {
	switch feature {
	case FeatureFlashcards:
		return l.DailyFlashcards
	case FeatureMockExams:
		return l.MocksPerWeek
	case FeatureStudyPlans:
		return l.DailyStudyPlans
	}
	return 0
}

// QuestionBankVisibleCount returns how many questions of a bank the tier may
// see: the floor of the tier's percentage cap applied to the bank size.
func QuestionBankVisibleCount(tier SubscriptionTier, totalQuestions int) int {
	if totalQuestions <= 0 {
		return 0
	}
	limits := LimitsFor(tier)
	return totalQuestions * limits.QuestionBankPercent / 100
}
