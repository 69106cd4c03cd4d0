// Package domain contains core business types and interfaces.
//
// This file defines per-feature usage counters with daily/weekly reset
// semantics. Period boundaries are computed from a caller-supplied clock so
// the reset logic stays testable.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Feature identifies a quota-gated feature.
type Feature string

const (
	FeatureFlashcards Feature = "flashcards"
	FeatureMockExams  Feature = "mock_exams"
	FeatureStudyPlans Feature = "study_plans"
)

// IsValid returns true if the feature is one of the known values.
func (f Feature) IsValid() bool {
	switch f {
	case FeatureFlashcards, FeatureMockExams, FeatureStudyPlans:
		return true
	}
	return false
}

// PeriodKind is the reset cadence of a usage counter.
type PeriodKind string

const (
	PeriodDaily  PeriodKind = "daily"
	PeriodWeekly PeriodKind = "weekly"
)

// PeriodKindFor returns the reset cadence for a feature.
func PeriodKindFor(feature Feature) PeriodKind {
	if feature == FeatureMockExams {
		return PeriodWeekly
	}
	return PeriodDaily
}

// UsageCounter is the per-user, per-feature consumption state for the
// current period. Used resets to zero exactly once when the date crosses
// the period boundary.
type UsageCounter struct {
	UserID      uuid.UUID  `db:"user_id"`
	Feature     Feature    `db:"feature"`
	PeriodKind  PeriodKind `db:"period_kind"`
	PeriodStart time.Time  `db:"period_start"`
	Used        int        `db:"used"`
}

// PeriodStartFor returns the start of the period containing now, in UTC.
// Daily periods start at midnight; weekly periods start on Monday.
func PeriodStartFor(kind PeriodKind, now time.Time) time.Time {
	now = now.UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if kind == PeriodDaily {
		return day
	}
	// Weekly: roll back to Monday.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

// NextPeriodStart returns when the period containing now rolls over.
func NextPeriodStart(kind PeriodKind, now time.Time) time.Time {
	start := PeriodStartFor(kind, now)
	if kind == PeriodDaily {
		return start.AddDate(0, 0, 1)
	}
	return start.AddDate(0, 0, 7)
}

// Remaining returns how much of the limit is left, never negative.
// An unlimited limit reports Unlimited.
func Remaining(limit, used int) int {
	if limit == Unlimited {
		return Unlimited
	}
	if used >= limit {
		return 0
	}
	return limit - used
}

// QuotaStatus is the structured answer to "is this action allowed now, and
// how much remains."
type QuotaStatus struct {
	Feature   Feature   `json:"feature"`
	Allowed   bool      `json:"allowed"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"` // Unlimited (-1) when the tier is uncapped
	Remaining int       `json:"remaining"`
	ResetsAt  time.Time `json:"resets_at"`
}
