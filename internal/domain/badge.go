// Package domain contains core business types and interfaces.
//
// This file defines achievement badges: criteria definitions, award records,
// and the activity aggregates the rule engine evaluates against.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CriteriaType identifies what aggregate a badge criterion is checked against.
type CriteriaType string

const (
	CriteriaStreak           CriteriaType = "streak"
	CriteriaQuestionsCorrect CriteriaType = "questions_correct"
	CriteriaUnitAccuracy     CriteriaType = "unit_accuracy"
	CriteriaPerfectQuiz      CriteriaType = "perfect_quiz"
	CriteriaXPTotal          CriteriaType = "xp_total"
	CriteriaOnboarding       CriteriaType = "onboarding"
)

// UnitAccuracyMinAttempts is the minimum attempted questions a syllabus unit
// needs before its accuracy counts toward a badge. The floor prevents
// small-sample false positives and is a hard rule, not a tunable.
const UnitAccuracyMinAttempts = 10

// BadgeDefinition describes one unlockable badge.
type BadgeDefinition struct {
	ID            string       `db:"id"`
	Name          string       `db:"name"`
	Description   string       `db:"description"`
	CriteriaType  CriteriaType `db:"criteria_type"`
	CriteriaValue int          `db:"criteria_value"`
	BonusXP       int          `db:"bonus_xp"` // 0 = no bonus credit on unlock
}

// BadgeAward records a badge unlock. Unique per (user, badge), enforced by
// the storage layer because evaluation can race.
type BadgeAward struct {
	UserID    uuid.UUID `db:"user_id"`
	BadgeID   string    `db:"badge_id"`
	AwardedAt time.Time `db:"awarded_at"`
}

// BadgeTrigger carries the context of the activity that prompted an
// evaluation pass.
type BadgeTrigger struct {
	NewXPTotal int
	EventType  EventType
}

// SessionStats summarizes a single completed session or quiz, as reported by
// the quiz-submission collaborator.
type SessionStats struct {
	Unit           string `json:"unit" validate:"required"`
	TotalQuestions int    `json:"total_questions" validate:"gte=0"`
	CorrectAnswers int    `json:"correct_answers" validate:"gte=0"`
}

// IsPerfect reports whether every question in a non-empty session was
// answered correctly.
func (s SessionStats) IsPerfect() bool {
	return s.TotalQuestions > 0 && s.CorrectAnswers == s.TotalQuestions
}

// UnitAccuracy is the per-syllabus-unit aggregate used by unit_accuracy
// criteria.
type UnitAccuracy struct {
	Unit      string `db:"unit"`
	Attempted int    `db:"attempted"`
	Correct   int    `db:"correct"`
}

// AccuracyPercent returns the unit's accuracy in whole percent, 0 when
// nothing was attempted.
func (u UnitAccuracy) AccuracyPercent() int {
	if u.Attempted == 0 {
		return 0
	}
	return u.Correct * 100 / u.Attempted
}

// ActivityStats aggregates everything the badge rule engine needs about a
// user's history.
type ActivityStats struct {
	TotalCorrect   int
	UnitAccuracy   []UnitAccuracy
	HasPerfectQuiz bool
}

// MeetsCriteria evaluates one badge definition against the user's current
// aggregates. Onboarding badges fire only on the matching event type.
func MeetsCriteria(def BadgeDefinition, state *ProgressionState, stats ActivityStats, trigger BadgeTrigger) bool {
	switch def.CriteriaType {
	case CriteriaStreak:
		return state.StudyStreak >= def.CriteriaValue
	case CriteriaQuestionsCorrect:
		return stats.TotalCorrect >= def.CriteriaValue
	case CriteriaUnitAccuracy:
		for _, unit := range stats.UnitAccuracy {
			if unit.Attempted >= UnitAccuracyMinAttempts && unit.AccuracyPercent() >= def.CriteriaValue {
				return true
			}
		}
		return false
	case CriteriaPerfectQuiz:
		return stats.HasPerfectQuiz
	case CriteriaXPTotal:
		return state.TotalXP >= def.CriteriaValue
	case CriteriaOnboarding:
		return trigger.EventType == EventOnboardingComplete
	}
	return false
}
