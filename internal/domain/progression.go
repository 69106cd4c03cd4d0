// Package domain contains core business types and interfaces.
//
// This file defines the XP ledger types and the pure level calculator.
// Total XP is derived state: the sum of all ledger entries for a user must
// always equal the stored running total.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the kind of activity that earned XP.
type EventType string

const (
	EventSessionCompleted   EventType = "session_completed"
	EventQuizCompleted      EventType = "quiz_completed"
	EventFlashcardReviewed  EventType = "flashcard_reviewed"
	EventOnboardingComplete EventType = "onboarding_complete"
	EventDailyGoalMet       EventType = "daily_goal_met"

	// Internal credit types. These never update the study streak and never
	// re-trigger badge evaluation within the same call.
	EventLevelUpBonus EventType = "level_up_bonus"
	EventBadgeBonus   EventType = "badge_bonus"
)

// eventXPValues is the fixed XP value table for activity events.
// Internal credit types carry explicit values and are absent on purpose.
var eventXPValues = map[EventType]int{
	EventSessionCompleted:   15,
	EventQuizCompleted:      20,
	EventFlashcardReviewed:  5,
	EventOnboardingComplete: 50,
	EventDailyGoalMet:       10,
}

// LevelUpBonusXP is the fixed credit appended when a user crosses a level
// threshold. The bonus is non-cascading: it never triggers a further bonus
// even if it crosses another threshold itself.
const LevelUpBonusXP = 25

// XPValueFor returns the fixed XP value for an event type. ok is false for
// unknown or internal types, which require an explicit value.
func XPValueFor(eventType EventType) (int, bool) {
	v, ok := eventXPValues[eventType]
	return v, ok
}

// IsStudyEvent reports whether the event type represents actual study
// activity (and therefore advances the study streak).
func (e EventType) IsStudyEvent() bool {
	switch e {
	case EventSessionCompleted, EventQuizCompleted, EventFlashcardReviewed, EventDailyGoalMet:
		return true
	}
	return false
}

// XPEvent is an append-only ledger entry. Immutable once written.
type XPEvent struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	EventType EventType `db:"event_type" json:"event_type"`
	Value     int       `db:"value" json:"value"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProgressionState is the per-user durable progression record. It is owned
// exclusively by this engine and mutated only through the ledger.
type ProgressionState struct {
	UserID        uuid.UUID  `db:"user_id"`
	TotalXP       int        `db:"total_xp"`
	StudyStreak   int        `db:"study_streak"`
	LastStudyDate *time.Time `db:"last_study_date"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

// Level returns the level derived from the current total.
func (p *ProgressionState) Level() int {
	return LevelOf(p.TotalXP)
}

// AwardResult is the outcome of a single XP credit, consumed by the
// notification collaborator.
type AwardResult struct {
	NewTotal  int  `json:"new_total"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
}

// levelThresholds holds the minimum XP for each level, index+1 = level.
// The table intentionally stops at level 5; any XP beyond the last entry
// floors there.
var levelThresholds = [...]int{0, 100, 300, 600, 1200}

// MaxLevel is the highest level the threshold table defines.
const MaxLevel = len(levelThresholds)

// LevelOf returns the level for a total XP value: the highest threshold
// index such that xp >= threshold, 1-indexed, with a floor at level 1.
func LevelOf(xp int) int {
	level := 1
	for i, threshold := range levelThresholds {
		if xp >= threshold {
			level = i + 1
		}
	}
	return level
}

// XPForNextLevel returns the XP threshold for the next level, and ok=false
// when the level is already at the table's ceiling.
func XPForNextLevel(level int) (int, bool) {
	if level < 1 || level >= MaxLevel {
		return 0, false
	}
	return levelThresholds[level], true
}

// ProgressWithinLevel returns how far through the current level the XP total
// is, as a percentage clamped to [0,100]. The clamp holds even if xp sits
// below the level floor.
func ProgressWithinLevel(xp, level int) int {
	if level < 1 {
		level = 1
	}
	if level >= MaxLevel {
		return 100
	}
	floor := levelThresholds[level-1]
	ceil := levelThresholds[level]
	if xp <= floor {
		return 0
	}
	if xp >= ceil {
		return 100
	}
	return (xp - floor) * 100 / (ceil - floor)
}
