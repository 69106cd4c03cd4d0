// Package events delivers engine outcomes to notification collaborators.
// Delivery is best-effort: a failing handler is logged and never fails the
// operation that produced the event.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of progression event.
type Type string

const (
	TypeLevelUp       Type = "level_up"
	TypeBadgeUnlocked Type = "badge_unlocked"
)

// Event is one progression outcome for the notification collaborator.
type Event struct {
	ID         uuid.UUID
	Type       Type
	UserID     uuid.UUID
	OccurredAt time.Time

	// NewLevel is set for level_up events.
	NewLevel int
	// BadgeID and BadgeName are set for badge_unlocked events.
	BadgeID   string
	BadgeName string
}

// NewLevelUp builds a level_up event.
func NewLevelUp(userID uuid.UUID, newLevel int, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeLevelUp,
		UserID:     userID,
		OccurredAt: at,
		NewLevel:   newLevel,
	}
}

// NewBadgeUnlocked builds a badge_unlocked event.
func NewBadgeUnlocked(userID uuid.UUID, badgeID, badgeName string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Type:       TypeBadgeUnlocked,
		UserID:     userID,
		OccurredAt: at,
		BadgeID:    badgeID,
		BadgeName:  badgeName,
	}
}

// Handler receives events. Implemented by the notification collaborator.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
