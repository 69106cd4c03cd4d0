package domain

import "github.com/google/uuid"

// ActivityEvent is the inbound trigger from the session-completion and
// quiz-submission collaborators. Accepted events are fire-and-forget from
// the caller's perspective.
type ActivityEvent struct {
	UserID       uuid.UUID     `json:"user_id" validate:"required"`
	EventType    EventType     `json:"event_type" validate:"required"`
	SessionStats *SessionStats `json:"session_stats,omitempty"`
}
