package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/service"
)

// ActivityHandler ingests activity events from the session-completion and
// quiz-submission collaborators.
type ActivityHandler struct {
	activity service.ActivityService
	validate *validator.Validate
	logger   *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(activity service.ActivityService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRoutes registers activity routes on the mux.
func (h *ActivityHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/activity", h.RecordActivity)
}

type recordActivityRequest struct {
	UserID       uuid.UUID            `json:"user_id" validate:"required"`
	EventType    domain.EventType     `json:"event_type" validate:"required"`
	SessionStats *domain.SessionStats `json:"session_stats,omitempty"`
}

// RecordActivity handles POST /v1/activity.
func (h *ActivityHandler) RecordActivity(w http.ResponseWriter, r *http.Request) {
	var req recordActivityRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("activity.record", "user_id and event_type are required"))
		return
	}
	if req.SessionStats != nil {
		if err := h.validate.Struct(req.SessionStats); err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("activity.record", "invalid session stats"))
			return
		}
	}

	result, err := h.activity.RecordActivity(r.Context(), domain.ActivityEvent{
		UserID:       req.UserID,
		EventType:    req.EventType,
		SessionStats: req.SessionStats,
	}, time.Now().UTC())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
