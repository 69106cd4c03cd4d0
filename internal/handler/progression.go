package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/service"
)

// ProgressionHandler serves progression snapshots and badge listings.
type ProgressionHandler struct {
	progression service.ProgressionService
	badges      service.BadgeService
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewProgressionHandler creates a new ProgressionHandler.
func NewProgressionHandler(
	progression service.ProgressionService,
	badges service.BadgeService,
	logger *slog.Logger,
) *ProgressionHandler {
	return &ProgressionHandler{
		progression: progression,
		badges:      badges,
		validate:    validator.New(),
		logger:      logger,
	}
}

// RegisterRoutes registers progression routes on the mux.
func (h *ProgressionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/users", h.InitUser)
	mux.HandleFunc("GET /v1/users/{id}/progression", h.GetProgression)
	mux.HandleFunc("GET /v1/users/{id}/history", h.GetHistory)
	mux.HandleFunc("GET /v1/users/{id}/badges", h.ListBadges)
}

type initUserRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// InitUser handles POST /v1/users. Called at account creation; repeat calls
// for the same user are no-ops.
func (h *ProgressionHandler) InitUser(w http.ResponseWriter, r *http.Request) {
	var req initUserRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid("progression.init_user", "user_id is required"))
		return
	}

	if err := h.progression.InitUser(r.Context(), req.UserID); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetProgression handles GET /v1/users/{id}/progression.
func (h *ProgressionHandler) GetProgression(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	snapshot, err := h.progression.GetProgression(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// GetHistory handles GET /v1/users/{id}/history. It returns the user's
// recent ledger entries, newest first; ?limit= caps the page size.
func (h *ProgressionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, domain.Invalid("progression.history", "limit must be an integer"))
			return
		}
	}

	entries, err := h.progression.History(r.Context(), userID, limit)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": entries,
	})
}

// ListBadges handles GET /v1/users/{id}/badges.
func (h *ProgressionHandler) ListBadges(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	awards, err := h.badges.ListUnlocked(r.Context(), userID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"badges": awards,
	})
}
