package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/paperpath/engine/internal/domain"
	"github.com/paperpath/engine/internal/service"
)

// AccessHandler answers feature-access questions and consumes quota.
type AccessHandler struct {
	entitlements service.EntitlementService
	quotas       service.QuotaService
	logger       *slog.Logger
}

// NewAccessHandler creates a new AccessHandler.
func NewAccessHandler(
	entitlements service.EntitlementService,
	quotas service.QuotaService,
	logger *slog.Logger,
) *AccessHandler {
	return &AccessHandler{
		entitlements: entitlements,
		quotas:       quotas,
		logger:       logger,
	}
}

// RegisterRoutes registers access routes on the mux.
func (h *AccessHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/users/{id}/access/{feature}", h.CheckAccess)
	mux.HandleFunc("POST /v1/users/{id}/access/{feature}/consume", h.ConsumeAccess)
}

// CheckAccess handles GET /v1/users/{id}/access/{feature}. It reports
// current usage against the tier limit without consuming quota.
func (h *AccessHandler) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	feature, err := pathFeature(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status, err := h.entitlements.CheckAccess(r.Context(), userID, feature, time.Now().UTC())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

// ConsumeAccess handles POST /v1/users/{id}/access/{feature}/consume. The
// consume is atomic against concurrent requests; a denial surfaces as a
// quota error, 429 with the counter state so the client can show when the
// quota resets.
func (h *AccessHandler) ConsumeAccess(w http.ResponseWriter, r *http.Request) {
	userID, err := pathUserID(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	feature, err := pathFeature(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	status, err := h.quotas.TryConsume(r.Context(), userID, feature, 1, time.Now().UTC())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if !status.Allowed {
		ErrorResponse(w, r, h.logger, domain.QuotaExceeded("access.consume", feature, status.Used, status.Limit, status.ResetsAt))
		return
	}
	writeJSON(w, http.StatusOK, status)
}
