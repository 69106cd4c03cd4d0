package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperpath/engine/internal/domain"
)

// stubQuotaService returns a canned status for every call.
type stubQuotaService struct {
	status *domain.QuotaStatus
}

func (s *stubQuotaService) CheckAndReset(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.UsageCounter, error) {
	return &domain.UsageCounter{Feature: feature, Used: s.status.Used}, nil
}

func (s *stubQuotaService) Increment(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.UsageCounter, error) {
	return &domain.UsageCounter{Feature: feature, Used: s.status.Used}, nil
}

func (s *stubQuotaService) TryConsume(ctx context.Context, userID uuid.UUID, feature domain.Feature, by int, now time.Time) (*domain.QuotaStatus, error) {
	return s.status, nil
}

func (s *stubQuotaService) Status(ctx context.Context, userID uuid.UUID, feature domain.Feature, now time.Time) (*domain.QuotaStatus, error) {
	return s.status, nil
}

func newTestMux(status *domain.QuotaStatus) *http.ServeMux {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	quotas := &stubQuotaService{status: status}

	mux := http.NewServeMux()
	NewAccessHandler(nil, quotas, logger).RegisterRoutes(mux)
	return mux
}

func TestConsumeAccess_Allowed(t *testing.T) {
	userID := uuid.New()
	resetsAt := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	mux := newTestMux(&domain.QuotaStatus{
		Feature: domain.FeatureFlashcards, Allowed: true,
		Used: 5, Limit: 20, Remaining: 15, ResetsAt: resetsAt,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+userID.String()+"/access/flashcards/consume", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var got domain.QuotaStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.True(t, got.Allowed)
	assert.Equal(t, 5, got.Used)
	assert.Equal(t, 15, got.Remaining)
}

// A denied consume surfaces as a quota error: 429 with the counter state
// attached so the client can render remaining usage and the reset time.
func TestConsumeAccess_Denied(t *testing.T) {
	userID := uuid.New()
	resetsAt := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	mux := newTestMux(&domain.QuotaStatus{
		Feature: domain.FeatureFlashcards, Allowed: false,
		Used: 20, Limit: 20, Remaining: 0, ResetsAt: resetsAt,
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/users/"+userID.String()+"/access/flashcards/consume", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	var got struct {
		Error struct {
			Code      string    `json:"code"`
			Message   string    `json:"message"`
			Feature   string    `json:"feature"`
			Used      int       `json:"used"`
			Limit     int       `json:"limit"`
			Remaining int       `json:"remaining"`
			ResetsAt  time.Time `json:"resets_at"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.EQUOTA, got.Error.Code)
	assert.Equal(t, string(domain.FeatureFlashcards), got.Error.Feature)
	assert.Equal(t, 20, got.Error.Used)
	assert.Equal(t, 20, got.Error.Limit)
	assert.Equal(t, 0, got.Error.Remaining)
	assert.True(t, resetsAt.Equal(got.Error.ResetsAt))
	assert.NotEmpty(t, got.Error.Message)
}

func TestConsumeAccess_BadPathParams(t *testing.T) {
	mux := newTestMux(&domain.QuotaStatus{})

	tests := []struct {
		name string
		path string
	}{
		{name: "malformed user id", path: "/v1/users/not-a-uuid/access/flashcards/consume"},
		{name: "unknown feature", path: "/v1/users/" + uuid.NewString() + "/access/teleport/consume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			rec := httptest.NewRecorder()

			mux.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// The server registers NotFoundResponse as the "/" fallback so unmatched
// paths answer in JSON like every other endpoint.
func TestNotFoundResponse(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundResponse(w, r, logger)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/nonexistent", nil)
	rec := httptest.NewRecorder()

	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, domain.ENOTFOUND, got.Error.Code)
}

func TestErrorCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{code: domain.EINVALID, want: http.StatusBadRequest},
		{code: domain.EPAYMENT, want: http.StatusPaymentRequired},
		{code: domain.ENOTFOUND, want: http.StatusNotFound},
		{code: domain.ECONFLICT, want: http.StatusConflict},
		{code: domain.EQUOTA, want: http.StatusTooManyRequests},
		{code: domain.EINTERNAL, want: http.StatusInternalServerError},
		{code: "unknown", want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeToHTTPStatus(tt.code))
		})
	}
}
