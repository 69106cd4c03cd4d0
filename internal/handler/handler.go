// Package handler implements the HTTP API surface.
//
// All endpoints speak JSON. User identifiers are path UUIDs; malformed ones
// are rejected before any service call.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/paperpath/engine/internal/domain"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON decodes a request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("", "invalid request body: "+err.Error())
	}
	return nil
}

// pathUserID parses the {id} path segment as a user UUID.
func pathUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		return uuid.Nil, domain.Invalid("", "invalid user id")
	}
	return id, nil
}

// pathFeature parses the {feature} path segment.
func pathFeature(r *http.Request) (domain.Feature, error) {
	feature := domain.Feature(r.PathValue("feature"))
	if !feature.IsValid() {
		return "", domain.Invalid("", "unknown feature")
	}
	return feature, nil
}

// HealthHandler responds to liveness probes.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
