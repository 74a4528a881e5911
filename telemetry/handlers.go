// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
)

// Authenticator resolves a bearer API key to a user ID. Key lifecycle
// and storage are outside this package; the ingest surface only needs
// the mapping.
type Authenticator interface {
	UserIDForKey(ctx context.Context, apiKey string) (string, error)
}

// StaticAuthenticator maps API keys to user IDs from configuration.
// Suitable for single-tenant and test deployments.
type StaticAuthenticator map[string]string

// UserIDForKey resolves an API key against the static map
func (a StaticAuthenticator) UserIDForKey(_ context.Context, apiKey string) (string, error) {
	if userID, ok := a[apiKey]; ok {
		return userID, nil
	}
	return "", ErrUnauthorized
}

// Handler provides HTTP handlers for ingestion and analytics reads
type Handler struct {
	service *Service
	repo    Repository
	pricing *PricingTable
	auth    Authenticator
}

// NewHandler creates a new telemetry handler
func NewHandler(service *Service, repo Repository, pricing *PricingTable, auth Authenticator) *Handler {
	return &Handler{service: service, repo: repo, pricing: pricing, auth: auth}
}

// RegisterRoutes registers tracking and analytics routes with a
// gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/track/batch", h.TrackBatch).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/analytics/stats", h.GetDailyStats).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/analytics/calls", h.ListCalls).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/pricing", h.GetPricing).Methods("GET", "OPTIONS")
}

// TrackBatchResponse is the response body for a tracked batch
type TrackBatchResponse struct {
	Success bool `json:"success"`
	Tracked int  `json:"tracked"`
}

// TrackBatch handles POST /v1/track/batch
func (h *Handler) TrackBatch(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, "Invalid or missing API key", http.StatusUnauthorized)
		return
	}

	var batch TrackBatch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	accepted, err := h.service.IngestBatch(r.Context(), userID, batch.Calls)
	if err != nil {
		if errors.Is(err, ErrBatchRejected) {
			h.writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.writeError(w, "Failed to persist batch", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, TrackBatchResponse{Success: true, Tracked: accepted})
}

// GetDailyStats handles GET /v1/analytics/stats?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *Handler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, "Invalid or missing API key", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	to := query.Get("to")
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	from := query.Get("from")
	if from == "" {
		from = time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	}

	stats, err := h.repo.GetDailyStats(r.Context(), userID, from, to)
	if err != nil {
		h.writeError(w, "Failed to load stats", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"stats": stats})
}

// ListCalls handles GET /v1/analytics/calls
func (h *Handler) ListCalls(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID, err := h.authenticate(r)
	if err != nil {
		h.writeError(w, "Invalid or missing API key", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	opts := CallQueryOptions{
		Provider: query.Get("provider"),
		Model:    query.Get("model"),
		Status:   CallStatus(query.Get("status")),
	}
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}
	if v := query.Get("since"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			opts.SinceMs = n
		}
	}

	calls, err := h.repo.ListCalls(r.Context(), userID, opts)
	if err != nil {
		h.writeError(w, "Failed to load calls", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"calls": calls})
}

// GetPricing handles GET /v1/pricing
func (h *Handler) GetPricing(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	h.writeJSON(w, map[string]interface{}{"providers": h.pricing.Snapshot()})
}

// authenticate extracts the bearer token and resolves it to a user ID
func (h *Handler) authenticate(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" || token == header {
		return "", ErrUnauthorized
	}
	return h.auth.UserIDForKey(r.Context(), token)
}

// Helper functions

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (h *Handler) writeJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   http.StatusText(status),
		"message": message,
	})
}
