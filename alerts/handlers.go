// Copyright 2025 APImetrics
// SPDX-License-Identifier: Apache-2.0

package alerts

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// Handler provides HTTP handlers for alert configuration CRUD.
// Identity arrives in the X-User-ID header, resolved by the outer
// auth layer.
type Handler struct {
	repo      Repository
	evaluator *Evaluator
}

// NewHandler creates a new alerts handler
func NewHandler(repo Repository, evaluator *Evaluator) *Handler {
	return &Handler{repo: repo, evaluator: evaluator}
}

// RegisterRoutes registers alert routes with a gorilla/mux router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/alerts", h.CreateAlert).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/alerts", h.ListAlerts).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/alerts/evaluate", h.EvaluateNow).Methods("POST", "OPTIONS")
	r.HandleFunc("/v1/alerts/{id}", h.GetAlert).Methods("GET", "OPTIONS")
	r.HandleFunc("/v1/alerts/{id}", h.UpdateAlert).Methods("PUT", "OPTIONS")
	r.HandleFunc("/v1/alerts/{id}", h.DeleteAlert).Methods("DELETE", "OPTIONS")
}

// AlertRequest is the request body for creating or updating an alert
type AlertRequest struct {
	Name      string    `json:"name"`
	Type      AlertType `json:"type"`
	Threshold float64   `json:"threshold"`
	Channels  []Channel `json:"channels"`
	Enabled   *bool     `json:"enabled,omitempty"`
}

// CreateAlert handles POST /v1/alerts
func (h *Handler) CreateAlert(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User identity required", http.StatusUnauthorized)
		return
	}

	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	alert := &Alert{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      req.Name,
		Type:      req.Type,
		Threshold: req.Threshold,
		Channels:  req.Channels,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.Enabled != nil {
		alert.Enabled = *req.Enabled
	}

	if err := alert.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.CreateAlert(r.Context(), alert); err != nil {
		h.writeError(w, "Failed to create alert", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(alert)
}

// ListAlerts handles GET /v1/alerts
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User identity required", http.StatusUnauthorized)
		return
	}

	alerts, err := h.repo.ListAlerts(r.Context(), userID)
	if err != nil {
		h.writeError(w, "Failed to list alerts", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]interface{}{"alerts": alerts})
}

// GetAlert handles GET /v1/alerts/{id}
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	alert, ok := h.loadOwnedAlert(w, r)
	if !ok {
		return
	}

	h.writeJSON(w, alert)
}

// UpdateAlert handles PUT /v1/alerts/{id}
func (h *Handler) UpdateAlert(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	alert, ok := h.loadOwnedAlert(w, r)
	if !ok {
		return
	}

	var req AlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Name != "" {
		alert.Name = req.Name
	}
	if req.Type != "" {
		alert.Type = req.Type
	}
	if req.Threshold != 0 {
		alert.Threshold = req.Threshold
	}
	if req.Channels != nil {
		alert.Channels = req.Channels
	}
	if req.Enabled != nil {
		alert.Enabled = *req.Enabled
	}

	if err := alert.Validate(); err != nil {
		h.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.repo.UpdateAlert(r.Context(), alert); err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			h.writeError(w, "Alert not found", http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to update alert", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, alert)
}

// DeleteAlert handles DELETE /v1/alerts/{id}
func (h *Handler) DeleteAlert(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	alert, ok := h.loadOwnedAlert(w, r)
	if !ok {
		return
	}

	if err := h.repo.DeleteAlert(r.Context(), alert.ID); err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			h.writeError(w, "Alert not found", http.StatusNotFound)
			return
		}
		h.writeError(w, "Failed to delete alert", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// EvaluateNow handles POST /v1/alerts/evaluate, running an on-demand
// evaluation for the requesting user
func (h *Handler) EvaluateNow(w http.ResponseWriter, r *http.Request) {
	h.setCORSHeaders(w)
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User identity required", http.StatusUnauthorized)
		return
	}

	if err := h.evaluator.EvaluateAlerts(r.Context(), userID); err != nil {
		h.writeError(w, "Evaluation failed", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, map[string]bool{"evaluated": true})
}

// loadOwnedAlert fetches the path alert and enforces ownership
func (h *Handler) loadOwnedAlert(w http.ResponseWriter, r *http.Request) (*Alert, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		h.writeError(w, "User identity required", http.StatusUnauthorized)
		return nil, false
	}

	alertID := mux.Vars(r)["id"]
	if alertID == "" {
		h.writeError(w, "Alert ID required", http.StatusBadRequest)
		return nil, false
	}

	alert, err := h.repo.GetAlert(r.Context(), alertID)
	if err != nil {
		if errors.Is(err, ErrAlertNotFound) {
			h.writeError(w, "Alert not found", http.StatusNotFound)
			return nil, false
		}
		h.writeError(w, "Failed to load alert", http.StatusInternalServerError)
		return nil, false
	}

	if alert.UserID != userID {
		h.writeError(w, "Alert not found", http.StatusNotFound)
		return nil, false
	}

	return alert, true
}

// Helper functions

// setCORSHeaders sets CORS headers on all responses (not just OPTIONS)
func (h *Handler) setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-User-ID, Authorization")
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
