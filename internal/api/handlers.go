package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

// Rescheduler recomputes one user's schedule on demand.
type Rescheduler interface {
	Reschedule(ctx context.Context, userID string) error
}

// Nudger runs the nudge pipeline for one user on demand.
type Nudger interface {
	OrchestrateNudge(ctx context.Context, userID string) (int, error)
}

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	engine  Rescheduler
	nudger  Nudger
	apiKey  string
	version string
}

// NewHandler creates a new Handler with store.Store interface
func NewHandler(s store.Store, engine Rescheduler, nudger Nudger, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		engine:  engine,
		nudger:  nudger,
		apiKey:  apiKey,
		version: version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		UserCount:   stats.UserCount,
		TaskCount:   stats.TaskCount,
		ActiveTasks: stats.ActiveTasks,
	})
}

// CreateUserRequest is the payload for POST /api/v1/users.
type CreateUserRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CreateUser handles POST /api/v1/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("email", req.Email))
	c.Add(validation.ValidateEmail("email", req.Email))
	c.Add(validation.ValidateRequired("name", req.Name))
	c.Add(validation.ValidateMaxLength("name", req.Name, 200))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	user, err := h.store.CreateUser(r.Context(), req.Email, req.Name, req.Phone)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

// GetUser handles GET /api/v1/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateUserRequest is the payload for PATCH /api/v1/users/{id}.
type UpdateUserRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

// UpdateUser handles PATCH /api/v1/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if req.Name != nil {
		var c validation.Collector
		c.Add(validation.ValidateRequired("name", *req.Name))
		c.Add(validation.ValidateMaxLength("name", *req.Name, 200))
		if c.HasErrors() {
			WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
			return
		}
	}

	user, err := h.store.UpdateUser(r.Context(), chi.URLParam(r, "id"), req.Name, req.Active)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// GetPreferences handles GET /api/v1/users/{id}/preferences
func (h *Handler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	prefs, err := h.store.GetPreferences(r.Context(), userID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// UpdatePreferencesRequest is the payload for PUT /api/v1/users/{id}/preferences.
type UpdatePreferencesRequest struct {
	UseEmail      bool `json:"use_email"`
	UseSMS        bool `json:"use_sms"`
	QuietFromHour int  `json:"quiet_from_hour"`
	QuietToHour   int  `json:"quiet_to_hour"`
}

// UpdatePreferences handles PUT /api/v1/users/{id}/preferences
func (h *Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req UpdatePreferencesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateHour("quiet_from_hour", req.QuietFromHour))
	c.Add(validation.ValidateHour("quiet_to_hour", req.QuietToHour))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	prefs := types.NotificationPrefs{
		UserID:        userID,
		UseEmail:      req.UseEmail,
		UseSMS:        req.UseSMS,
		QuietFromHour: req.QuietFromHour,
		QuietToHour:   req.QuietToHour,
	}
	if err := h.store.UpdatePreferences(r.Context(), prefs); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// ListNotifications handles GET /api/v1/users/{id}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	attempts, err := h.store.ListNotificationAttempts(r.Context(), userID, 0)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

// TriggerReschedule handles POST /api/v1/users/{id}/reschedule
func (h *Handler) TriggerReschedule(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	if err := h.engine.Reschedule(r.Context(), userID); err != nil {
		slog.Error("manual reschedule failed", "user_id", userID, "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rescheduled"})
}

// TriggerNudge handles POST /api/v1/users/{id}/nudge
func (h *Handler) TriggerNudge(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	delivered, err := h.nudger.OrchestrateNudge(r.Context(), userID)
	if err != nil {
		slog.Error("manual nudge failed", "user_id", userID, "error", err)
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"delivered": delivered})
}
