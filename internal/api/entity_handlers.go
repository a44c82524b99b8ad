package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/cadence/internal/store"
	"github.com/hyperengineering/cadence/internal/types"
	"github.com/hyperengineering/cadence/internal/validation"
)

// CreateTaskRequest is the payload for POST /api/v1/tasks.
type CreateTaskRequest struct {
	UserID         string     `json:"user_id"`
	GoalID         string     `json:"goal_id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Priority       int        `json:"priority"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	EstimatedHours float64    `json:"estimated_hours"`
	EnergyLevel    int        `json:"energy_level"`
	FocusMinutes   int        `json:"focus_minutes"`
	Dependencies   []string   `json:"dependencies"`
}

// CreateTask handles POST /api/v1/tasks
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateULID("user_id", req.UserID))
	c.Add(validation.ValidateRequired("title", req.Title))
	c.Add(validation.ValidateMaxLength("title", req.Title, 500))
	if req.Priority != 0 {
		c.Add(validation.ValidatePriority("priority", req.Priority))
	}
	c.Add(validation.ValidateNonNegative("estimated_hours", req.EstimatedHours))
	for _, dep := range req.Dependencies {
		c.Add(validation.ValidateULID("dependencies", dep))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	task := types.Task{
		UserID:         req.UserID,
		GoalID:         req.GoalID,
		Title:          req.Title,
		Description:    req.Description,
		Priority:       types.TaskPriority(req.Priority),
		EstimatedHours: req.EstimatedHours,
		EnergyLevel:    req.EnergyLevel,
		FocusMinutes:   req.FocusMinutes,
		Dependencies:   req.Dependencies,
		EndTime:        req.EndTime,
	}
	if req.StartTime != nil {
		task.StartTime = *req.StartTime
	}

	created, err := h.store.CreateTask(r.Context(), task)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.store.GetTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// UpdateTaskRequest is the payload for PATCH /api/v1/tasks/{id}.
type UpdateTaskRequest struct {
	Title          *string    `json:"title"`
	Description    *string    `json:"description"`
	Status         *string    `json:"status"`
	Priority       *int       `json:"priority"`
	StartTime      *time.Time `json:"start_time"`
	EndTime        *time.Time `json:"end_time"`
	EstimatedHours *float64   `json:"estimated_hours"`
	ActualHours    *float64   `json:"actual_hours"`
	EnergyLevel    *int       `json:"energy_level"`
	FocusMinutes   *int       `json:"focus_minutes"`
	Dependencies   *[]string  `json:"dependencies"`
}

// UpdateTask handles PATCH /api/v1/tasks/{id}
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	patch := store.TaskPatch{
		Title:          req.Title,
		Description:    req.Description,
		StartTime:      req.StartTime,
		EndTime:        req.EndTime,
		EstimatedHours: req.EstimatedHours,
		ActualHours:    req.ActualHours,
		EnergyLevel:    req.EnergyLevel,
		FocusMinutes:   req.FocusMinutes,
		Dependencies:   req.Dependencies,
	}
	if req.Title != nil {
		c.Add(validation.ValidateRequired("title", *req.Title))
		c.Add(validation.ValidateMaxLength("title", *req.Title, 500))
	}
	if req.Status != nil {
		status := types.TaskStatus(*req.Status)
		if !status.Valid() {
			c.Add(&validation.ValidationError{Field: "status", Message: "unknown task status"})
		}
		patch.Status = &status
	}
	if req.Priority != nil {
		c.Add(validation.ValidatePriority("priority", *req.Priority))
		priority := types.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	task, err := h.store.UpdateTask(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// DeleteTask handles DELETE /api/v1/tasks/{id}. Tasks are cancelled, never
// removed, so the audit trail and goal progress history survive.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := h.store.CancelTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListUserTasks handles GET /api/v1/users/{id}/tasks
func (h *Handler) ListUserTasks(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	activeOnly := r.URL.Query().Get("active") == "true"
	tasks, err := h.store.GetTasksForUser(r.Context(), userID, activeOnly)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// CreateGoalRequest is the payload for POST /api/v1/goals.
type CreateGoalRequest struct {
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    int        `json:"priority"`
	TargetDate  *time.Time `json:"target_date"`
}

// CreateGoal handles POST /api/v1/goals
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateULID("user_id", req.UserID))
	c.Add(validation.ValidateRequired("title", req.Title))
	c.Add(validation.ValidateMaxLength("title", req.Title, 500))
	if req.Priority != 0 {
		c.Add(validation.ValidatePriority("priority", req.Priority))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	created, err := h.store.CreateGoal(r.Context(), types.Goal{
		UserID:      req.UserID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    types.TaskPriority(req.Priority),
		TargetDate:  req.TargetDate,
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetGoal handles GET /api/v1/goals/{id}
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.store.GetGoal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// UpdateGoalRequest is the payload for PATCH /api/v1/goals/{id}.
type UpdateGoalRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Status      *string    `json:"status"`
	Priority    *int       `json:"priority"`
	TargetDate  *time.Time `json:"target_date"`
}

// UpdateGoal handles PATCH /api/v1/goals/{id}
func (h *Handler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var req UpdateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	patch := store.GoalPatch{
		Title:       req.Title,
		Description: req.Description,
		TargetDate:  req.TargetDate,
	}
	if req.Status != nil {
		status := types.GoalStatus(*req.Status)
		if !status.Valid() {
			c.Add(&validation.ValidationError{Field: "status", Message: "unknown goal status"})
		}
		patch.Status = &status
	}
	if req.Priority != nil {
		c.Add(validation.ValidatePriority("priority", *req.Priority))
		priority := types.TaskPriority(*req.Priority)
		patch.Priority = &priority
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	goal, err := h.store.UpdateGoal(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}

// CreateHabitRequest is the payload for POST /api/v1/habits.
type CreateHabitRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Frequency   string `json:"frequency"`
	TargetCount int    `json:"target_count"`
}

// CreateHabit handles POST /api/v1/habits
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req CreateHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateULID("user_id", req.UserID))
	c.Add(validation.ValidateRequired("name", req.Name))
	c.Add(validation.ValidateMaxLength("name", req.Name, 200))
	freq := types.HabitFrequency(req.Frequency)
	if req.Frequency == "" {
		freq = types.FrequencyDaily
	} else if freq != types.FrequencyDaily && freq != types.FrequencyWeekly {
		c.Add(&validation.ValidationError{Field: "frequency", Message: "must be daily or weekly"})
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.UserID); err != nil {
		MapStoreError(w, r, err)
		return
	}

	created, err := h.store.CreateHabit(r.Context(), types.Habit{
		UserID:      req.UserID,
		Name:        req.Name,
		Description: req.Description,
		Frequency:   freq,
		TargetCount: req.TargetCount,
		Active:      true,
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetHabit handles GET /api/v1/habits/{id}
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	habit, err := h.store.GetHabit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habit)
}

// ListUserHabits handles GET /api/v1/users/{id}/habits
func (h *Handler) ListUserHabits(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if _, err := h.store.GetUser(r.Context(), userID); err != nil {
		MapStoreError(w, r, err)
		return
	}
	habits, err := h.store.ListHabits(r.Context(), userID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, habits)
}

// TrackHabitRequest is the payload for POST /api/v1/habits/{id}/track.
type TrackHabitRequest struct {
	EntryDate string `json:"entry_date"` // YYYY-MM-DD, defaults to today
	Count     int    `json:"count"`
}

// TrackHabit handles POST /api/v1/habits/{id}/track
func (h *Handler) TrackHabit(w http.ResponseWriter, r *http.Request) {
	var req TrackHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if req.EntryDate == "" {
		req.EntryDate = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", req.EntryDate); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "entry_date", Message: "must be YYYY-MM-DD"},
		})
		return
	}
	if req.Count < 1 {
		req.Count = 1
	}

	entry, err := h.store.TrackHabit(r.Context(), chi.URLParam(r, "id"), req.EntryDate, req.Count)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}
