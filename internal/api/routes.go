package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler, metricsHandler http.Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(RecoveryMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)
		r.Handle("/metrics", metricsHandler)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Post("/users", h.CreateUser)
			r.Get("/users/{id}", h.GetUser)
			r.Patch("/users/{id}", h.UpdateUser)
			r.Get("/users/{id}/preferences", h.GetPreferences)
			r.Put("/users/{id}/preferences", h.UpdatePreferences)
			r.Get("/users/{id}/tasks", h.ListUserTasks)
			r.Get("/users/{id}/habits", h.ListUserHabits)
			r.Get("/users/{id}/notifications", h.ListNotifications)
			r.Post("/users/{id}/reschedule", h.TriggerReschedule)
			r.Post("/users/{id}/nudge", h.TriggerNudge)

			r.Post("/tasks", h.CreateTask)
			r.Get("/tasks/{id}", h.GetTask)
			r.Patch("/tasks/{id}", h.UpdateTask)
			r.Delete("/tasks/{id}", h.DeleteTask)

			r.Post("/goals", h.CreateGoal)
			r.Get("/goals/{id}", h.GetGoal)
			r.Patch("/goals/{id}", h.UpdateGoal)

			r.Post("/habits", h.CreateHabit)
			r.Get("/habits/{id}", h.GetHabit)
			r.Post("/habits/{id}/track", h.TrackHabit)
		})
	})

	return r
}
