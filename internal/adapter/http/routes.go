package http

import (
	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Get("/health", h.Health)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.HandleWS)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.HireAgent)
		r.Delete("/agents/{name}", h.FireAgent)
		r.Get("/orgchart", h.GetOrgChart)
		r.Get("/roles", h.ListRoles)

		// Tasks
		r.Post("/tasks", h.AssignTask)
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
		r.Get("/tasks/{id}/artifacts", h.ListTaskArtifacts)

		// Messaging
		r.Post("/chat", h.Chat)
		r.Post("/broadcast", h.Broadcast)
		r.Get("/messages", h.ListMessages)

		// Costs
		r.Get("/costs", h.GetCostSummary)
		r.Get("/costs/recent", h.ListRecentUsage)

		// Autonomous goal loop
		r.Post("/goal", h.StartGoal)
		r.Post("/goal/stop", h.StopGoal)
	})
}
