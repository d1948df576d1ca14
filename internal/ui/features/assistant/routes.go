// Package assistant serves the model lifecycle and the analyst chat.
package assistant

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
)

// SetupRoutes registers the AI routes.
func SetupRoutes(router chi.Router, a *app.App) error {
	h := NewHandlers(a)

	router.Route("/api/ai", func(r chi.Router) {
		r.Get("/models", h.Models)
		r.Get("/status", h.Status)
		r.Put("/model", h.SelectModel)
		r.Post("/load", h.LoadSSE)
		r.Post("/chat", h.ChatSSE)
		r.Get("/messages", h.Messages)
		r.Delete("/messages", h.ResetMessages)
		r.Post("/purge", h.Purge)
	})
	return nil
}
