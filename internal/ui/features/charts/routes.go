// Package charts validates chart configurations and plans plot specs.
package charts

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
)

// SetupRoutes registers the chart routes.
func SetupRoutes(router chi.Router, a *app.App) error {
	h := NewHandlers(a)

	router.Route("/api/chart", func(r chi.Router) {
		r.Get("/types", h.Types)
		r.Post("/validate", h.Validate)
		r.Post("/plan", h.Plan)
	})
	return nil
}
