// Package workbench serves ad-hoc SQL and the visualization coordinator
// endpoint.
package workbench

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
)

// SetupRoutes registers the SQL routes.
func SetupRoutes(router chi.Router, a *app.App) error {
	h := NewHandlers(a)

	router.Post("/api/query", h.Query)
	router.Method("POST", "/mosaic", a.Visual.Handler())
	return nil
}
