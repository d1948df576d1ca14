// Package tables serves table listing, schema introspection and uploads.
package tables

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

// SetupRoutes registers the table routes.
func SetupRoutes(router chi.Router, a *app.App, notify *notifier.Notifier) error {
	h := NewHandlers(a, notify)

	// Other features share the /api prefix, so these are not mounted.
	router.Get("/api/tables", h.ListTables)
	router.Get("/api/tables/{name}", h.DescribeTable)
	router.Post("/api/ingest", h.Ingest)
	router.Get("/api/ingestions", h.Ingestions)
	router.Get("/api/events", h.EventsSSE)
	return nil
}
