// Package settings serves preferences and table export and import.
package settings

import (
	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

// SetupRoutes registers the settings routes.
func SetupRoutes(router chi.Router, a *app.App, notify *notifier.Notifier) error {
	h := NewHandlers(a, notify)

	router.Get("/api/prefs", h.GetPrefs)
	router.Put("/api/prefs", h.SavePrefs)
	router.Put("/api/prefs/{key}", h.SetPref)
	router.Get("/api/export", h.Export)
	router.Post("/api/import", h.Import)
	return nil
}
