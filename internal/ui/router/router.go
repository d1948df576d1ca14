// Package router sets up HTTP routes for the workbench server.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/pith/internal/app"
	"github.com/leapstack-labs/pith/internal/metrics"
	assistantFeature "github.com/leapstack-labs/pith/internal/ui/features/assistant"
	chartsFeature "github.com/leapstack-labs/pith/internal/ui/features/charts"
	"github.com/leapstack-labs/pith/internal/ui/features/common"
	settingsFeature "github.com/leapstack-labs/pith/internal/ui/features/settings"
	tablesFeature "github.com/leapstack-labs/pith/internal/ui/features/tables"
	workbenchFeature "github.com/leapstack-labs/pith/internal/ui/features/workbench"
	"github.com/leapstack-labs/pith/internal/ui/notifier"
)

// SetupRoutes configures all routes for the server.
func SetupRoutes(router chi.Router, a *app.App, notify *notifier.Notifier) error {
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	router.Handle("/metrics", metrics.Handler())

	if err := tablesFeature.SetupRoutes(router, a, notify); err != nil {
		return err
	}

	if err := workbenchFeature.SetupRoutes(router, a); err != nil {
		return err
	}

	if err := chartsFeature.SetupRoutes(router, a); err != nil {
		return err
	}

	if err := assistantFeature.SetupRoutes(router, a); err != nil {
		return err
	}

	if err := settingsFeature.SetupRoutes(router, a, notify); err != nil {
		return err
	}

	return nil
}
