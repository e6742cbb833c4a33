package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
)

type healthStatus struct {
	Status string `json:"status"`
	// FormLoadedAt is left out until a session has loaded the form definition.
	FormLoadedAt *time.Time `json:"form_loaded_at,omitempty"`
}

// healthy responds with a JSON object indicating that the server is healthy.
func (app *application) healthy(w http.ResponseWriter, r *http.Request) {
	status := healthStatus{Status: "ok"}
	if loadedAt := app.schema.LoadedAt(); !loadedAt.IsZero() {
		status.FormLoadedAt = &loadedAt
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "encode health status", errors.SlogError(err))
	}
}
