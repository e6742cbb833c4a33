package main

import (
	"log/slog"
	"net/http"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/wizard"
)

func (app *application) serverError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelError, "server error",
		slog.String("method", method), slog.String("uri", uri), errors.SlogError(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (app *application) clientError(w http.ResponseWriter, r *http.Request, status int) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.logger.LogAttrs(r.Context(), slog.LevelDebug, http.StatusText(status),
		slog.String("method", method), slog.String("uri", uri))
	http.Error(w, http.StatusText(status), status)
}

func (app *application) notFound(w http.ResponseWriter, r *http.Request) {
	app.clientError(w, r, http.StatusNotFound)
}

func redirectHome(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// afterTransition stores the session and sends the browser back to the page of the current state. Invalid
// transitions happen with the back button or a double submit, they are not errors worth reporting to the user.
func (app *application) afterTransition(w http.ResponseWriter, r *http.Request, s *wizard.Session, err error) {
	switch {
	case err == nil:
	case errors.Is(err, wizard.ErrInvalidTransition):
		app.logger.LogAttrs(r.Context(), slog.LevelDebug, "ignored transition", errors.SlogError(err))
		redirectHome(w, r)
		return
	case errors.Is(err, wizard.ErrValidation):
		app.logger.LogAttrs(r.Context(), slog.LevelInfo, "validation failed", errors.SlogError(err))
	case errors.Is(err, wizard.ErrUnknownPhase):
		app.logger.LogAttrs(r.Context(), slog.LevelWarn, "unknown phase", errors.SlogError(err))
	default:
		app.logger.LogAttrs(r.Context(), slog.LevelError, "transition failed", errors.SlogError(err))
	}
	app.storeAudit(r, s)
	redirectHome(w, r)
}
