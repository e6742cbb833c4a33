package main

import (
	"net/http"

	"github.com/yusco/siteaudit/internal/wizard"
)

const auditSessionKey = "audit"

// loadAudit returns the wizard of the browser session, a fresh one when none was started.
func (app *application) loadAudit(r *http.Request) *wizard.Session {
	if s, ok := app.sessionManager.Get(r.Context(), auditSessionKey).(wizard.Session); ok {
		return &s
	}
	return wizard.New()
}

func (app *application) storeAudit(r *http.Request, s *wizard.Session) {
	app.sessionManager.Put(r.Context(), auditSessionKey, *s)
}
