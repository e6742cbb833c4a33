package main

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/justinas/alice"
	"github.com/yusco/siteaudit/ui"
)

func (app *application) routes(defaultTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	static, err := fs.Sub(ui.Files, "static")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /static/", cacheForeverHeaders(http.StripPrefix("/static", http.FileServerFS(static))))

	session := alice.New(app.sessionManager.LoadAndSave, noSurf, commonContext, app.auditContext)

	mux.Handle("GET /{$}", session.ThenFunc(app.home))
	mux.Handle("GET /project/search", session.ThenFunc(app.searchProjects))
	mux.Handle("POST /load", session.ThenFunc(app.load))
	mux.Handle("POST /project", session.ThenFunc(app.selectProject))
	mux.Handle("POST /draft", session.ThenFunc(app.saveDraft))
	mux.Handle("POST /identification", session.ThenFunc(app.submitIdentification))
	mux.Handle("POST /phases", session.ThenFunc(app.addPhase))
	mux.Handle("POST /phase/choose", session.ThenFunc(app.choosePhase))
	mux.Handle("POST /phase/change", session.ThenFunc(app.changePhase))
	mux.Handle("POST /phase/cancel", session.ThenFunc(app.cancelPhase))
	mux.Handle("POST /phase/submit", session.ThenFunc(app.submitPhase))
	mux.Handle("POST /finish", session.ThenFunc(app.finish))
	mux.Handle("POST /save", session.ThenFunc(app.save))
	mux.Handle("POST /restart", session.ThenFunc(app.restart))
	mux.Handle("GET /export/{kind}", session.ThenFunc(app.export))

	mux.HandleFunc("GET /api/healthy", app.healthy)

	common := alice.New(app.recoverPanic, app.logRequest, app.secureHeaders)

	return common.Then(timeoutHandler(mux, defaultTimeout))
}
