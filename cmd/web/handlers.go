package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/export"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/wizard"
)

type loadPageData struct {
	baseTemplateData
	LoadError string
}

type projectPageData struct {
	baseTemplateData
	Search    string
	Results   []models.Project
	TooShort  bool
	NoResults bool
}

type questionsPageData struct {
	baseTemplateData
	Project     projectView
	SectionName string
	PhaseName   string
	Phases      []string
	Questions   questionsView
}

type finishedPageData struct {
	baseTemplateData
	Saved     bool
	SavedID   string
	SaveError string
	Summaries []string
	Names     export.FileNames
	HasPhotos bool
	Mailto    string
}

func newBase(s *wizard.Session) baseTemplateData {
	if s.Project == nil {
		return baseTemplateData{}
	}
	return baseTemplateData{ProjectTitle: s.ProjectTitle()}
}

// ensureLoaded reloads the schema when this process has not loaded it yet, e.g. after a restart with sessions
// already past the loading step.
func (app *application) ensureLoaded(ctx context.Context) (*formschema.Form, error) {
	form, err := app.schema.Form()
	if errors.Is(err, formschema.ErrNotLoaded) {
		if err = app.schema.Reload(ctx); err != nil {
			return nil, errors.Wrap(err, "reload schema")
		}
		form, err = app.schema.Form()
	}
	if err != nil {
		return nil, errors.Wrap(err, "form")
	}
	return form, nil
}

// home renders the page of the current wizard state. Entering the wizard loads the form definition.
func (app *application) home(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	if s.State == wizard.StateProjectLoad && s.LoadError == "" {
		if err := s.Load(r.Context(), app.schema); err != nil {
			app.logger.LogAttrs(r.Context(), slog.LevelError, "load form definition", errors.SlogError(err))
		}
		app.storeAudit(r, s)
	}
	app.renderState(w, r, s)
}

func (app *application) renderState(w http.ResponseWriter, r *http.Request, s *wizard.Session) {
	switch s.State {
	case wizard.StateProjectLoad:
		app.render(w, r, http.StatusOK, "load", "", loadPageData{LoadError: s.LoadError})
	case wizard.StateProject:
		data, err := app.searchData(r)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		app.render(w, r, http.StatusOK, "project", "", data)
	case wizard.StateIdentification, wizard.StateFillPhase:
		data, page, err := app.questionsData(r.Context(), s)
		if err != nil {
			app.serverError(w, r, err)
			return
		}
		app.render(w, r, http.StatusOK, page, "", data)
	case wizard.StateLoopDecision:
		app.render(w, r, http.StatusOK, "loop", "", questionsPageData{
			baseTemplateData: newBase(s),
			Project:          newProjectView(s),
		})
	case wizard.StateFinished:
		app.render(w, r, http.StatusOK, "finished", "", app.finishedData(s))
	default:
		app.serverError(w, r, errors.New("unknown wizard state", slog.String("state", string(s.State))))
	}
}

func (app *application) searchData(r *http.Request) (projectPageData, error) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	data := projectPageData{Search: term}
	if term == "" {
		return data, nil
	}
	if utf8.RuneCountInString(term) < formschema.MinSearchLength {
		data.TooShort = true
		return data, nil
	}
	if _, err := app.ensureLoaded(r.Context()); err != nil {
		return data, err
	}
	sites, err := app.schema.Sites()
	if err != nil {
		return data, errors.Wrap(err, "sites")
	}
	data.Results = formschema.SearchSites(sites, term)
	data.NoResults = len(data.Results) == 0
	return data, nil
}

// questionsData prepares the identification page or the phase page.
func (app *application) questionsData(ctx context.Context, s *wizard.Session) (questionsPageData, string, error) {
	form, err := app.ensureLoaded(ctx)
	if err != nil {
		return questionsPageData{}, "", err
	}
	data := questionsPageData{
		baseTemplateData: newBase(s),
		Project:          newProjectView(s),
	}
	if s.State == wizard.StateIdentification {
		section := form.Identification()
		data.SectionName = section.Name
		data.Questions = newQuestionsView(section, s, app.validator.CommentID, false)
		return data, "identification", nil
	}
	data.PhaseName = s.PhaseName
	if s.PhaseName == "" {
		data.Phases = form.Phases()
		return data, "phase", nil
	}
	section, ok := form.Section(s.PhaseName)
	if !ok {
		return questionsPageData{}, "", errors.Wrap(wizard.ErrUnknownPhase, "phase page",
			slog.String("phase", s.PhaseName))
	}
	data.SectionName = section.Name
	data.Questions = newQuestionsView(section, s, app.validator.CommentID, true)
	return data, "phase", nil
}

func (app *application) finishedData(s *wizard.Session) finishedPageData {
	data := finishedPageData{
		baseTemplateData: newBase(s),
		Saved:            s.Saved,
		SavedID:          s.SavedID,
		SaveError:        s.SaveError,
		Summaries:        s.Summaries(),
	}
	if s.Saved {
		data.Names = export.NamesFor(s.ProjectTitle(), s.CompletedAt)
		data.HasPhotos = export.HasAttachments(s.Collected)
		data.Mailto = export.MailtoLink(s.ProjectTitle(), data.Names, data.HasPhotos)
	}
	return data
}

// searchProjects answers the search box. htmx requests get the result list only.
func (app *application) searchProjects(w http.ResponseWriter, r *http.Request) {
	if !app.htmx.NewHandler(w, r).IsHxRequest() {
		http.Redirect(w, r, "/?q="+url.QueryEscape(r.URL.Query().Get("q")), http.StatusSeeOther)
		return
	}
	data, err := app.searchData(r)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.render(w, r, http.StatusOK, "project", "results", data)
}

func (app *application) load(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	err := s.Load(r.Context(), app.schema)
	if err != nil && !errors.Is(err, wizard.ErrInvalidTransition) {
		app.logger.LogAttrs(r.Context(), slog.LevelError, "load form definition", errors.SlogError(err))
		err = nil
	}
	app.afterTransition(w, r, s, err)
}

func (app *application) selectProject(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	if _, err := app.ensureLoaded(r.Context()); err != nil {
		app.serverError(w, r, err)
		return
	}
	sites, err := app.schema.Sites()
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	project, ok := formschema.FindSite(sites, r.PostFormValue("title"))
	if !ok {
		app.clientError(w, r, http.StatusUnprocessableEntity)
		return
	}
	app.afterTransition(w, r, s, s.SelectProject(project, app.newID(), app.now()))
}

// currentSection returns the rows the posted answers belong to.
func (app *application) currentSection(ctx context.Context, s *wizard.Session) (formschema.Section, error) {
	form, err := app.ensureLoaded(ctx)
	if err != nil {
		return formschema.Section{}, err
	}
	if s.State == wizard.StateIdentification {
		return form.Identification(), nil
	}
	if s.State == wizard.StateFillPhase && s.PhaseName != "" {
		if section, ok := form.Section(s.PhaseName); ok {
			return section, nil
		}
		return formschema.Section{}, errors.Wrap(wizard.ErrUnknownPhase, "current section",
			slog.String("phase", s.PhaseName))
	}
	return formschema.Section{}, errors.Wrap(wizard.ErrInvalidTransition, "no section to answer",
		slog.String("state", string(s.State)))
}

// saveDraft keeps the answers typed so far and re-renders the questions, conditions may show or hide rows.
func (app *application) saveDraft(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	section, err := app.currentSection(r.Context(), s)
	if errors.Is(err, wizard.ErrInvalidTransition) {
		app.afterTransition(w, r, s, err)
		return
	}
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	answers, err := app.parseAnswers(r, section, s.Draft)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	if err = s.SaveDraft(answers); err != nil {
		app.afterTransition(w, r, s, err)
		return
	}
	app.storeAudit(r, s)

	if !app.htmx.NewHandler(w, r).IsHxRequest() {
		redirectHome(w, r)
		return
	}
	page := "identification"
	inPhase := s.State == wizard.StateFillPhase
	if inPhase {
		page = "phase"
	}
	app.render(w, r, http.StatusOK, page, "questions",
		newQuestionsView(section, s, app.validator.CommentID, inPhase))
}

func (app *application) submitIdentification(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	form, err := app.ensureLoaded(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	answers, err := app.parseAnswers(r, form.Identification(), s.Draft)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.afterTransition(w, r, s, s.SubmitIdentification(form, app.validator, answers))
}

func (app *application) addPhase(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	app.afterTransition(w, r, s, s.AddPhase(app.newID()))
}

func (app *application) choosePhase(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	form, err := app.ensureLoaded(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.afterTransition(w, r, s, s.ChoosePhase(form, r.PostFormValue("phase")))
}

func (app *application) changePhase(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	app.afterTransition(w, r, s, s.ChangePhase(app.newID()))
}

func (app *application) cancelPhase(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	app.afterTransition(w, r, s, s.CancelPhase())
}

func (app *application) submitPhase(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	section, err := app.currentSection(r.Context(), s)
	if err != nil {
		app.afterTransition(w, r, s, err)
		return
	}
	answers, err := app.parseAnswers(r, section, s.Draft)
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	form, err := app.ensureLoaded(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}
	app.afterTransition(w, r, s, s.SubmitPhase(form, app.validator, answers))
}

// finish closes the audit and saves it right away. A failed save is shown on the final page with a retry button.
func (app *application) finish(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	if err := s.Finish(); err != nil {
		app.afterTransition(w, r, s, err)
		return
	}
	app.afterTransition(w, r, s, app.saveSubmission(r.Context(), s))
}

func (app *application) save(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	app.afterTransition(w, r, s, app.saveSubmission(r.Context(), s))
}

func (app *application) saveSubmission(ctx context.Context, s *wizard.Session) error {
	err := s.Save(ctx, app.store, app.now())
	if err != nil && !errors.Is(err, wizard.ErrInvalidTransition) {
		// The error stays in the session for display, the transition itself succeeded.
		app.logger.LogAttrs(ctx, slog.LevelError, "save submission", errors.SlogError(err))
		return nil
	}
	if err == nil {
		app.logger.LogAttrs(ctx, slog.LevelInfo, "submission saved", slog.String("stored_id", s.SavedID))
	}
	return err
}

func (app *application) restart(w http.ResponseWriter, r *http.Request) {
	app.sessionManager.Remove(r.Context(), auditSessionKey)
	redirectHome(w, r)
}
