// Package wizard holds the state machine of one audit: project loading, identification, the phase loop and the
// final save.
package wizard

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/validation"
)

var (
	ErrInvalidTransition = errors.NewSentinel("invalid transition")
	ErrValidation        = errors.NewSentinel("validation failed")
	ErrUnknownPhase      = errors.NewSentinel("unknown phase")
)

func init() {
	gob.Register(Session{})
}

type State string

const (
	StateProjectLoad    State = "PROJECT_LOAD"
	StateProject        State = "PROJECT"
	StateIdentification State = "IDENTIFICATION"
	StateLoopDecision   State = "LOOP_DECISION"
	StateFillPhase      State = "FILL_PHASE"
	StateFinished       State = "FINISHED"
)

// Loader reloads the form definition and the site list, see [formschema.Schema].
type Loader interface {
	Reload(ctx context.Context) error
}

// SubmissionStore persists a completed audit and returns the identifier it was stored under.
type SubmissionStore interface {
	SaveSubmission(ctx context.Context, submission models.Submission) (string, error)
}

// Session is everything one auditor has entered so far. It is stored in the HTTP session and only ever mutated by
// the transition methods below.
type Session struct {
	State        State
	SubmissionID string
	StartedAt    time.Time
	Project      *models.Project

	// Draft holds the answers of the identification section or of the phase being filled.
	Draft       models.Answers
	PhaseName   string
	IterationID string

	Collected []models.CollectedEntry

	Errors      []string
	ShowComment bool
	LoadError   string

	CompletedAt time.Time
	Saved       bool
	SavedID     string
	SaveError   string
}

// New returns a session at the start of the wizard.
func New() *Session {
	return &Session{State: StateProjectLoad}
}

func (s *Session) transitionError(method string, allowed ...State) error {
	attrs := []slog.Attr{slog.String("method", method), slog.String("state", string(s.State))}
	for _, a := range allowed {
		attrs = append(attrs, slog.String("allowed", string(a)))
	}
	return errors.Wrap(ErrInvalidTransition, method, attrs...)
}

func (s *Session) clearFeedback() {
	s.Errors = nil
	s.ShowComment = false
}

// Load reloads the form definition. On failure the session stays in PROJECT_LOAD with the error kept for display.
func (s *Session) Load(ctx context.Context, loader Loader) error {
	if s.State != StateProjectLoad {
		return s.transitionError("Load", StateProjectLoad)
	}
	if err := loader.Reload(ctx); err != nil {
		s.LoadError = err.Error()
		return errors.Wrap(err, "reload form definition")
	}
	s.LoadError = ""
	s.State = StateProject
	return nil
}

// SelectProject starts the audit of a site.
func (s *Session) SelectProject(project models.Project, submissionID string, now time.Time) error {
	if s.State != StateProject {
		return s.transitionError("SelectProject", StateProject)
	}
	s.Project = &project
	s.SubmissionID = submissionID
	s.StartedAt = now
	s.Draft = models.Answers{}
	s.clearFeedback()
	s.State = StateIdentification
	return nil
}

// SaveDraft keeps answers typed so far without validating them, used when the page re-renders on change.
func (s *Session) SaveDraft(answers models.Answers) error {
	switch {
	case s.State == StateIdentification:
	case s.State == StateFillPhase && s.PhaseName != "":
	default:
		return s.transitionError("SaveDraft", StateIdentification, StateFillPhase)
	}
	s.Draft = answers.Clone()
	return nil
}

// SubmitIdentification validates the identification section and enters the phase loop.
func (s *Session) SubmitIdentification(
	form *formschema.Form,
	validator *validation.Validator,
	answers models.Answers,
) error {
	if s.State != StateIdentification {
		return s.transitionError("SubmitIdentification", StateIdentification)
	}
	section := form.Identification()
	if err := s.submit(section, validator, answers); err != nil {
		return err
	}
	s.State = StateLoopDecision
	return nil
}

// AddPhase opens a new phase iteration. The phase itself is chosen with ChoosePhase.
func (s *Session) AddPhase(iterationID string) error {
	if s.State != StateLoopDecision {
		return s.transitionError("AddPhase", StateLoopDecision)
	}
	s.State = StateFillPhase
	s.PhaseName = ""
	s.IterationID = iterationID
	s.Draft = models.Answers{}
	s.clearFeedback()
	return nil
}

func (s *Session) ChoosePhase(form *formschema.Form, name string) error {
	if s.State != StateFillPhase || s.PhaseName != "" {
		return s.transitionError("ChoosePhase", StateFillPhase)
	}
	if !form.IsPhase(name) {
		return errors.Wrap(ErrUnknownPhase, "choose phase", slog.String("phase", name))
	}
	s.PhaseName = name
	s.clearFeedback()
	return nil
}

// ChangePhase abandons the draft of the chosen phase and goes back to the phase selection.
func (s *Session) ChangePhase(iterationID string) error {
	if s.State != StateFillPhase || s.PhaseName == "" {
		return s.transitionError("ChangePhase", StateFillPhase)
	}
	s.PhaseName = ""
	s.IterationID = iterationID
	s.Draft = models.Answers{}
	s.clearFeedback()
	return nil
}

// CancelPhase discards the draft and returns to the loop decision.
func (s *Session) CancelPhase() error {
	if s.State != StateFillPhase {
		return s.transitionError("CancelPhase", StateFillPhase)
	}
	s.State = StateLoopDecision
	s.PhaseName = ""
	s.Draft = nil
	s.clearFeedback()
	return nil
}

// SubmitPhase validates the phase draft, appends it to the collected entries and returns to the loop decision.
func (s *Session) SubmitPhase(form *formschema.Form, validator *validation.Validator, answers models.Answers) error {
	if s.State != StateFillPhase || s.PhaseName == "" {
		return s.transitionError("SubmitPhase", StateFillPhase)
	}
	section, ok := form.Section(s.PhaseName)
	if !ok {
		return errors.Wrap(ErrUnknownPhase, "submit phase", slog.String("phase", s.PhaseName))
	}
	if err := s.submit(section, validator, answers); err != nil {
		return err
	}
	s.State = StateLoopDecision
	s.PhaseName = ""
	return nil
}

// submit validates the draft against the rows of a section. On success the answers of hidden questions are dropped
// and the rest is appended as a deep copy.
func (s *Session) submit(section formschema.Section, validator *validation.Validator, answers models.Answers) error {
	s.Draft = answers.Clone()
	report := validator.Validate(section.Rows, s.Draft, s.Collected, s.Project)
	if !report.OK() {
		s.Errors = report.Messages()
		// A justification already typed stays on screen so that it is posted again with the corrections.
		s.ShowComment = report.CommentMissing || !s.Draft[validator.CommentID].IsEmpty()
		return errors.Wrap(ErrValidation, "validate section",
			slog.String("section", section.Name), slog.Int("issues", len(report.Issues)))
	}
	s.Collected = append(s.Collected, models.CollectedEntry{
		PhaseName: section.Name,
		Answers:   validator.VisibleAnswers(section.Rows, s.Draft, s.Collected),
	})
	s.Draft = nil
	s.clearFeedback()
	return nil
}

func (s *Session) Finish() error {
	if s.State != StateLoopDecision {
		return s.transitionError("Finish", StateLoopDecision)
	}
	s.State = StateFinished
	s.clearFeedback()
	return nil
}

// MarkSaved records the identifier returned by the persistence client.
func (s *Session) MarkSaved(id string) error {
	if s.State != StateFinished {
		return s.transitionError("MarkSaved", StateFinished)
	}
	s.Saved = true
	s.SavedID = id
	s.SaveError = ""
	return nil
}

// Save persists the audit once. A session already saved is left untouched so a reload of the final page cannot
// write twice. A failure is kept for display and the save may be retried.
func (s *Session) Save(ctx context.Context, store SubmissionStore, now time.Time) error {
	if s.State != StateFinished {
		return s.transitionError("Save", StateFinished)
	}
	if s.Saved {
		return nil
	}
	s.CompletedAt = now
	id, err := store.SaveSubmission(ctx, s.Submission(now))
	if err != nil {
		s.SaveError = err.Error()
		return errors.Wrap(err, "save submission", slog.String("submission_id", s.SubmissionID))
	}
	return s.MarkSaved(id)
}

// Submission is the document handed to the persistence client and the exporters. Once saved, pass CompletedAt.
func (s *Session) Submission(completedAt time.Time) models.Submission {
	submission := models.Submission{
		ID:          s.SubmissionID,
		Entries:     s.Collected,
		StartedAt:   s.StartedAt,
		CompletedAt: completedAt,
	}
	if s.Project != nil {
		submission.Project = *s.Project
	}
	return submission
}

// Summaries describes the collected entries, one line per entry.
func (s *Session) Summaries() []string {
	out := make([]string, len(s.Collected))
	for i, e := range s.Collected {
		out[i] = fmt.Sprintf("%s : %d réponses", e.PhaseName, len(e.Answers.Answered()))
	}
	return out
}

// ProjectTitle returns the title of the audited site, or a placeholder before a site is chosen.
func (s *Session) ProjectTitle() string {
	if s.Project == nil || s.Project.Title == "" {
		return "Projet Inconnu"
	}
	return s.Project.Title
}
