// Package validation checks a phase draft against the form definition and reports every problem at once.
package validation

import (
	"fmt"
	"strings"
	"time"

	"github.com/yusco/siteaudit/internal/condition"
	"github.com/yusco/siteaudit/internal/models"
)

// DefaultCommentID is the id of the justification question in the form definition.
const DefaultCommentID = 99

const commentLabel = "Commentaire"

// Issue is one problem found on one question.
type Issue struct {
	QuestionID int
	Label      string
	Reason     string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s (ID %d) : %s", i.Label, i.QuestionID, i.Reason)
}

// Report collects the issues of a draft in question order.
type Report struct {
	Issues []Issue
	// CommentMissing is set when the draft reports a deviation without justification.
	CommentMissing bool
}

func (r Report) OK() bool {
	return len(r.Issues) == 0
}

// Messages renders the issues for display.
func (r Report) Messages() []string {
	messages := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		messages[i] = issue.String()
	}
	return messages
}

type Validator struct {
	CommentID int
	Deviation DeviationRule
}

func New(commentID int, deviation DeviationRule) *Validator {
	if deviation == nil {
		deviation = NeverDeviates{}
	}
	return &Validator{CommentID: commentID, Deviation: deviation}
}

// Check returns whether the draft is valid and the messages to show otherwise.
func (v *Validator) Check(
	rows []models.Question,
	draft models.Answers,
	prior []models.CollectedEntry,
	project *models.Project,
) (bool, []string) {
	report := v.Validate(rows, draft, prior, project)
	return report.OK(), report.Messages()
}

// Validate checks every visible question of the section. Hidden questions never block a submission. The comment
// question is mandatory only when the deviation rule holds for the visible answers of the draft.
func (v *Validator) Validate(
	rows []models.Question,
	draft models.Answers,
	prior []models.CollectedEntry,
	project *models.Project,
) Report {
	var report Report
	label := commentLabel
	for _, row := range rows {
		if row.ID == v.CommentID {
			if row.Label != "" {
				label = row.Label
			}
			continue
		}
		if !condition.Visible(row, draft, prior) {
			continue
		}
		if reason, ok := checkRow(row, draft[row.ID]); !ok {
			report.Issues = append(report.Issues, Issue{QuestionID: row.ID, Label: row.Label, Reason: reason})
		}
	}

	deviation := v.Deviation
	if deviation == nil {
		deviation = NeverDeviates{}
	}
	env := condition.Env{Draft: v.VisibleAnswers(rows, draft, prior), Prior: prior}
	if deviation.Deviates(env, project) && draft[v.CommentID].IsEmpty() {
		report.CommentMissing = true
		report.Issues = append(report.Issues, Issue{
			QuestionID: v.CommentID,
			Label:      label,
			Reason:     "justification obligatoire en cas d'écart",
		})
	}
	return report
}

// VisibleAnswers keeps the answers of the questions the draft makes visible, plus a non-empty comment. Answers
// left behind by a question that got hidden again are dropped.
func (v *Validator) VisibleAnswers(
	rows []models.Question,
	draft models.Answers,
	prior []models.CollectedEntry,
) models.Answers {
	kept := models.Answers{}
	for _, row := range rows {
		if row.ID == v.CommentID || !condition.Visible(row, draft, prior) {
			continue
		}
		if value, ok := draft[row.ID]; ok {
			kept[row.ID] = value
		}
	}
	if value := draft[v.CommentID]; !value.IsEmpty() {
		kept[v.CommentID] = value
	}
	return kept.Clone()
}

func checkRow(row models.Question, value models.Value) (string, bool) {
	if value.IsEmpty() {
		if row.Mandatory {
			return "réponse obligatoire", false
		}
		return "", true
	}

	switch row.Type { //nolint:exhaustive // free text types have no constraint
	case models.QuestionTypeNumber:
		if _, ok := condition.ParseNumber(value.Text); !ok {
			return "doit être un nombre", false
		}
	case models.QuestionTypeSelect:
		if len(row.Options) > 0 && !row.HasOption(value.Text) {
			return fmt.Sprintf("valeur non autorisée (%s)", strings.TrimSpace(value.Text)), false
		}
	case models.QuestionTypeMultiselect:
		for _, c := range value.Choices {
			if len(row.Options) > 0 && !row.HasOption(c) {
				return fmt.Sprintf("valeur non autorisée (%s)", c), false
			}
		}
	case models.QuestionTypeDate:
		if _, err := time.Parse(time.DateOnly, strings.TrimSpace(value.Text)); err != nil {
			return "date invalide (format AAAA-MM-JJ)", false
		}
	case models.QuestionTypePhoto:
		for _, a := range value.Attachments {
			if !strings.HasPrefix(a.ContentType, "image/") {
				return fmt.Sprintf("le fichier %s n'est pas une image", a.FileName), false
			}
		}
	}
	return "", true
}
