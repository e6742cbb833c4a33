package formschema

import (
	"fmt"

	"github.com/yusco/siteaudit/internal/condition"
	"github.com/yusco/siteaudit/internal/models"
)

// Warning is a problem in a form definition that does not prevent loading it.
type Warning struct {
	Section    string
	QuestionID int
	Message    string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s / ID %d : %s", w.Section, w.QuestionID, w.Message)
}

// Lint checks the rows of a form definition. Rows with a condition that does not parse stay hidden at runtime.
func Lint(questions []models.Question) []Warning {
	var warnings []Warning
	warn := func(q models.Question, format string, args ...any) {
		warnings = append(warnings, Warning{Section: q.Section, QuestionID: q.ID, Message: fmt.Sprintf(format, args...)})
	}

	ids := map[string]map[int]bool{}
	allIDs := map[int]bool{}
	for _, q := range questions {
		if ids[q.Section] == nil {
			ids[q.Section] = map[int]bool{}
		}
		if ids[q.Section][q.ID] {
			warn(q, "identifiant en double dans la section")
		}
		ids[q.Section][q.ID] = true
		allIDs[q.ID] = true
	}

	for _, q := range questions {
		if _, ok := models.ParseQuestionType(string(q.Type)); !ok {
			warn(q, "type inconnu %q", q.Type)
		}
		if (q.Type == models.QuestionTypeSelect || q.Type == models.QuestionTypeMultiselect) && len(q.Options) == 0 {
			warn(q, "liste de choix vide")
		}
		p, err := condition.Parse(q.Condition)
		if err != nil {
			warn(q, "condition invalide : %v", err)
			continue
		}
		for _, ref := range condition.References(p) {
			switch ref.Scope {
			case condition.ScopeDraft:
				if ref.QuestionID == q.ID {
					warn(q, "la condition dépend de la question elle-même")
				} else if !ids[q.Section][ref.QuestionID] {
					warn(q, "la condition référence la question %d absente de la section", ref.QuestionID)
				}
			case condition.ScopePrior:
				if !allIDs[ref.QuestionID] {
					warn(q, "la condition référence la question %d absente du formulaire", ref.QuestionID)
				}
			}
		}
	}
	return warnings
}
