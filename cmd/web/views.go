package main

import (
	"slices"
	"strconv"

	"github.com/yusco/siteaudit/internal/condition"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/wizard"
)

type optionView struct {
	Value    string
	Selected bool
}

type questionView struct {
	ID          int
	Name        string
	Label       string
	Mandatory   bool
	Description string
	Kind        string
	Value       string
	Options     []optionView
	Attachments []models.AttachmentRef
}

type questionsView struct {
	Questions   []questionView
	NoVisible   bool
	ShowComment bool
	Comment     questionView
	Errors      []string
}

type fieldView struct {
	Label string
	Value string
}

type groupView struct {
	Title  string
	Fields []fieldView
}

type projectView struct {
	Groups    []groupView
	Summaries []string
}

func fieldName(id int) string {
	return "q_" + strconv.Itoa(id)
}

func newQuestionView(q models.Question, v models.Value) questionView {
	view := questionView{
		ID:          q.ID,
		Name:        fieldName(q.ID),
		Label:       q.Label,
		Mandatory:   q.Mandatory,
		Description: q.Description,
		Kind:        string(q.Type),
		Value:       v.Text,
		Attachments: v.Attachments,
	}
	switch q.Type { //nolint:exhaustive // only choice types list options
	case models.QuestionTypeSelect:
		for _, o := range q.Options {
			view.Options = append(view.Options, optionView{Value: o, Selected: o == v.Text})
		}
	case models.QuestionTypeMultiselect:
		for _, o := range q.Options {
			view.Options = append(view.Options, optionView{Value: o, Selected: slices.Contains(v.Choices, o)})
		}
	}
	return view
}

// commentQuestion is the row used for the justification. Sections without such a row get a plain text area.
func commentQuestion(section formschema.Section, commentID int) models.Question {
	for _, row := range section.Rows {
		if row.ID == commentID {
			return row
		}
	}
	return models.Question{
		Section: section.Name,
		ID:      commentID,
		Label:   "Commentaire",
		Type:    models.QuestionTypeTextarea,
	}
}

// newQuestionsView lists the visible rows of the section with the draft answers. In a phase the comment row is only
// shown below the list, once a validation asked for a justification.
func newQuestionsView(
	section formschema.Section,
	s *wizard.Session,
	commentID int,
	inPhase bool,
) questionsView {
	view := questionsView{Errors: s.Errors}
	commentListed := false
	for _, row := range section.Rows {
		if inPhase && row.ID == commentID {
			continue
		}
		if !condition.Visible(row, s.Draft, s.Collected) {
			continue
		}
		if row.ID == commentID {
			commentListed = true
		}
		view.Questions = append(view.Questions, newQuestionView(row, s.Draft[row.ID]))
	}
	if s.ShowComment && !commentListed {
		view.ShowComment = true
		view.Comment = newQuestionView(commentQuestion(section, commentID), s.Draft[commentID])
	}
	view.NoVisible = len(view.Questions) == 0 && !view.ShowComment
	return view
}

var projectGroups = []struct { //nolint:gochecknoglobals // read-only
	title   string
	columns []string
}{
	{title: "Informations générales", columns: []string{models.TitleColumn, "Adresse", "Commune", "Opérateur"}},
	{title: "Points de charge Standard", columns: []string{"Nb PDC Std", "Puissance PDC Std"}},
	{title: "Points de charge Pré-équipés", columns: []string{"Nb PDC PE", "Puissance PDC PE"}},
}

var columnLabels = map[string]string{ //nolint:gochecknoglobals // read-only
	"Nb PDC Std":        "Nombre de points de charge",
	"Puissance PDC Std": "Puissance",
	"Nb PDC PE":         "Nombre de points de charge",
	"Puissance PDC PE":  "Puissance",
}

func newProjectView(s *wizard.Session) projectView {
	view := projectView{Summaries: s.Summaries()}
	if s.Project == nil {
		return view
	}
	for _, g := range projectGroups {
		group := groupView{Title: g.title}
		for _, column := range g.columns {
			label := column
			if renamed, ok := columnLabels[column]; ok {
				label = renamed
			}
			value := s.Project.Field(column)
			if column == models.TitleColumn && s.Project.Title != "" {
				value = s.Project.Title
			}
			group.Fields = append(group.Fields, fieldView{Label: label, Value: value})
		}
		view.Groups = append(view.Groups, group)
	}
	return view
}
