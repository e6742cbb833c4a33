package formschema

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

// Section is one group of questions, either the identification section or a phase.
type Section struct {
	Name string
	Rows []models.Question
}

// Form is an immutable, ordered view over the rows of a form definition.
type Form struct {
	Sections []Section
}

// NewForm groups the rows by section. Sections keep their order of appearance (or SectionOrder when set) and rows
// are sorted by numeric id.
func NewForm(questions []models.Question) (*Form, error) {
	if len(questions) == 0 {
		return nil, errors.Wrap(ErrInvalidForm, "form has no questions")
	}
	type group struct {
		order int
		first int
		rows  []models.Question
	}
	groups := map[string]*group{}
	var names []string
	for i, q := range questions {
		g, ok := groups[q.Section]
		if !ok {
			g = &group{order: q.SectionOrder, first: i}
			groups[q.Section] = g
			names = append(names, q.Section)
		}
		g.rows = append(g.rows, q)
	}
	slices.SortStableFunc(names, func(a, b string) int {
		ga, gb := groups[a], groups[b]
		return cmp.Or(cmp.Compare(ga.order, gb.order), cmp.Compare(ga.first, gb.first))
	})
	form := &Form{Sections: make([]Section, len(names))}
	for i, name := range names {
		rows := groups[name].rows
		slices.SortStableFunc(rows, func(a, b models.Question) int { return cmp.Compare(a.ID, b.ID) })
		form.Sections[i] = Section{Name: name, Rows: rows}
	}
	return form, nil
}

// Identification is the first section of the form, completed exactly once per audit.
func (f *Form) Identification() Section {
	return f.Sections[0]
}

// Section looks a section up by its exact name.
func (f *Form) Section(name string) (Section, bool) {
	for _, s := range f.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// Phases lists the sections an auditor may pick in the phase loop. The identification section, a section literally
// named "phase" and unnamed sections are excluded.
func (f *Form) Phases() []string {
	excluded := map[string]bool{
		cleanName(f.Identification().Name): true,
		"phase":                             true,
		"":                                  true,
	}
	var phases []string
	for _, s := range f.Sections {
		if excluded[cleanName(s.Name)] {
			continue
		}
		phases = append(phases, s.Name)
	}
	return phases
}

// IsPhase reports whether name can be chosen in the phase loop.
func (f *Form) IsPhase(name string) bool {
	return slices.Contains(f.Phases(), name)
}

// Question returns the row with the given id in a section.
func (f *Form) Question(section string, id int) (models.Question, bool) {
	s, ok := f.Section(section)
	if !ok {
		return models.Question{}, false
	}
	for _, q := range s.Rows {
		if q.ID == id {
			return q, true
		}
	}
	return models.Question{}, false
}

// Label returns the label of a question, or a placeholder naming its id when the form no longer defines it.
func (f *Form) Label(section string, id int) string {
	if q, ok := f.Question(section, id); ok {
		return q.Label
	}
	return "Question " + strconv.Itoa(id)
}

// Questions flattens the form back into rows.
func (f *Form) Questions() []models.Question {
	var out []models.Question
	for _, s := range f.Sections {
		out = append(out, s.Rows...)
	}
	return out
}

func cleanName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
