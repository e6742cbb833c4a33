package models

import (
	"strings"
)

type QuestionType string

const (
	QuestionTypeText        QuestionType = "text"
	QuestionTypeTextarea    QuestionType = "textarea"
	QuestionTypeNumber      QuestionType = "number"
	QuestionTypeSelect      QuestionType = "select"
	QuestionTypeMultiselect QuestionType = "multiselect"
	QuestionTypeDate        QuestionType = "date"
	QuestionTypePhoto       QuestionType = "photo"
)

// QuestionTypes lists every supported question type.
var QuestionTypes = []QuestionType{ //nolint:gochecknoglobals // read-only lookup table
	QuestionTypeText,
	QuestionTypeTextarea,
	QuestionTypeNumber,
	QuestionTypeSelect,
	QuestionTypeMultiselect,
	QuestionTypeDate,
	QuestionTypePhoto,
}

// ParseQuestionType normalises a type cell from a form definition. Unknown types are reported with ok == false.
func ParseQuestionType(s string) (QuestionType, bool) {
	t := QuestionType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case "", "texte":
		return QuestionTypeText, true
	case "nombre", "numeric":
		return QuestionTypeNumber, true
	case "image", "photos":
		return QuestionTypePhoto, true
	}
	for _, known := range QuestionTypes {
		if t == known {
			return t, true
		}
	}
	return t, false
}

// Question is one row of the form definition. Its identity is (Section, ID).
type Question struct {
	Section      string       `db:"section"       json:"section"       yaml:"section"`
	SectionOrder int          `db:"section_order" json:"section_order" yaml:"-"`
	ID           int          `db:"id"            json:"id"            yaml:"id"`
	Label        string       `db:"label"         json:"label"         yaml:"label"`
	Type         QuestionType `db:"type"          json:"type"          yaml:"type"`
	Options      []string     `db:"-"             json:"options"       yaml:"options"`
	Condition    string       `db:"condition"     json:"condition"     yaml:"condition"`
	Mandatory    bool         `db:"mandatory"     json:"mandatory"     yaml:"mandatory"`
	Description  string       `db:"description"   json:"description"   yaml:"description"`
}

// HasOption reports whether v is one of the enumerated options.
func (q Question) HasOption(v string) bool {
	v = strings.TrimSpace(v)
	for _, o := range q.Options {
		if o == v {
			return true
		}
	}
	return false
}

// SplitOptions parses the options cell of a tabular form definition. Options are separated by semicolons or new lines.
func SplitOptions(cell string) []string {
	var options []string
	for _, o := range strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == '\n' }) {
		if o = strings.TrimSpace(o); o != "" {
			options = append(options, o)
		}
	}
	return options
}

// JoinOptions is the inverse of SplitOptions.
func JoinOptions(options []string) string {
	return strings.Join(options, ";")
}
