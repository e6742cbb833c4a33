package models

import (
	"maps"
	"slices"
	"strings"
)

// AttachmentRef points to an uploaded file kept in the attachment store.
type AttachmentRef struct {
	ID          string `json:"id"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Value is the answer to one question: free text, a set of choices or photo attachments.
type Value struct {
	Text        string          `json:"text,omitempty"`
	Choices     []string        `json:"choices,omitempty"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// TextValue builds a free text answer. Line breaks are stored as "\n" whatever the browser posted.
func TextValue(s string) Value {
	return Value{Text: newlines.Replace(s)}
}

// IsEmpty reports whether the value carries nothing an auditor typed, picked or uploaded.
func (v Value) IsEmpty() bool {
	if strings.TrimSpace(v.Text) != "" {
		return false
	}
	for _, c := range v.Choices {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return len(v.Attachments) == 0
}

// String renders the value as a single cell, used by the CSV export and the report.
func (v Value) String() string {
	switch {
	case len(v.Attachments) > 0:
		names := make([]string, len(v.Attachments))
		for i, a := range v.Attachments {
			names[i] = a.FileName
		}
		return strings.Join(names, ", ")
	case len(v.Choices) > 0:
		return strings.Join(v.Choices, ", ")
	default:
		return strings.TrimSpace(v.Text)
	}
}

func (v Value) clone() Value {
	return Value{
		Text:        v.Text,
		Choices:     slices.Clone(v.Choices),
		Attachments: slices.Clone(v.Attachments),
	}
}

// Answers maps question ids to answers for one phase draft.
type Answers map[int]Value

// Clone returns a deep copy so that collected entries never alias a draft.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, v := range a {
		out[id] = v.clone()
	}
	return out
}

// Answered returns the ids of non-empty answers in ascending order.
func (a Answers) Answered() []int {
	ids := make([]int, 0, len(a))
	for _, id := range slices.Sorted(maps.Keys(a)) {
		if !a[id].IsEmpty() {
			ids = append(ids, id)
		}
	}
	return ids
}

// CollectedEntry is one validated phase submission. Entries are never modified after they are appended.
type CollectedEntry struct {
	PhaseName string  `json:"phase_name"`
	Answers   Answers `json:"answers"`
}
