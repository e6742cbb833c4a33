// Package condition decides whether a form question is visible.
//
// A question's condition cell is parsed into a small predicate tree (equals, not-equals, in-set, answered, and/or/not)
// and evaluated against the draft answers of the current phase and the entries collected earlier in the audit.
// A reference to a question that has no answer is unknown, and unknown is never visible.
package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Scope tells where a reference looks for its answer.
type Scope int

const (
	// ScopeDraft reads the answers of the phase being filled.
	ScopeDraft Scope = iota
	// ScopePrior reads the most recent collected entry that answered the question.
	ScopePrior
)

// Ref points to the answer of another question.
type Ref struct {
	QuestionID int
	Scope      Scope
}

func (r Ref) String() string {
	if r.Scope == ScopePrior {
		return fmt.Sprintf("prev.%d", r.QuestionID)
	}
	return strconv.Itoa(r.QuestionID)
}

// Predicate is one node of a parsed condition. The set of nodes is closed.
type Predicate interface {
	fmt.Stringer
	eval(env Env) tri
}

// Equals holds when the referenced answer equals Value.
type Equals struct {
	Ref   Ref
	Value string
}

// NotEquals holds when the referenced answer exists and differs from Value.
type NotEquals struct {
	Ref   Ref
	Value string
}

// InSet holds when the referenced answer is one of Values.
type InSet struct {
	Ref    Ref
	Values []string
}

// Answered holds when the referenced question has a non-empty answer.
type Answered struct {
	Ref Ref
}

type And struct {
	Terms []Predicate
}

type Or struct {
	Terms []Predicate
}

type Not struct {
	Term Predicate
}

func quote(s string) string {
	return strconv.Quote(s)
}

func (p Equals) String() string    { return fmt.Sprintf("%s = %s", p.Ref, quote(p.Value)) }
func (p NotEquals) String() string { return fmt.Sprintf("%s != %s", p.Ref, quote(p.Value)) }
func (p Answered) String() string  { return p.Ref.String() }
func (p Not) String() string       { return fmt.Sprintf("not (%s)", p.Term) }

func (p InSet) String() string {
	quoted := make([]string, len(p.Values))
	for i, v := range p.Values {
		quoted[i] = quote(v)
	}
	return fmt.Sprintf("%s in (%s)", p.Ref, strings.Join(quoted, ", "))
}

func (p And) String() string { return joinTerms(p.Terms, " and ") }
func (p Or) String() string  { return joinTerms(p.Terms, " or ") }

func joinTerms(terms []Predicate, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		switch t.(type) {
		case And, Or:
			parts[i] = "(" + t.String() + ")"
		default:
			parts[i] = t.String()
		}
	}
	return strings.Join(parts, sep)
}
