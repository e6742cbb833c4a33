package condition

import (
	"math"
	"strconv"
	"strings"

	"github.com/yusco/siteaudit/internal/models"
)

// tri is the result of evaluating a predicate with Kleene logic.
type tri int8

const (
	triFalse tri = iota
	triTrue
	triUnknown
)

func triOf(b bool) tri {
	if b {
		return triTrue
	}
	return triFalse
}

// Env holds the answers a condition can refer to.
type Env struct {
	Draft models.Answers
	Prior []models.CollectedEntry
}

func (e Env) lookup(ref Ref) (models.Value, bool) {
	if ref.Scope == ScopeDraft {
		v, ok := e.Draft[ref.QuestionID]
		if !ok || v.IsEmpty() {
			return models.Value{}, false
		}
		return v, true
	}
	for i := len(e.Prior) - 1; i >= 0; i-- {
		if v, ok := e.Prior[i].Answers[ref.QuestionID]; ok && !v.IsEmpty() {
			return v, true
		}
	}
	return models.Value{}, false
}

// Evaluate reports whether p holds in env. Unknown results are false.
func Evaluate(p Predicate, env Env) bool {
	if p == nil {
		return true
	}
	return p.eval(env) == triTrue
}

// Visible decides whether the question is shown for the given draft and previously collected entries.
// Questions without condition are always visible. Conditions that do not parse hide the question.
func Visible(q models.Question, current models.Answers, prior []models.CollectedEntry) bool {
	if strings.TrimSpace(q.Condition) == "" {
		return true
	}
	p, err := Parse(q.Condition)
	if err != nil {
		return false
	}
	return Evaluate(p, Env{Draft: current, Prior: prior})
}

func (p Equals) eval(env Env) tri {
	v, ok := env.lookup(p.Ref)
	if !ok {
		return triUnknown
	}
	return triOf(matchesAny(v, p.Value))
}

func (p NotEquals) eval(env Env) tri {
	v, ok := env.lookup(p.Ref)
	if !ok {
		return triUnknown
	}
	return triOf(!matchesAny(v, p.Value))
}

func (p InSet) eval(env Env) tri {
	v, ok := env.lookup(p.Ref)
	if !ok {
		return triUnknown
	}
	for _, want := range p.Values {
		if matchesAny(v, want) {
			return triTrue
		}
	}
	return triFalse
}

func (p Answered) eval(env Env) tri {
	_, ok := env.lookup(p.Ref)
	if !ok {
		return triUnknown
	}
	return triTrue
}

func (p And) eval(env Env) tri {
	result := triTrue
	for _, t := range p.Terms {
		switch t.eval(env) {
		case triFalse:
			return triFalse
		case triUnknown:
			result = triUnknown
		case triTrue:
		}
	}
	return result
}

func (p Or) eval(env Env) tri {
	result := triFalse
	for _, t := range p.Terms {
		switch t.eval(env) {
		case triTrue:
			return triTrue
		case triUnknown:
			result = triUnknown
		case triFalse:
		}
	}
	return result
}

func (p Not) eval(env Env) tri {
	switch p.Term.eval(env) {
	case triTrue:
		return triFalse
	case triFalse:
		return triTrue
	default:
		return triUnknown
	}
}

// matchesAny compares every candidate of v with want. Multiselect answers match when one of the choices matches.
func matchesAny(v models.Value, want string) bool {
	if len(v.Choices) > 0 {
		for _, c := range v.Choices {
			if matches(c, want) {
				return true
			}
		}
		return false
	}
	return matches(v.String(), want)
}

func matches(got, want string) bool {
	got, want = strings.TrimSpace(got), strings.TrimSpace(want)
	if g, ok := ParseNumber(got); ok {
		if w, ok := ParseNumber(want); ok {
			return g == w
		}
	}
	return strings.EqualFold(got, want)
}

// ParseNumber accepts both "3.5" and "3,5". NaN and infinities are not numbers an auditor can type.
func ParseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
