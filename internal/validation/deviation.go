package validation

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/yusco/siteaudit/internal/condition"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

// DeviationRule decides whether the answers of a draft report a deviation, in which case the comment question must
// be filled in.
type DeviationRule interface {
	Deviates(env condition.Env, project *models.Project) bool
}

// NeverDeviates disables the comment requirement.
type NeverDeviates struct{}

func (NeverDeviates) Deviates(condition.Env, *models.Project) bool { return false }

// PredicateRule is a deviation rule written in the condition language, e.g. `2 = "Non conforme"`.
type PredicateRule struct {
	Predicate condition.Predicate
}

func (r PredicateRule) Deviates(env condition.Env, _ *models.Project) bool {
	if r.Predicate == nil {
		return false
	}
	return condition.Evaluate(r.Predicate, env)
}

// CELRule is a deviation rule written as a CEL expression over `answers` (question id to answer) and `project`
// (column to value). Evaluation errors and non-boolean results count as no deviation.
type CELRule struct {
	source  string
	program cel.Program
}

// NewCELRule compiles expr, for example `"2" in answers && answers["2"] == "Non conforme"`.
func NewCELRule(expr string) (*CELRule, error) {
	env, err := cel.NewEnv(
		cel.Variable("answers", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("project", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL env")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "compile CEL expression", slog.String("expr", expr))
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "create CEL program", slog.String("expr", expr))
	}
	return &CELRule{source: expr, program: program}, nil
}

func (r *CELRule) String() string {
	return r.source
}

func (r *CELRule) Deviates(env condition.Env, project *models.Project) bool {
	out, _, err := r.program.Eval(map[string]any{
		"answers": celAnswers(env.Draft),
		"project": celProject(project),
	})
	if err != nil {
		return false
	}
	deviates, ok := out.Value().(bool)
	return ok && deviates
}

func celAnswers(answers models.Answers) map[string]any {
	out := make(map[string]any, len(answers))
	for id, v := range answers {
		if v.IsEmpty() {
			continue
		}
		key := strconv.Itoa(id)
		switch {
		case len(v.Choices) > 0:
			choices := make([]any, len(v.Choices))
			for i, c := range v.Choices {
				choices[i] = c
			}
			out[key] = choices
		case len(v.Attachments) > 0:
			names := make([]any, len(v.Attachments))
			for i, a := range v.Attachments {
				names[i] = a.FileName
			}
			out[key] = names
		default:
			out[key] = strings.TrimSpace(v.Text)
		}
	}
	return out
}

func celProject(project *models.Project) map[string]string {
	out := map[string]string{}
	if project == nil {
		return out
	}
	for k, v := range project.Fields {
		out[k] = v
	}
	out[models.TitleColumn] = project.Title
	return out
}

// NewDeviationRule builds the configured rule. A CEL expression takes precedence over a condition; when both are
// blank the comment is never required.
func NewDeviationRule(conditionText, celExpr string) (DeviationRule, error) {
	if strings.TrimSpace(celExpr) != "" {
		rule, err := NewCELRule(celExpr)
		if err != nil {
			return nil, err
		}
		return rule, nil
	}
	if strings.TrimSpace(conditionText) == "" {
		return NeverDeviates{}, nil
	}
	p, err := condition.Parse(conditionText)
	if err != nil {
		return nil, errors.Wrap(err, "parse deviation rule")
	}
	return PredicateRule{Predicate: p}, nil
}
