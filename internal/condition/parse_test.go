package condition_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/condition"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  condition.Predicate
	}{
		{
			name:  "blank",
			input: "  ",
			want:  nil,
		},
		{
			name:  "equals bare word",
			input: "12=Oui",
			want:  condition.Equals{Ref: condition.Ref{QuestionID: 12}, Value: "Oui"},
		},
		{
			name:  "equals multi word",
			input: `2 == Non conforme`,
			want:  condition.Equals{Ref: condition.Ref{QuestionID: 2}, Value: "Non conforme"},
		},
		{
			name:  "not equals quoted",
			input: `Q3 <> "Sans objet"`,
			want:  condition.NotEquals{Ref: condition.Ref{QuestionID: 3}, Value: "Sans objet"},
		},
		{
			name:  "in set",
			input: `4 in (Neuf, 'Rénovation', "Sans objet")`,
			want: condition.InSet{
				Ref:    condition.Ref{QuestionID: 4},
				Values: []string{"Neuf", "Rénovation", "Sans objet"},
			},
		},
		{
			name:  "not in set",
			input: `4 not in [A, B]`,
			want: condition.Not{Term: condition.InSet{
				Ref:    condition.Ref{QuestionID: 4},
				Values: []string{"A", "B"},
			}},
		},
		{
			name:  "prior scope answered",
			input: "prev.7",
			want:  condition.Answered{Ref: condition.Ref{QuestionID: 7, Scope: condition.ScopePrior}},
		},
		{
			name:  "precedence",
			input: "1 = a or 2 = b and !3",
			want: condition.Or{Terms: []condition.Predicate{
				condition.Equals{Ref: condition.Ref{QuestionID: 1}, Value: "a"},
				condition.And{Terms: []condition.Predicate{
					condition.Equals{Ref: condition.Ref{QuestionID: 2}, Value: "b"},
					condition.Not{Term: condition.Answered{Ref: condition.Ref{QuestionID: 3}}},
				}},
			}},
		},
		{
			name:  "parentheses",
			input: "(1 = a || 2 = b) && 3 != c",
			want: condition.And{Terms: []condition.Predicate{
				condition.Or{Terms: []condition.Predicate{
					condition.Equals{Ref: condition.Ref{QuestionID: 1}, Value: "a"},
					condition.Equals{Ref: condition.Ref{QuestionID: 2}, Value: "b"},
				}},
				condition.NotEquals{Ref: condition.Ref{QuestionID: 3}, Value: "c"},
			}},
		},
		{
			name:  "apostrophe inside bare word",
			input: "5 = l'écart",
			want:  condition.Equals{Ref: condition.Ref{QuestionID: 5}, Value: "l'écart"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := condition.Parse(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []string{
		"Oui = 12",
		"12 =",
		"(1 = a",
		"1 = a)",
		`1 = "unterminated`,
		"1 in a, b",
		"1 not 2",
		"1 & 2",
		"1 < 2",
		"and",
	}
	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			_, err := condition.Parse(input)
			require.ErrorIs(t, err, condition.ErrSyntax)
		})
	}
}

func TestPredicate_StringRoundTrip(t *testing.T) {
	inputs := []string{
		`1 = "Oui"`,
		`prev.2 != "Non conforme"`,
		`3 in ("a", "b c")`,
		`not (4 = "x") and (5 or 6)`,
		`(1 = "a" or 2 = "b") and 3`,
	}
	for _, input := range inputs {
		t.Run(input, func(t *testing.T) {
			t.Parallel()
			first, err := condition.Parse(input)
			require.NoError(t, err)
			second, err := condition.Parse(first.String())
			require.NoError(t, err)
			require.Equal(t, first, second)
		})
	}
}

func TestReferences(t *testing.T) {
	p, err := condition.Parse("1 = a and (prev.2 or not 3 in (x))")
	require.NoError(t, err)
	require.Equal(t, []condition.Ref{
		{QuestionID: 1},
		{QuestionID: 2, Scope: condition.ScopePrior},
		{QuestionID: 3},
	}, condition.References(p))
}
