package formschema_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/condition"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
)

func TestNewForm(t *testing.T) {
	t.Parallel()
	form, err := formschema.NewForm([]models.Question{
		{Section: "Identification", ID: 2, Label: "Date"},
		{Section: "Terrassement", SectionOrder: 1, ID: 10, Label: "b"},
		{Section: "Identification", ID: 1, Label: "Nom"},
		{Section: "Terrassement", SectionOrder: 1, ID: 9, Label: "a"},
		{Section: " Phase ", SectionOrder: 1, ID: 1, Label: "gabarit"},
		{Section: "", SectionOrder: 1, ID: 1, Label: "orphelin"},
		{Section: "Génie civil", SectionOrder: 2, ID: 1, Label: "c"},
		{Section: "identification ", SectionOrder: 3, ID: 1, Label: "doublon"},
	})
	require.NoError(t, err)

	id := form.Identification()
	require.Equal(t, "Identification", id.Name)
	require.Equal(t, []int{1, 2}, []int{id.Rows[0].ID, id.Rows[1].ID})

	terrassement, ok := form.Section("Terrassement")
	require.True(t, ok)
	require.Equal(t, 9, terrassement.Rows[0].ID, "rows are sorted by numeric id")

	require.Equal(t, []string{"Terrassement", "Génie civil"}, form.Phases())
	require.True(t, form.IsPhase("Génie civil"))
	require.False(t, form.IsPhase("Identification"))

	require.Equal(t, "b", form.Label("Terrassement", 10))
	require.Equal(t, "Question 42", form.Label("Terrassement", 42))
	require.Len(t, form.Questions(), 8)
}

func TestNewForm_empty(t *testing.T) {
	t.Parallel()
	_, err := formschema.NewForm(nil)
	require.ErrorIs(t, err, formschema.ErrInvalidForm)
}

func TestLint(t *testing.T) {
	t.Parallel()
	warnings := formschema.Lint([]models.Question{
		{Section: "A", ID: 1, Type: models.QuestionTypeSelect},
		{Section: "A", ID: 2, Type: models.QuestionTypeText, Condition: "1 = "},
		{Section: "A", ID: 3, Type: models.QuestionTypeText, Condition: `7 = "x"`},
		{Section: "A", ID: 4, Type: models.QuestionTypeText, Condition: `prev.8 = "x"`},
		{Section: "A", ID: 5, Type: models.QuestionTypeText, Condition: `5 = "x"`},
		{Section: "A", ID: 5, Type: "slider"},
		{Section: "B", ID: 6, Type: models.QuestionTypeText, Condition: `prev.1 = "x" and not 6 = "y"`},
	})
	var messages []string
	for _, w := range warnings {
		messages = append(messages, w.String())
	}
	require.Equal(t, []string{
		"A / ID 5 : identifiant en double dans la section",
		"A / ID 1 : liste de choix vide",
		"A / ID 2 : condition invalide : " + conditionErr(t, "1 = "),
		"A / ID 3 : la condition référence la question 7 absente de la section",
		"A / ID 4 : la condition référence la question 8 absente du formulaire",
		"A / ID 5 : la condition dépend de la question elle-même",
		`A / ID 5 : type inconnu "slider"`,
		"B / ID 6 : la condition dépend de la question elle-même",
	}, messages)
}

func conditionErr(t *testing.T, input string) string {
	t.Helper()
	_, err := condition.Parse(input)
	require.Error(t, err)
	return err.Error()
}
