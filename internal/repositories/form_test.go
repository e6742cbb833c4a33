package repositories_test

import (
	"context"
	"errors"
	"io"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/repositories"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

func TestFormRepository_ListQuestions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewFormRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	questions, err := repo.ListQuestions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, questions)
	require.Equal(t, "Identification", questions[0].Section)

	var conformity *models.Question
	for i := range questions {
		if questions[i].Section == "Terrassement" && questions[i].ID == 2 {
			conformity = &questions[i]
		}
	}
	require.NotNil(t, conformity)
	require.Equal(t, models.QuestionTypeSelect, conformity.Type)
	require.Equal(t, []string{"Conforme", "Non conforme"}, conformity.Options)
	require.True(t, conformity.Mandatory)
}

func TestFormRepository_ReplaceQuestions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := repositories.NewFormRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))

	want := []models.Question{
		{Section: "Identification", SectionOrder: 0, ID: 1, Label: "Auditeur", Type: models.QuestionTypeText,
			Mandatory: true},
		{Section: "Levage", SectionOrder: 1, ID: 1, Label: "Charge", Type: models.QuestionTypeSelect,
			Options: []string{"Légère", "Lourde"}, Condition: `prev.1 = "x"`, Description: "t"},
	}
	require.NoError(t, repo.ReplaceQuestions(ctx, want))

	got, err := repo.ListQuestions(ctx)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFormRepository_ListQuestions_queryFailure(t *testing.T) {
	t.Parallel()
	db, mock := newMockDB(t)
	repo := repositories.NewFormRepository(db, testhelpers.NewLogger(io.Discard))

	mock.ExpectQuery(regexp.QuoteMeta("SELECT section, section_order")).WillReturnError(errors.New("disk I/O error"))

	_, err := repo.ListQuestions(context.Background())
	require.ErrorContains(t, err, "disk I/O error")
	require.NoError(t, mock.ExpectationsWereMet())
}
