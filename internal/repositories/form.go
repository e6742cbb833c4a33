package repositories

import (
	"context"
	"log/slog"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/sqlite"
)

type FormRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewFormRepository(db *sqlite.Database, logger *slog.Logger) *FormRepository {
	return &FormRepository{
		db:     db,
		logger: logger.With("source", "FormRepository"),
	}
}

type questionRow struct {
	models.Question
	Options string `db:"options"`
}

// ListQuestions returns the form definition ordered by section and question id.
func (r *FormRepository) ListQuestions(ctx context.Context) ([]models.Question, error) {
	var rows []questionRow
	stmt := `SELECT section, section_order, id, label, type, options, condition, mandatory, description
FROM form_questions
ORDER BY section_order, id`
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, stmt); err != nil {
		return nil, errors.Wrap(err, "select form questions")
	}
	questions := make([]models.Question, len(rows))
	for i, row := range rows {
		q := row.Question
		q.Options = models.SplitOptions(row.Options)
		questions[i] = q
	}
	return questions, nil
}

// ReplaceQuestions swaps the whole form definition in one transaction.
func (r *FormRepository) ReplaceQuestions(ctx context.Context, questions []models.Question) error {
	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM form_questions`); err != nil {
		return errors.Wrap(err, "delete form questions")
	}
	stmt := `INSERT INTO form_questions (section, section_order, id, label, type, options, condition, mandatory,
                            description)
VALUES (:section, :section_order, :id, :label, :type, :options, :condition, :mandatory, :description)`
	for _, q := range questions {
		row := questionRow{Question: q, Options: models.JoinOptions(q.Options)}
		if _, err = tx.NamedExecContext(ctx, stmt, row); err != nil {
			return errors.Wrap(err, "insert form question",
				slog.String("section", q.Section), slog.Int("id", q.ID))
		}
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "replaced form definition", slog.Int("questions", len(questions)))
	return nil
}
