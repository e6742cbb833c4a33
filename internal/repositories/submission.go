package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/sqlite"
)

// SubmissionRepository is the default persistence client of completed audits.
type SubmissionRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewSubmissionRepository(db *sqlite.Database, logger *slog.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger.With("source", "SubmissionRepository"),
	}
}

type submissionRow struct {
	ID           string    `db:"id"`
	ProjectTitle string    `db:"project_title"`
	Project      string    `db:"project"`
	StartedAt    time.Time `db:"started_at"`
	CompletedAt  time.Time `db:"completed_at"`
}

type entryRow struct {
	SubmissionID string `db:"submission_id"`
	Position     int    `db:"position"`
	PhaseName    string `db:"phase_name"`
	Answers      string `db:"answers"`
}

// SaveSubmission writes the submission and its entries and returns the submission id. Saving the same id again
// replaces the previous write so that a retried save never duplicates entries.
func (r *SubmissionRepository) SaveSubmission(ctx context.Context, submission models.Submission) (string, error) {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.CompletedAt.IsZero() {
		submission.CompletedAt = time.Now()
	}
	project, err := json.Marshal(submission.Project)
	if err != nil {
		return "", errors.Wrap(err, "encode project")
	}

	tx, err := r.db.ReadWrite.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	row := submissionRow{
		ID:           submission.ID,
		ProjectTitle: submission.Project.Title,
		Project:      string(project),
		StartedAt:    submission.StartedAt.UTC(),
		CompletedAt:  submission.CompletedAt.UTC(),
	}
	stmt := `INSERT INTO submissions (id, project_title, project, started_at, completed_at)
VALUES (:id, :project_title, :project, :started_at, :completed_at)
ON CONFLICT (id) DO UPDATE SET project_title = excluded.project_title,
                               project       = excluded.project,
                               started_at    = excluded.started_at,
                               completed_at  = excluded.completed_at`
	if _, err = tx.NamedExecContext(ctx, stmt, row); err != nil {
		return "", errors.Wrap(err, "upsert submission", slog.String("id", submission.ID))
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM submission_entries WHERE submission_id = ?`,
		submission.ID); err != nil {
		return "", errors.Wrap(err, "delete previous entries", slog.String("id", submission.ID))
	}
	for i, entry := range submission.Entries {
		answers, marshalErr := json.Marshal(entry.Answers)
		if marshalErr != nil {
			return "", errors.Wrap(marshalErr, "encode answers", slog.Int("position", i))
		}
		if _, err = tx.NamedExecContext(ctx, `INSERT INTO submission_entries (submission_id, position, phase_name, answers)
VALUES (:submission_id, :position, :phase_name, :answers)`, entryRow{
			SubmissionID: submission.ID,
			Position:     i,
			PhaseName:    entry.PhaseName,
			Answers:      string(answers),
		}); err != nil {
			return "", errors.Wrap(err, "insert entry", slog.Int("position", i))
		}
	}
	if err = tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "saved submission",
		slog.String("id", submission.ID), slog.Int("entries", len(submission.Entries)))
	return submission.ID, nil
}

// Get returns a stored submission with its entries in completion order.
func (r *SubmissionRepository) Get(ctx context.Context, id string) (*models.Submission, error) {
	var row submissionRow
	err := r.db.ReadOnly.GetContext(ctx, &row,
		`SELECT id, project_title, project, started_at, completed_at FROM submissions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrap(ErrNotFound, "submission", slog.String("id", id))
	}
	if err != nil {
		return nil, errors.Wrap(err, "select submission", slog.String("id", id))
	}
	submission, err := row.toModel()
	if err != nil {
		return nil, err
	}

	var entries []entryRow
	if err = r.db.ReadOnly.SelectContext(ctx, &entries, `SELECT submission_id, position, phase_name, answers
FROM submission_entries
WHERE submission_id = ?
ORDER BY position`, id); err != nil {
		return nil, errors.Wrap(err, "select entries", slog.String("id", id))
	}
	for _, e := range entries {
		answers := models.Answers{}
		if err = json.Unmarshal([]byte(e.Answers), &answers); err != nil {
			return nil, errors.Wrap(err, "decode answers", slog.Int("position", e.Position))
		}
		submission.Entries = append(submission.Entries, models.CollectedEntry{PhaseName: e.PhaseName, Answers: answers})
	}
	return submission, nil
}

// List returns the stored submissions without their entries, most recent first.
func (r *SubmissionRepository) List(ctx context.Context) ([]models.Submission, error) {
	var rows []submissionRow
	if err := r.db.ReadOnly.SelectContext(ctx, &rows, `SELECT id, project_title, project, started_at, completed_at
FROM submissions
ORDER BY completed_at DESC`); err != nil {
		return nil, errors.Wrap(err, "select submissions")
	}
	submissions := make([]models.Submission, 0, len(rows))
	for _, row := range rows {
		s, err := row.toModel()
		if err != nil {
			return nil, err
		}
		submissions = append(submissions, *s)
	}
	return submissions, nil
}

func (row submissionRow) toModel() (*models.Submission, error) {
	var project models.Project
	if err := json.Unmarshal([]byte(row.Project), &project); err != nil {
		return nil, errors.Wrap(err, "decode project", slog.String("id", row.ID))
	}
	return &models.Submission{
		ID:          row.ID,
		Project:     project,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
	}, nil
}
