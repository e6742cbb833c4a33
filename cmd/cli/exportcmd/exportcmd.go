package exportcmd

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/yusco/siteaudit/cmd/cli/clienv"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/export"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/redisstore"
	"github.com/yusco/siteaudit/internal/repositories"
	"github.com/yusco/siteaudit/internal/sqlite"
)

var Group = &cobra.Group{
	ID:    "export",
	Title: "Stored audits",
}

var (
	sqliteURL string
	store     string
	redisURL  string
	outDir    string
)

func init() {
	flags := Export.PersistentFlags()
	flags.StringVar(&sqliteURL, "sqlite-url", clienv.SQLiteURL(), "SQLite URL")
	flags.StringVar(&store, "store", clienv.Getenv("AUDIT_STORE", "sqlite"), "sqlite or redis")
	flags.StringVar(&redisURL, "redis-url", clienv.Getenv("AUDIT_REDIS_URL", "redis://localhost:6379/0"),
		"Redis URL when --store=redis")
	Export.Flags().StringVar(&outDir, "out", ".", "output directory")
	Export.AddCommand(list)
}

type submissionGetter interface {
	Get(ctx context.Context, id string) (*models.Submission, error)
}

var Export = &cobra.Command{
	Use:     "export <submission-id>",
	GroupID: "export",
	Short:   "Write the CSV, ZIP and DOCX files of a stored audit",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := clienv.Logger()
		db, err := clienv.OpenDatabase(ctx, sqliteURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		var submissions submissionGetter = repositories.NewSubmissionRepository(db, logger)
		if store == "redis" {
			var rs *redisstore.Store
			if rs, err = redisstore.Open(ctx, redisURL, logger); err != nil {
				return errors.Wrap(err, "open redis store")
			}
			defer func() { _ = rs.Close() }()
			submissions = rs
		}
		submission, err := submissions.Get(ctx, args[0])
		if err != nil {
			return errors.Wrap(err, "get submission", slog.String("id", args[0]))
		}
		form, err := loadForm(ctx, db, logger)
		if err != nil {
			return err
		}
		paths, err := WriteFiles(ctx, outDir, *submission, form, repositories.NewAttachmentRepository(db, logger),
			logger)
		for _, p := range paths {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return err
	},
}

var list = &cobra.Command{
	Use:   "list",
	Short: "List the stored audits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		logger := clienv.Logger()
		out := cmd.OutOrStdout()
		if store == "redis" {
			rs, err := redisstore.Open(ctx, redisURL, logger)
			if err != nil {
				return errors.Wrap(err, "open redis store")
			}
			defer func() { _ = rs.Close() }()
			ids, err := rs.List(ctx)
			if err != nil {
				return errors.Wrap(err, "list submissions")
			}
			for _, id := range ids {
				_, _ = fmt.Fprintln(out, id)
			}
			return nil
		}
		db, err := clienv.OpenDatabase(ctx, sqliteURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		submissions, err := repositories.NewSubmissionRepository(db, logger).List(ctx)
		if err != nil {
			return errors.Wrap(err, "list submissions")
		}
		for _, s := range submissions {
			_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", s.ID, s.CompletedAt.Format(time.DateTime), s.Project.Title)
		}
		return nil
	},
}

// loadForm reads the labels of the form definition stored in SQLite.
func loadForm(ctx context.Context, db *sqlite.Database, logger *slog.Logger) (*formschema.Form, error) {
	questions, err := repositories.NewFormRepository(db, logger).ListQuestions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	form, err := formschema.NewForm(questions)
	if err != nil {
		return nil, errors.Wrap(err, "build form")
	}
	return form, nil
}

// WriteFiles writes each export of the submission into dir. A failing export does not prevent the others; the
// paths of the files written are returned along with the joined errors.
func WriteFiles(
	ctx context.Context,
	dir string,
	submission models.Submission,
	labels export.Labeler,
	attachments export.AttachmentGetter,
	logger *slog.Logger,
) ([]string, error) {
	names := export.NamesFor(submission.Project.Title, submission.CompletedAt)
	jobs := []struct {
		name  string
		write func(*bytes.Buffer) error
	}{
		{name: names.CSV, write: func(b *bytes.Buffer) error { return export.WriteCSV(b, submission, labels) }},
		{name: names.ZIP, write: func(b *bytes.Buffer) error {
			return export.WriteZIP(ctx, b, submission.Entries, attachments, submission.CompletedAt)
		}},
		{name: names.DOCX, write: func(b *bytes.Buffer) error {
			return export.WriteDOCX(b, submission, labels)
		}},
	}

	var (
		paths []string
		errs  []error
	)
	for _, job := range jobs {
		var buf bytes.Buffer
		err := job.write(&buf)
		if errors.Is(err, export.ErrNoAttachments) {
			logger.LogAttrs(ctx, slog.LevelInfo, "no photo to archive", slog.String("file", job.name))
			continue
		}
		if err != nil {
			errs = append(errs, errors.Wrap(err, "export", slog.String("file", job.name)))
			continue
		}
		path := filepath.Join(dir, job.name)
		if err = os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // exports are meant to be shared
			errs = append(errs, errors.Wrap(err, "write file", slog.String("path", path)))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}
