package formcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/yusco/siteaudit/cmd/cli/clienv"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/repositories"
)

var ErrLint = errors.NewSentinel("form definition has warnings")

var Group = &cobra.Group{
	ID:    "definitions",
	Title: "Form and site definitions",
}

var sqliteURL string

func init() {
	Form.PersistentFlags().StringVar(&sqliteURL, "sqlite-url", clienv.SQLiteURL(), "SQLite URL")
	Sites.PersistentFlags().StringVar(&sqliteURL, "sqlite-url", clienv.SQLiteURL(), "SQLite URL")
	Form.AddCommand(importForm, lintForm)
	Sites.AddCommand(importSites)
}

var Form = &cobra.Command{
	Use:     "form",
	GroupID: "definitions",
	Short:   "Manage the form definition",
}

var Sites = &cobra.Command{
	Use:     "sites",
	GroupID: "definitions",
	Short:   "Manage the site list",
}

var importForm = &cobra.Command{
	Use:   "import <file.yaml|file.csv>",
	Short: "Replace the form definition stored in SQLite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := clienv.Logger()
		questions, err := ReadForm(args[0])
		if err != nil {
			return err
		}
		for _, w := range formschema.Lint(questions) {
			logger.LogAttrs(ctx, slog.LevelWarn, "form definition warning", slog.String("warning", w.String()))
		}
		db, err := clienv.OpenDatabase(ctx, sqliteURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		if err = repositories.NewFormRepository(db, logger).ReplaceQuestions(ctx, questions); err != nil {
			return errors.Wrap(err, "replace questions")
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "form imported", slog.Int("questions", len(questions)))
		return nil
	},
}

var lintForm = &cobra.Command{
	Use:   "lint <file.yaml|file.csv>",
	Short: "Check a form definition without importing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		questions, err := ReadForm(args[0])
		if err != nil {
			return err
		}
		return Lint(cmd.OutOrStdout(), questions)
	},
}

var importSites = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Replace the site list stored in SQLite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := clienv.Logger()
		list, err := readSites(args[0])
		if err != nil {
			return err
		}
		db, err := clienv.OpenDatabase(ctx, sqliteURL, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		return ImportSites(ctx, repositories.NewSiteRepository(db, logger), list, logger)
	},
}

// ReadForm decodes a form definition file and checks that it can be served.
func ReadForm(path string) ([]models.Question, error) {
	format, err := formschema.FormatOf(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open form file", slog.String("path", path))
	}
	defer func() { _ = f.Close() }()
	questions, err := formschema.DecodeForm(f, format)
	if err != nil {
		return nil, errors.Wrap(err, "decode form file", slog.String("path", path))
	}
	if _, err = formschema.NewForm(questions); err != nil {
		return nil, errors.Wrap(err, "build form", slog.String("path", path))
	}
	return questions, nil
}

// Lint prints one line per warning and fails when there is any.
func Lint(w io.Writer, questions []models.Question) error {
	warnings := formschema.Lint(questions)
	for _, warning := range warnings {
		if _, err := fmt.Fprintln(w, warning.String()); err != nil {
			return errors.Wrap(err, "print warning")
		}
	}
	if len(warnings) > 0 {
		return errors.Wrap(ErrLint, "lint", slog.Int("warnings", len(warnings)))
	}
	_, _ = fmt.Fprintf(w, "%d questions, aucune anomalie\n", len(questions))
	return nil
}

func readSites(path string) (models.SiteList, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.SiteList{}, errors.Wrap(err, "open site file", slog.String("path", path))
	}
	defer func() { _ = f.Close() }()
	list, err := formschema.DecodeSites(f)
	if err != nil {
		return models.SiteList{}, errors.Wrap(err, "decode site file", slog.String("path", path))
	}
	return list, nil
}

type siteReplacer interface {
	ReplaceSites(ctx context.Context, list models.SiteList) error
}

func ImportSites(ctx context.Context, repo siteReplacer, list models.SiteList, logger *slog.Logger) error {
	if len(list.Sites) == 0 {
		return errors.Wrap(formschema.ErrInvalidSites, "no site to import")
	}
	if err := repo.ReplaceSites(ctx, list); err != nil {
		return errors.Wrap(err, "replace sites")
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "sites imported", slog.Int("sites", len(list.Sites)))
	return nil
}
