package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/sqlite"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

func main() {
	logger := testhelpers.NewLogger(os.Stdout)
	var (
		err       error
		start     = time.Now()
		ctx       context.Context
		sqliteURL string
		ok        bool
		cancel    context.CancelFunc
	)
	ctx = context.Background()
	ctx, cancel = context.WithTimeout(ctx, 5*time.Second) //nolint:mnd // 5 seconds

	if sqliteURL, ok = os.LookupEnv("AUDIT_SQLITE_URL"); !ok {
		logger.LogAttrs(ctx, slog.LevelError, "AUDIT_SQLITE_URL not set")
		os.Exit(1)
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, sqliteURL, logger); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error creating database",
			slog.String("url", sqliteURL), errors.SlogError(err))
		os.Exit(1)
	}

	// The form definition must survive the migration, an empty form means the wizard cannot start.
	var count int
	if err = db.ReadOnly.GetContext(ctx, &count, `SELECT COUNT(*) FROM form_questions`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting form questions", errors.SlogError(err))
		os.Exit(1)
	}
	if count == 0 {
		logger.LogAttrs(ctx, slog.LevelError, "no form question found, something is likely wrong")
		os.Exit(1)
	}
	var sites int
	if err = db.ReadOnly.GetContext(ctx, &sites, `SELECT COUNT(*) FROM sites`); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "error counting sites", errors.SlogError(err))
		os.Exit(1)
	}
	logger.LogAttrs(ctx, slog.LevelInfo, "definition size", slog.Int("questions", count), slog.Int("sites", sites))

	logger.LogAttrs(ctx, slog.LevelInfo, "Migration test successful 🙌", slog.Duration("duration", time.Since(start)))
	cancel()
	os.Exit(0)
}
