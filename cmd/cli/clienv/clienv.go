// Package clienv holds what the CLI commands share: logger, environment defaults and the database.
package clienv

import (
	"context"
	"log/slog"
	"os"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/logging"
	"github.com/yusco/siteaudit/internal/sqlite"
)

// Logger writes to stderr so that command output on stdout stays machine readable.
func Logger() *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelInfo,
		ReplaceAttr: nil,
	})))
}

// Getenv returns the environment variable or fallback when it is unset. Used for flag defaults.
func Getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

// SQLiteURL is the default of the --sqlite-url flags, shared with the web server.
func SQLiteURL() string {
	return Getenv("AUDIT_SQLITE_URL", "./siteaudit.sqlite")
}

func OpenDatabase(ctx context.Context, url string, logger *slog.Logger) (*sqlite.Database, error) {
	db, err := sqlite.NewDatabase(ctx, url, logger)
	if err != nil {
		return nil, errors.Wrap(err, "open database", slog.String("url", url))
	}
	return db, nil
}
