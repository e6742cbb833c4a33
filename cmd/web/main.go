package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/donseba/go-htmx"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/yusco/siteaudit/internal/envstruct"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/logging"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/pprofserver"
	"github.com/yusco/siteaudit/internal/redisstore"
	"github.com/yusco/siteaudit/internal/repositories"
	"github.com/yusco/siteaudit/internal/sqlite"
	"github.com/yusco/siteaudit/internal/validation"
	"github.com/yusco/siteaudit/internal/wizard"
)

const (
	storeSQLite = "sqlite"
	storeRedis  = "redis"
)

type config struct {
	// Addr is the address to listen on. It's possible to choose the address dynamically with localhost:0.
	Addr      string `env:"AUDIT_ADDR" envDefault:"localhost:4000"`
	SQLiteURL string `env:"AUDIT_SQLITE_URL" envDefault:"./siteaudit.sqlite"`
	// FormFile and SitesFile replace the definitions stored in SQLite when set.
	FormFile        string        `env:"AUDIT_FORM_FILE" envDefault:""`
	SitesFile       string        `env:"AUDIT_SITES_FILE" envDefault:""`
	Store           string        `env:"AUDIT_STORE" envDefault:"sqlite"`
	RedisURL        string        `env:"AUDIT_REDIS_URL" envDefault:"redis://localhost:6379/0"`
	CommentID       int           `env:"AUDIT_COMMENT_ID" envDefault:"99"`
	DeviationRule   string        `env:"AUDIT_DEVIATION_RULE" envDefault:"2 = \"Non conforme\""`
	DeviationCEL    string        `env:"AUDIT_DEVIATION_CEL" envDefault:""`
	PprofAddr       string        `env:"AUDIT_PPROF_ADDR" envDefault:""`
	SessionLifetime time.Duration `env:"AUDIT_SESSION_LIFETIME" envDefault:"12h"`
}

type attachmentStore interface {
	Put(ctx context.Context, fileName, contentType string, data []byte) (models.AttachmentRef, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

type application struct {
	logger         *slog.Logger
	sessionManager *scs.SessionManager
	htmx           *htmx.HTMX
	schema         *formschema.Schema
	validator      *validation.Validator
	store          wizard.SubmissionStore
	attachments    attachmentStore
	now            func() time.Time
	newID          func() string
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var (
		err error
		cfg config
	)
	if err = envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "populate config")
	}

	if cfg.PprofAddr != "" {
		if err = pprofserver.Launch(ctx, cfg.PprofAddr, logger); err != nil {
			return errors.Wrap(err, "launch pprof server")
		}
	}

	var db *sqlite.Database
	if db, err = sqlite.NewDatabase(ctx, cfg.SQLiteURL, logger); err != nil {
		return errors.Wrap(err, "open database", slog.String("url", cfg.SQLiteURL))
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "close database", errors.SlogError(closeErr))
		}
	}()
	db.StartOptimizer(ctx, time.Hour)

	sessionManager := scs.New()
	sessionManager.Store = sqlite3store.NewWithCleanupInterval(db.ReadWrite.DB, time.Hour)
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Cookie.Name = "audit_session"

	var source formschema.Source = formschema.NewSQLSource(
		repositories.NewFormRepository(db, logger),
		repositories.NewSiteRepository(db, logger),
	)
	if cfg.FormFile != "" || cfg.SitesFile != "" {
		source = &formschema.FileSource{FormPath: cfg.FormFile, SitesPath: cfg.SitesFile, Fallback: source}
	}

	var store wizard.SubmissionStore
	switch cfg.Store {
	case storeSQLite:
		store = repositories.NewSubmissionRepository(db, logger)
	case storeRedis:
		var redisStore *redisstore.Store
		if redisStore, err = redisstore.Open(ctx, cfg.RedisURL, logger); err != nil {
			return errors.Wrap(err, "open redis store")
		}
		defer func() {
			if closeErr := redisStore.Close(); closeErr != nil {
				logger.LogAttrs(ctx, slog.LevelError, "close redis store", errors.SlogError(closeErr))
			}
		}()
		store = redisStore
	default:
		return errors.New("unknown store", slog.String("store", cfg.Store))
	}

	var rule validation.DeviationRule
	if rule, err = validation.NewDeviationRule(cfg.DeviationRule, cfg.DeviationCEL); err != nil {
		return errors.Wrap(err, "deviation rule")
	}

	app := application{
		logger:         logger,
		sessionManager: sessionManager,
		htmx:           htmx.New(),
		schema:         formschema.NewSchema(source, logger),
		validator:      validation.New(cfg.CommentID, rule),
		store:          store,
		attachments:    repositories.NewAttachmentRepository(db, logger),
		now:            time.Now,
		newID:          uuid.NewString,
	}

	if err = app.configureAndStartServer(ctx, cfg.Addr); err != nil {
		return errors.Wrap(err, "start server")
	}

	return nil
}

func main() {
	ctx := context.Background()
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.LogAttrs(ctx, slog.LevelError, "failure loading .env file", errors.SlogError(err))
		os.Exit(1)
	}

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		os.Exit(1)
	}
}
