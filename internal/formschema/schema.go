// Package formschema loads the form definition and the site list and keeps a snapshot shared by all sessions.
package formschema

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

var ErrNotLoaded = errors.NewSentinel("form definition not loaded")

type snapshot struct {
	form     *Form
	sites    models.SiteList
	loadedAt time.Time
}

// Schema caches the last successfully loaded form definition and site list. Reload replaces the snapshot
// atomically, readers never observe a half loaded definition.
type Schema struct {
	source Source
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot *snapshot
}

func NewSchema(source Source, logger *slog.Logger) *Schema {
	return &Schema{
		source: source,
		logger: logger.With("source", "Schema"),
	}
}

// Reload reads the definition from the source. On failure the previous snapshot is kept for the sessions already
// past loading and the error is returned.
func (s *Schema) Reload(ctx context.Context) error {
	questions, err := s.source.Questions(ctx)
	if err != nil {
		return errors.Wrap(err, "load form definition")
	}
	form, err := NewForm(questions)
	if err != nil {
		return err
	}
	for _, w := range Lint(questions) {
		s.logger.LogAttrs(ctx, slog.LevelWarn, "form definition warning",
			slog.String("section", w.Section), slog.Int("id", w.QuestionID), slog.String("warning", w.Message))
	}

	sites, err := s.source.Sites(ctx)
	if err != nil {
		return errors.Wrap(err, "load site list")
	}
	if !slices.Contains(sites.Columns, models.TitleColumn) {
		return errors.Wrap(ErrInvalidSites, "missing column", slog.String("column", models.TitleColumn))
	}

	s.mu.Lock()
	s.snapshot = &snapshot{form: form, sites: sites, loadedAt: time.Now()}
	s.mu.Unlock()

	s.logger.LogAttrs(ctx, slog.LevelInfo, "loaded form definition",
		slog.Int("sections", len(form.Sections)), slog.Int("sites", len(sites.Sites)))
	return nil
}

// Form returns the current form definition.
func (s *Schema) Form() (*Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNotLoaded
	}
	return s.snapshot.form, nil
}

// Sites returns the current site list.
func (s *Schema) Sites() (models.SiteList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return models.SiteList{}, ErrNotLoaded
	}
	return s.snapshot.sites, nil
}

// LoadedAt returns when the current snapshot was loaded, zero when nothing is loaded.
func (s *Schema) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return time.Time{}
	}
	return s.snapshot.loadedAt
}
