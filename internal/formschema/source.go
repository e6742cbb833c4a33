package formschema

import (
	"context"
	"log/slog"
	"os"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

// Source supplies the form definition and the site list.
type Source interface {
	Questions(ctx context.Context) ([]models.Question, error)
	Sites(ctx context.Context) (models.SiteList, error)
}

type questionLister interface {
	ListQuestions(ctx context.Context) ([]models.Question, error)
}

type siteLister interface {
	ListSites(ctx context.Context) (models.SiteList, error)
}

// SQLSource reads the definition from the database, see [repositories.FormRepository] and
// [repositories.SiteRepository].
type SQLSource struct {
	forms questionLister
	sites siteLister
}

func NewSQLSource(forms questionLister, sites siteLister) *SQLSource {
	return &SQLSource{forms: forms, sites: sites}
}

func (s *SQLSource) Questions(ctx context.Context) ([]models.Question, error) {
	questions, err := s.forms.ListQuestions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list questions")
	}
	return questions, nil
}

func (s *SQLSource) Sites(ctx context.Context) (models.SiteList, error) {
	list, err := s.sites.ListSites(ctx)
	if err != nil {
		return models.SiteList{}, errors.Wrap(err, "list sites")
	}
	return list, nil
}

// FileSource reads the form definition and the site list from files. The files are read again on every call so
// that edits are picked up by the next reload. An empty path defers to Fallback.
type FileSource struct {
	FormPath  string
	SitesPath string
	Fallback  Source
}

func (s *FileSource) Questions(ctx context.Context) ([]models.Question, error) {
	if s.FormPath == "" {
		if s.Fallback == nil {
			return nil, errors.Wrap(ErrInvalidForm, "no form file configured")
		}
		return s.Fallback.Questions(ctx)
	}
	format, err := FormatOf(s.FormPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.FormPath)
	if err != nil {
		return nil, errors.Wrap(err, "open form file", slog.String("path", s.FormPath))
	}
	defer f.Close()
	questions, err := DecodeForm(f, format)
	if err != nil {
		return nil, errors.Wrap(err, "decode form file", slog.String("path", s.FormPath))
	}
	return questions, nil
}

func (s *FileSource) Sites(ctx context.Context) (models.SiteList, error) {
	if s.SitesPath == "" {
		if s.Fallback == nil {
			return models.SiteList{}, errors.Wrap(ErrInvalidSites, "no site file configured")
		}
		return s.Fallback.Sites(ctx)
	}
	f, err := os.Open(s.SitesPath)
	if err != nil {
		return models.SiteList{}, errors.Wrap(err, "open site file", slog.String("path", s.SitesPath))
	}
	defer f.Close()
	list, err := DecodeSites(f)
	if err != nil {
		return models.SiteList{}, errors.Wrap(err, "decode site file", slog.String("path", s.SitesPath))
	}
	return list, nil
}
