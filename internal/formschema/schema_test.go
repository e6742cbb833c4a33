package formschema_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

type fakeSource struct {
	questions []models.Question
	sites     models.SiteList
	err       error
}

func (f *fakeSource) Questions(context.Context) ([]models.Question, error) {
	return f.questions, f.err
}

func (f *fakeSource) Sites(context.Context) (models.SiteList, error) {
	return f.sites, f.err
}

func demoSource() *fakeSource {
	return &fakeSource{
		questions: []models.Question{
			{Section: "Identification", ID: 1, Label: "Nom", Type: models.QuestionTypeText},
			{Section: "Terrassement", SectionOrder: 1, ID: 1, Label: "Profondeur", Type: models.QuestionTypeNumber},
		},
		sites: models.SiteList{
			Columns: []string{models.TitleColumn},
			Sites:   []models.Project{{Title: "Parking Gare Sud"}},
		},
	}
}

func TestSchema_Reload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	source := demoSource()
	schema := formschema.NewSchema(source, testhelpers.NewLogger(io.Discard))

	_, err := schema.Form()
	require.ErrorIs(t, err, formschema.ErrNotLoaded)
	_, err = schema.Sites()
	require.ErrorIs(t, err, formschema.ErrNotLoaded)
	require.True(t, schema.LoadedAt().IsZero())

	require.NoError(t, schema.Reload(ctx))
	form, err := schema.Form()
	require.NoError(t, err)
	require.Equal(t, []string{"Terrassement"}, form.Phases())
	sites, err := schema.Sites()
	require.NoError(t, err)
	require.Len(t, sites.Sites, 1)

	// A failed reload keeps the previous snapshot.
	source.err = errors.New("spreadsheet unavailable")
	require.ErrorContains(t, schema.Reload(ctx), "spreadsheet unavailable")
	again, err := schema.Form()
	require.NoError(t, err)
	require.Same(t, form, again)
}

func TestSchema_Reload_failures(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		source *fakeSource
		target error
	}{
		{name: "empty form", source: &fakeSource{}, target: formschema.ErrInvalidForm},
		{
			name: "site list without title column",
			source: &fakeSource{
				questions: demoSource().questions,
				sites:     models.SiteList{Columns: []string{"Nom"}},
			},
			target: formschema.ErrInvalidSites,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			schema := formschema.NewSchema(tt.source, testhelpers.NewLogger(io.Discard))
			require.ErrorIs(t, schema.Reload(context.Background()), tt.target)
			_, err := schema.Form()
			require.ErrorIs(t, err, formschema.ErrNotLoaded)
		})
	}
}

func TestSchema_concurrentReadsDuringReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	schema := formschema.NewSchema(demoSource(), testhelpers.NewLogger(io.Discard))
	require.NoError(t, schema.Reload(ctx))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = schema.Reload(ctx)
		}()
		go func() {
			defer wg.Done()
			form, err := schema.Form()
			if err == nil {
				_ = form.Phases()
			}
		}()
	}
	wg.Wait()
}

func TestFileSource(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	formPath := filepath.Join(dir, "form.yaml")
	sitesPath := filepath.Join(dir, "sites.csv")
	require.NoError(t, os.WriteFile(formPath, []byte(yamlForm), 0o600))
	require.NoError(t, os.WriteFile(sitesPath, []byte("Intitulé;Commune\nParking Gare Sud;Lyon\n"), 0o600))

	schema := formschema.NewSchema(&formschema.FileSource{FormPath: formPath, SitesPath: sitesPath},
		testhelpers.NewLogger(io.Discard))
	require.NoError(t, schema.Reload(context.Background()))
	form, err := schema.Form()
	require.NoError(t, err)
	require.Equal(t, "Identification", form.Identification().Name)
	sites, err := schema.Sites()
	require.NoError(t, err)
	require.Equal(t, "Lyon", sites.Sites[0].Field("Commune"))
}

func TestFileSource_fallback(t *testing.T) {
	t.Parallel()
	source := &formschema.FileSource{Fallback: demoSource()}
	questions, err := source.Questions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)

	_, err = (&formschema.FileSource{}).Sites(context.Background())
	require.ErrorIs(t, err, formschema.ErrInvalidSites)

	_, err = (&formschema.FileSource{FormPath: filepath.Join(t.TempDir(), "missing.yaml")}).
		Questions(context.Background())
	require.Error(t, err)
}
