package formcmd_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/cmd/cli/formcmd"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

const validForm = `
sections:
  - name: Identification
    questions:
      - id: 1
        label: Nom de l'auditeur
        mandatory: true
  - name: Terrassement
    questions:
      - id: 2
        label: Conformité
        type: select
        options: [Conforme, Non conforme]
      - id: 3
        label: Nature de l'écart
        condition: 2 = "Non conforme"
`

const formWithWarnings = `
sections:
  - name: Identification
    questions:
      - id: 1
        label: Nom
  - name: Terrassement
    questions:
      - id: 2
        label: Nature de l'écart
        condition: 7 = "Non conforme"
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadFormAndLint(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		file      string
		content   string
		wantRead  bool
		wantLint  bool
		wantLines int
	}{
		{name: "valid", file: "form.yaml", content: validForm, wantRead: true, wantLint: true, wantLines: 1},
		{name: "dangling reference", file: "form.yml", content: formWithWarnings, wantRead: true, wantLines: 1},
		{name: "unsupported extension", file: "form.json", content: validForm},
		{name: "schema violation", file: "form.yaml", content: "sections: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			questions, err := formcmd.ReadForm(writeFile(t, tt.file, tt.content))
			if !tt.wantRead {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			var out bytes.Buffer
			err = formcmd.Lint(&out, questions)
			if tt.wantLint {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, formcmd.ErrLint)
			}
			assert.Len(t, bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n")), tt.wantLines)
		})
	}
}

type fakeSites struct {
	got models.SiteList
	err error
}

func (f *fakeSites) ReplaceSites(_ context.Context, list models.SiteList) error {
	f.got = list
	return f.err
}

func TestImportSites(t *testing.T) {
	t.Parallel()
	logger := testhelpers.NewLogger(io.Discard)
	list := models.SiteList{
		Columns: []string{models.TitleColumn},
		Sites:   []models.Project{{Title: "Parking Gare Sud"}},
	}

	repo := &fakeSites{}
	require.NoError(t, formcmd.ImportSites(context.Background(), repo, list, logger))
	assert.Equal(t, list, repo.got)

	err := formcmd.ImportSites(context.Background(), &fakeSites{}, models.SiteList{}, logger)
	require.ErrorIs(t, err, formschema.ErrInvalidSites)

	failing := &fakeSites{err: errors.New("disk full")}
	require.Error(t, formcmd.ImportSites(context.Background(), failing, list, logger))
}
