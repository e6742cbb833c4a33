package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yusco/siteaudit/internal/e2etest"
	"github.com/yusco/siteaudit/internal/export"
	"github.com/yusco/siteaudit/internal/testhelpers"
)

// jpegBytes is enough for content sniffing to report image/jpeg.
var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}

func startServer(t *testing.T) *e2etest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	server, err := e2etest.StartServer(ctx, io.Discard, testhelpers.LookupEnv(map[string]string{
		"AUDIT_ADDR":       "localhost:0",
		"AUDIT_SQLITE_URL": ":memory:",
	}), run)
	require.NoError(t, err)
	return server
}

func heading(doc *goquery.Document) string {
	return strings.TrimSpace(doc.Find("main h2").First().Text())
}

func errorItems(doc *goquery.Document) []string {
	var items []string
	doc.Find(".error-box li").Each(func(_ int, s *goquery.Selection) {
		items = append(items, strings.TrimSpace(s.Text()))
	})
	return items
}

func TestWizard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startServer(t)
	client := server.Client()

	doc, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Sélection du Chantier")

	// Search.
	doc, err = client.GetDoc(ctx, "/?q=ga")
	require.NoError(t, err)
	assert.Contains(t, doc.Find("#results").Text(), "Veuillez entrer au moins")

	doc, err = client.GetDoc(ctx, "/?q=introuvable")
	require.NoError(t, err)
	assert.Contains(t, doc.Find("#results").Text(), "Aucun projet trouvé pour")

	doc, err = client.GetDoc(ctx, "/?q=elysee")
	require.NoError(t, err)
	assert.Equal(t, "Parking Élysée Montmartre", strings.TrimSpace(doc.Find(".result-title").First().Text()))

	doc, err = client.GetDoc(ctx, "/?q=gare")
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("#results form[action='/project']").Length())

	// Nothing to export before the audit is saved.
	_, _, err = client.Download(ctx, "/export/csv")
	require.Error(t, err)

	doc, err = client.SubmitForm(ctx, doc, "/project", url.Values{"title": {"Parking Gare Sud"}})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Étape unique : Identification")
	assert.Contains(t, doc.Find("header").Text(), "Parking Gare Sud")
	assert.Contains(t, doc.Find(".project-details").Text(), "Lyon")

	// Identification.
	doc, err = client.SubmitForm(ctx, doc, "/identification", url.Values{})
	require.NoError(t, err)
	issues := errorItems(doc)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0], "Nom de l'auditeur")
	assert.Contains(t, issues[1], "Date de visite")

	fragment, err := client.SubmitFragment(ctx, doc, "/identification", url.Values{"q_1": {"Alice"}})
	require.NoError(t, err)
	value, _ := fragment.Find("input[name=q_1]").Attr("value")
	assert.Equal(t, "Alice", value)

	doc, err = client.SubmitForm(ctx, doc, "/identification", url.Values{
		"q_1": {"Alice"},
		"q_2": {"2024-05-02"},
	})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Gestion des Phases")
	assert.Contains(t, doc.Find(".summaries").Text(), "Identification : 2 réponses")

	// Phase selection.
	doc, err = client.SubmitForm(ctx, doc, "/phases", nil)
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Sélection de la phase")
	var phases []string
	doc.Find("select[name=phase] option").Each(func(_ int, s *goquery.Selection) {
		if v, _ := s.Attr("value"); v != "" {
			phases = append(phases, v)
		}
	})
	assert.Equal(t, []string{"Terrassement", "Génie civil", "Raccordement"}, phases)

	doc, err = client.SubmitForm(ctx, doc, "/phase/choose", url.Values{"phase": {"Terrassement"}})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Terrassement")
	assert.Equal(t, 0, doc.Find("#question-3").Length(), "conditional question hidden")
	assert.Equal(t, 0, doc.Find("#question-99").Length(), "comment not listed in a phase")
	assert.Equal(t, 1, doc.Find("input[type=file][name=q_5]").Length())

	fragment, err = client.SubmitFragment(ctx, doc, "/phase/submit", url.Values{"q_2": {"Non conforme"}})
	require.NoError(t, err)
	assert.Equal(t, 1, fragment.Find("#question-3").Length(), "conditional question shown")

	answers := url.Values{
		"q_1": {"80"},
		"q_2": {"Non conforme"},
		"q_3": {"Gaine écrasée"},
	}
	doc, err = client.SubmitForm(ctx, doc, "/phase/submit", answers)
	require.NoError(t, err)
	require.Contains(t, doc.Find("#questions").Text(), "Justification de l'Écart")
	require.Equal(t, 1, doc.Find("textarea[name=q_99]").Length())

	answers.Set("q_99", "Reprise prévue")
	doc, err = client.SubmitMultipartForm(ctx, doc, "/phase/submit", answers, []e2etest.FormFile{
		{Field: "q_5", FileName: "tranchee.jpg", Content: jpegBytes},
	})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Gestion des Phases")
	assert.Contains(t, doc.Find(".summaries").Text(), "Terrassement : 5 réponses")

	// A cancelled phase is not collected.
	doc, err = client.SubmitForm(ctx, doc, "/phases", nil)
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "/phase/cancel", nil)
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Gestion des Phases")

	// Finish and save.
	doc, err = client.SubmitForm(ctx, doc, "/finish", nil)
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Formulaire Terminé")
	require.Contains(t, doc.Find("#saved").Text(), "Les données sont sauvegardées")
	assert.Equal(t, 1, doc.Find("a[href='/export/zip']").Length())
	mailto, _ := doc.Find("#mailto").Attr("href")
	assert.True(t, strings.HasPrefix(mailto, "mailto:?subject=Rapport%20Audit"), mailto)

	body, header, err := client.Download(ctx, "/export/csv")
	require.NoError(t, err)
	assert.Contains(t, header.Get("Content-Type"), "text/csv")
	assert.Contains(t, header.Get("Content-Disposition"), "attachment")
	rows, err := export.ParseCSV(bytes.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, rows, 7)

	body, _, err = client.Download(ctx, "/export/zip")
	require.NoError(t, err)
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "02_Terrassement/5_1_tranchee.jpg", zr.File[0].Name)

	body, header, err = client.Download(ctx, "/export/docx")
	require.NoError(t, err)
	assert.Equal(t, docxContentType, header.Get("Content-Type"))
	_, err = zip.NewReader(bytes.NewReader(body), int64(len(body)))
	require.NoError(t, err)

	// Restart.
	doc, err = client.SubmitForm(ctx, doc, "/restart", nil)
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Sélection du Chantier")
}

func TestWizard_unknownPhaseStaysOnSelection(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	server := startServer(t)
	client := server.Client()

	doc, err := client.GetDoc(ctx, "/?q=gare")
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "/project", url.Values{"title": {"Parking Gare Sud"}})
	require.NoError(t, err)

	require.Contains(t, heading(doc), "Étape unique")

	// Choosing a phase is not possible before the identification is validated.
	page, err := client.GetDoc(ctx, "/")
	require.NoError(t, err)
	require.Equal(t, 0, page.Find("form[action='/phase/choose']").Length())

	doc, err = client.SubmitForm(ctx, doc, "/identification", url.Values{"q_1": {"Bob"}, "q_2": {"2024-05-02"}})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Gestion des Phases")
	doc, err = client.SubmitForm(ctx, doc, "/phases", nil)
	require.NoError(t, err)
	doc, err = client.SubmitForm(ctx, doc, "/phase/choose", url.Values{"phase": {"Inconnue"}})
	require.NoError(t, err)
	require.Contains(t, heading(doc), "Sélection de la phase")
}

func TestHealthy(t *testing.T) {
	t.Parallel()
	server := startServer(t)

	ctx := context.Background()
	client := server.Client()

	body, header, err := client.Download(ctx, "/api/healthy")
	require.NoError(t, err)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	// The first page view loads the form definition.
	_, err = client.GetDoc(ctx, "/")
	require.NoError(t, err)
	body, _, err = client.Download(ctx, "/api/healthy")
	require.NoError(t, err)
	var status struct {
		Status       string    `json:"status"`
		FormLoadedAt time.Time `json:"form_loaded_at"`
	}
	require.NoError(t, json.Unmarshal(body, &status))
	assert.Equal(t, "ok", status.Status)
	assert.False(t, status.FormLoadedAt.IsZero())
}
