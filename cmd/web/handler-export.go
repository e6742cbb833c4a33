package main

import (
	"bytes"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/export"
	"github.com/yusco/siteaudit/internal/wizard"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// export downloads one of the files of a saved audit. Every export is built independently so a failing photo
// archive does not prevent the report download.
func (app *application) export(w http.ResponseWriter, r *http.Request) {
	s := app.loadAudit(r)
	if s.State != wizard.StateFinished || !s.Saved {
		app.clientError(w, r, http.StatusConflict)
		return
	}
	form, err := app.ensureLoaded(r.Context())
	if err != nil {
		app.serverError(w, r, err)
		return
	}

	var (
		buf         bytes.Buffer
		fileName    string
		contentType string
		submission  = s.Submission(s.CompletedAt)
		names       = export.NamesFor(s.ProjectTitle(), s.CompletedAt)
	)
	kind := r.PathValue("kind")
	switch kind {
	case "csv":
		fileName, contentType = names.CSV, "text/csv; charset=utf-8"
		err = export.WriteCSV(&buf, submission, form)
	case "zip":
		fileName, contentType = names.ZIP, "application/zip"
		err = export.WriteZIP(r.Context(), &buf, submission.Entries, app.attachments, s.CompletedAt)
	case "docx":
		fileName, contentType = names.DOCX, docxContentType
		err = export.WriteDOCX(&buf, submission, form)
	default:
		app.notFound(w, r)
		return
	}
	if errors.Is(err, export.ErrNoAttachments) {
		app.notFound(w, r)
		return
	}
	if err != nil {
		app.serverError(w, r, errors.Wrap(err, "export", slog.String("kind", kind)))
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = buf.WriteTo(w)
}
