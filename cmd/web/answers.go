package main

import (
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"slices"
	"strings"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/formschema"
	"github.com/yusco/siteaudit/internal/models"
)

const maxUploadMemory = 32 << 20

// parseAnswers reads the answers of the section rows from the posted form. Photos already in the draft are kept
// unless ticked for removal, new files are stored as attachments.
func (app *application) parseAnswers(
	r *http.Request,
	section formschema.Section,
	draft models.Answers,
) (models.Answers, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, errors.Wrap(err, "parse form")
	}

	rows := section.Rows
	if !slices.ContainsFunc(rows, func(q models.Question) bool { return q.ID == app.validator.CommentID }) {
		rows = append(slices.Clone(rows), commentQuestion(section, app.validator.CommentID))
	}

	answers := models.Answers{}
	for _, row := range rows {
		name := fieldName(row.ID)
		var value models.Value
		switch row.Type { //nolint:exhaustive // every other type is a single text field
		case models.QuestionTypeMultiselect:
			for _, c := range r.PostForm[name] {
				if strings.TrimSpace(c) != "" {
					value.Choices = append(value.Choices, c)
				}
			}
		case models.QuestionTypePhoto:
			removed := r.PostForm[name+"_remove"]
			for _, ref := range draft[row.ID].Attachments {
				if !slices.Contains(removed, ref.ID) {
					value.Attachments = append(value.Attachments, ref)
				}
			}
			uploaded, err := app.storeUploads(r.Context(), r.MultipartForm, name)
			if err != nil {
				return nil, errors.Wrap(err, "store uploads", slog.Int("question_id", row.ID))
			}
			value.Attachments = append(value.Attachments, uploaded...)
		default:
			value = models.TextValue(r.PostForm.Get(name))
		}
		if !value.IsEmpty() {
			answers[row.ID] = value
		}
	}
	return answers, nil
}

func (app *application) storeUploads(
	ctx context.Context,
	form *multipart.Form,
	field string,
) ([]models.AttachmentRef, error) {
	if form == nil {
		return nil, nil
	}
	var refs []models.AttachmentRef
	for _, header := range form.File[field] {
		if header.Filename == "" || header.Size == 0 {
			continue
		}
		data, err := readUpload(header)
		if err != nil {
			return nil, err
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		ref, err := app.attachments.Put(ctx, header.Filename, contentType, data)
		if err != nil {
			return nil, errors.Wrap(err, "put attachment", slog.String("file_name", header.Filename))
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func readUpload(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, errors.Wrap(err, "open upload", slog.String("file_name", header.Filename))
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "read upload", slog.String("file_name", header.Filename))
	}
	return data, nil
}
