package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

// HasAttachments reports whether any entry holds a photo.
func HasAttachments(entries []models.CollectedEntry) bool {
	for _, e := range entries {
		for _, v := range e.Answers {
			if len(v.Attachments) > 0 {
				return true
			}
		}
	}
	return false
}

// WriteZIP archives every photo of the audit as <NN>_<phase>/<question id>_<n>_<file name>, NN being the position
// of the entry. ErrNoAttachments is returned before anything is written when the audit has no photo.
func WriteZIP(
	ctx context.Context,
	w io.Writer,
	entries []models.CollectedEntry,
	attachments AttachmentGetter,
	modified time.Time,
) error {
	if !HasAttachments(entries) {
		return ErrNoAttachments
	}
	zw := zip.NewWriter(w)
	for i, entry := range entries {
		folder := fmt.Sprintf("%02d_%s", i+1, safeFileName(entry.PhaseName))
		for _, id := range entry.Answers.Answered() {
			for k, ref := range entry.Answers[id].Attachments {
				data, err := attachments.Get(ctx, ref.ID)
				if err != nil {
					return errors.Wrap(err, "get attachment", slog.String("attachment_id", ref.ID))
				}
				name := fmt.Sprintf("%s/%d_%d_%s", folder, id, k+1, safeFileName(ref.FileName))
				f, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
				if err != nil {
					return errors.Wrap(err, "create zip entry", slog.String("name", name))
				}
				if _, err = f.Write(data); err != nil {
					return errors.Wrap(err, "write zip entry", slog.String("name", name))
				}
			}
		}
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "close zip")
	}
	return nil
}
