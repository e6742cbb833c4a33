// Package export turns a finished audit into the files handed to the auditor: a CSV of every answer, a ZIP of the
// photos and a Word report.
package export

import (
	"context"
	"strings"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
)

var (
	ErrNoAttachments = errors.NewSentinel("no attachments")
	ErrInvalidCSV    = errors.NewSentinel("invalid csv export")
)

const timestampLayout = "20060102_1504"

// Labeler resolves the label of a question, see [formschema.Form.Label].
type Labeler interface {
	Label(section string, id int) string
}

// AttachmentGetter reads the bytes of an uploaded photo.
type AttachmentGetter interface {
	Get(ctx context.Context, id string) ([]byte, error)
}

// FileNames are the download names of the three exports of one audit.
type FileNames struct {
	CSV  string
	ZIP  string
	DOCX string
}

// NamesFor builds the export file names from the project title and the export time.
func NamesFor(project string, now time.Time) FileNames {
	base := safeFileName(project) + "_" + now.Format(timestampLayout)
	return FileNames{
		CSV:  "Export_" + base + ".csv",
		ZIP:  "Photos_" + base + ".zip",
		DOCX: "Rapport_" + base + ".docx",
	}
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_",
	"\n", " ", "\r", " ", "\t", " ",
)

func safeFileName(s string) string {
	s = strings.TrimSpace(fileNameReplacer.Replace(s))
	if s == "" || s == "." || s == ".." {
		return "sans_titre"
	}
	return s
}
