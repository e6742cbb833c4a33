package export

import (
	"encoding/csv"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

// Header is the first line of the CSV export.
var Header = []string{ //nolint:gochecknoglobals // read-only
	"submission_id", "project", "started_at", "entry", "phase_name", "question_id", "question", "value",
}

// byteOrderMark lets spreadsheet software detect UTF-8.
const byteOrderMark = "\ufeff"

// Row is one answered question of the CSV export.
type Row struct {
	SubmissionID string
	Project      string
	StartedAt    string
	Entry        int
	PhaseName    string
	QuestionID   int
	Question     string
	Value        string
}

// WriteCSV writes one row per answered question across all entries, in entry order then question id order. An
// audit without entries produces the header only.
func WriteCSV(w io.Writer, submission models.Submission, labels Labeler) error {
	if _, err := io.WriteString(w, byteOrderMark); err != nil {
		return errors.Wrap(err, "write byte order mark")
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	startedAt := ""
	if !submission.StartedAt.IsZero() {
		startedAt = submission.StartedAt.Format(time.DateTime)
	}
	for i, entry := range submission.Entries {
		for _, id := range entry.Answers.Answered() {
			record := []string{
				submission.ID,
				submission.Project.Title,
				startedAt,
				strconv.Itoa(i + 1),
				entry.PhaseName,
				strconv.Itoa(id),
				labels.Label(entry.PhaseName, id),
				entry.Answers[id].String(),
			}
			if err := cw.Write(record); err != nil {
				return errors.Wrap(err, "write row", slog.Int("entry", i+1), slog.Int("question_id", id))
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return errors.Wrap(err, "flush csv")
	}
	return nil
}

// ParseCSV reads back a file produced by WriteCSV.
func ParseCSV(r io.Reader) ([]Row, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidCSV, err.Error())
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrInvalidCSV, "missing header")
	}
	header := slices.Clone(records[0])
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}
	if !slices.Equal(header, Header) {
		return nil, errors.Wrap(ErrInvalidCSV, "unexpected header", slog.Any("header", header))
	}

	rows := make([]Row, 0, len(records)-1)
	for n, record := range records[1:] {
		line := slog.Int("line", n+2)
		entry, err := strconv.Atoi(record[3])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidCSV, "entry is not a number", line)
		}
		id, err := strconv.Atoi(record[5])
		if err != nil {
			return nil, errors.Wrap(ErrInvalidCSV, "question_id is not a number", line)
		}
		rows = append(rows, Row{
			SubmissionID: record[0],
			Project:      record[1],
			StartedAt:    record[2],
			Entry:        entry,
			PhaseName:    record[4],
			QuestionID:   id,
			Question:     record[6],
			Value:        record[7],
		})
	}
	return rows, nil
}
