package export

import (
	"fmt"
	"io"

	"github.com/fumiama/go-docx"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
)

const reportDateLayout = "02/01/2006 15:04"

const (
	accentColor   = "EB6408"
	titleSize     = "40"
	headingSize   = "28"
	twoColumns    = 2
	fullPageWidth = 0
)

type pair struct {
	Key   string
	Value string
}

type reportSection struct {
	Heading string
	Rows    []pair
}

type reportData struct {
	Title    string
	Lines    []string
	Project  []pair
	Sections []reportSection
}

func newReportData(submission models.Submission, labels Labeler) reportData {
	data := reportData{
		Title: "Rapport d'audit : " + submission.Project.Title,
		Lines: []string{"Identifiant : " + submission.ID},
	}
	if !submission.StartedAt.IsZero() {
		data.Lines = append(data.Lines, "Début de l'audit : "+submission.StartedAt.Format(reportDateLayout))
	}
	if !submission.CompletedAt.IsZero() {
		data.Lines = append(data.Lines, "Fin de l'audit : "+submission.CompletedAt.Format(reportDateLayout))
	}
	for _, column := range submission.Project.Columns {
		data.Project = append(data.Project, pair{Key: column, Value: submission.Project.Field(column)})
	}
	for i, entry := range submission.Entries {
		section := reportSection{Heading: fmt.Sprintf("%d. %s", i+1, entry.PhaseName)}
		for _, id := range entry.Answers.Answered() {
			section.Rows = append(section.Rows, pair{
				Key:   labels.Label(entry.PhaseName, id),
				Value: entry.Answers[id].String(),
			})
		}
		data.Sections = append(data.Sections, section)
	}
	return data
}

func addHeading(doc *docx.Docx, text string) {
	doc.AddParagraph().AddText(text).Bold().Size(headingSize)
}

// addTable writes one row per pair, the key in bold.
func addTable(doc *docx.Docx, rows []pair) {
	table := doc.AddTable(len(rows), twoColumns, fullPageWidth, nil)
	for i, row := range rows {
		cells := table.TableRows[i].TableCells
		cells[0].AddParagraph().AddText(row.Key).Bold()
		cells[1].AddParagraph().AddText(row.Value)
	}
}

// WriteDOCX writes the Word report: the project details followed by one table of answers per entry.
func WriteDOCX(w io.Writer, submission models.Submission, labels Labeler) error {
	data := newReportData(submission, labels)
	doc := docx.New().WithDefaultTheme()

	doc.AddParagraph().AddText(data.Title).Bold().Size(titleSize).Color(accentColor)
	for _, line := range data.Lines {
		doc.AddParagraph().AddText(line)
	}

	addHeading(doc, "Informations du projet")
	if len(data.Project) > 0 {
		addTable(doc, data.Project)
	}
	for _, section := range data.Sections {
		addHeading(doc, section.Heading)
		if len(section.Rows) == 0 {
			doc.AddParagraph().AddText("Aucune réponse.")
			continue
		}
		addTable(doc, section.Rows)
	}
	// Page settings close the body.
	doc.WithA4Page()

	if _, err := doc.WriteTo(w); err != nil {
		return errors.Wrap(err, "write docx")
	}
	return nil
}
