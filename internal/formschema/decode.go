package formschema

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "embed"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/yusco/siteaudit/internal/errors"
	"github.com/yusco/siteaudit/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidForm  = errors.NewSentinel("invalid form definition")
	ErrInvalidSites = errors.NewSentinel("invalid site list")
)

// Format of a form definition file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// FormatOf guesses the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", errors.Wrap(ErrInvalidForm, "unsupported file extension", slog.String("path", path))
	}
}

//go:embed form.schema.json
var formJSONSchema string

const formSchemaURL = "https://siteaudit.local/schemas/form.schema.json"

var compileFormSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(formSchemaURL, strings.NewReader(formJSONSchema)); err != nil {
		return nil, errors.Wrap(err, "add form schema resource")
	}
	schema, err := c.Compile(formSchemaURL)
	if err != nil {
		return nil, errors.Wrap(err, "compile form schema")
	}
	return schema, nil
})

// DecodeForm reads a form definition in the given format.
func DecodeForm(r io.Reader, format Format) ([]models.Question, error) {
	switch format {
	case FormatYAML:
		return decodeYAMLForm(r)
	case FormatCSV:
		return decodeCSVForm(r)
	default:
		return nil, errors.Wrap(ErrInvalidForm, "unsupported format", slog.String("format", string(format)))
	}
}

type yamlForm struct {
	Sections []yamlSection `yaml:"sections"`
}

type yamlSection struct {
	Name      string            `yaml:"name"`
	Questions []models.Question `yaml:"questions"`
}

func decodeYAMLForm(r io.Reader) ([]models.Question, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read form")
	}

	// The document is validated as JSON so that the schema sees the same value types a JSON decoder produces.
	var doc any
	if err = yaml.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(ErrInvalidForm, "parse YAML", slog.String("cause", err.Error()))
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidForm, "convert YAML to JSON", slog.String("cause", err.Error()))
	}
	dec := json.NewDecoder(bytes.NewReader(asJSON))
	dec.UseNumber()
	var instance any
	if err = dec.Decode(&instance); err != nil {
		return nil, errors.Wrap(err, "decode JSON instance")
	}
	schema, err := compileFormSchema()
	if err != nil {
		return nil, err
	}
	if err = schema.Validate(instance); err != nil {
		return nil, errors.Wrap(ErrInvalidForm, "schema validation", slog.String("cause", err.Error()))
	}

	var form yamlForm
	if err = yaml.Unmarshal(raw, &form); err != nil {
		return nil, errors.Wrap(ErrInvalidForm, "decode YAML", slog.String("cause", err.Error()))
	}
	var questions []models.Question
	for order, section := range form.Sections {
		for _, q := range section.Questions {
			q.Section = strings.TrimSpace(section.Name)
			q.SectionOrder = order
			q.Type, _ = models.ParseQuestionType(string(q.Type))
			questions = append(questions, q)
		}
	}
	return questions, nil
}

// csvColumns maps the accepted header names of a tabular form definition.
var csvColumns = map[string]string{ //nolint:gochecknoglobals // read-only lookup table
	"section":     "section",
	"phase":       "section",
	"id":          "id",
	"label":       "label",
	"question":    "label",
	"libellé":     "label",
	"type":        "type",
	"options":     "options",
	"choix":       "options",
	"condition":   "condition",
	"mandatory":   "mandatory",
	"obligatoire": "mandatory",
	"description": "description",
	"aide":        "description",
}

func decodeCSVForm(r io.Reader) ([]models.Question, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrInvalidForm, "empty file")
	}
	index := map[string]int{}
	for i, name := range records[0] {
		if key, ok := csvColumns[strings.ToLower(strings.TrimSpace(name))]; ok {
			if _, seen := index[key]; !seen {
				index[key] = i
			}
		}
	}
	for _, required := range []string{"section", "id", "label"} {
		if _, ok := index[required]; !ok {
			return nil, errors.Wrap(ErrInvalidForm, "missing column", slog.String("column", required))
		}
	}
	cell := func(record []string, key string) string {
		i, ok := index[key]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	sectionOrder := map[string]int{}
	var questions []models.Question
	for n, record := range records[1:] {
		line := n + 2
		if isBlank(record) {
			continue
		}
		id, convErr := strconv.Atoi(cell(record, "id"))
		if convErr != nil {
			return nil, errors.Wrap(ErrInvalidForm, "id is not an integer",
				slog.Int("line", line), slog.String("id", cell(record, "id")))
		}
		section := cell(record, "section")
		if _, ok := sectionOrder[section]; !ok {
			sectionOrder[section] = len(sectionOrder)
		}
		questionType, ok := models.ParseQuestionType(cell(record, "type"))
		if !ok {
			return nil, errors.Wrap(ErrInvalidForm, "unknown question type",
				slog.Int("line", line), slog.String("type", cell(record, "type")))
		}
		questions = append(questions, models.Question{
			Section:      section,
			SectionOrder: sectionOrder[section],
			ID:           id,
			Label:        cell(record, "label"),
			Type:         questionType,
			Options:      models.SplitOptions(cell(record, "options")),
			Condition:    cell(record, "condition"),
			Mandatory:    parseFlag(cell(record, "mandatory")),
			Description:  cell(record, "description"),
		})
	}
	return questions, nil
}

// DecodeSites reads a CSV site list. The Intitulé column is mandatory; rows without a title are skipped and only
// the first row of a duplicated title is kept.
func DecodeSites(r io.Reader) (models.SiteList, error) {
	records, err := readCSV(r)
	if err != nil {
		return models.SiteList{}, errors.Wrap(ErrInvalidSites, "read CSV", slog.String("cause", err.Error()))
	}
	if len(records) == 0 {
		return models.SiteList{}, errors.Wrap(ErrInvalidSites, "empty file")
	}
	columns := make([]string, len(records[0]))
	titleIndex := -1
	for i, name := range records[0] {
		columns[i] = strings.TrimSpace(name)
		if columns[i] == models.TitleColumn {
			titleIndex = i
		}
	}
	if titleIndex < 0 {
		return models.SiteList{}, errors.Wrap(ErrInvalidSites, "missing column",
			slog.String("column", models.TitleColumn))
	}

	list := models.SiteList{Columns: columns}
	seen := map[string]bool{}
	for _, record := range records[1:] {
		if titleIndex >= len(record) {
			continue
		}
		title := strings.TrimSpace(record[titleIndex])
		if title == "" || seen[title] {
			continue
		}
		seen[title] = true
		fields := make(map[string]string, len(columns))
		for i, column := range columns {
			if i < len(record) {
				fields[column] = strings.TrimSpace(record[i])
			}
		}
		list.Sites = append(list.Sites, models.Project{Title: title, Columns: columns, Fields: fields})
	}
	return list, nil
}

// readCSV reads the whole file, detecting a semicolon separator from the header line as spreadsheet exports in
// French locales use it.
func readCSV(r io.Reader) ([][]string, error) {
	br := bufio.NewReader(r)
	// Strip a UTF-8 byte order mark.
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	raw, err := io.ReadAll(br)
	if err != nil {
		return nil, errors.Wrap(err, "read CSV")
	}
	header, _, _ := bytes.Cut(raw, []byte("\n"))
	reader := csv.NewReader(bytes.NewReader(raw))
	if bytes.Count(header, []byte(";")) > bytes.Count(header, []byte(",")) {
		reader.Comma = ';'
	}
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(ErrInvalidForm, "parse CSV", slog.String("cause", err.Error()))
	}
	return records, nil
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "vrai", "oui", "yes", "x", "o":
		return true
	default:
		return false
	}
}

func isBlank(record []string) bool {
	for _, c := range record {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
