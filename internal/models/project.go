package models

import "time"

// TitleColumn is the site list column identifying a project.
const TitleColumn = "Intitulé"

// Project is the site selected for the audit.
type Project struct {
	Title   string            `json:"title"`
	Columns []string          `json:"columns"`
	Fields  map[string]string `json:"fields"`
}

// Field returns the value of the column or "N/A".
func (p Project) Field(column string) string {
	if v, ok := p.Fields[column]; ok && v != "" {
		return v
	}
	return "N/A"
}

// Submission is what the persistence client stores once an audit is finished.
type Submission struct {
	ID          string           `json:"id"`
	Project     Project          `json:"project"`
	Entries     []CollectedEntry `json:"entries"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
}

// SiteList is the table of auditable sites in source column order.
type SiteList struct {
	Columns []string  `json:"columns"`
	Sites   []Project `json:"sites"`
}
