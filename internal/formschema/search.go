package formschema

import (
	"strings"
	"unicode/utf8"

	"github.com/yusco/siteaudit/internal/models"
	"github.com/yusco/siteaudit/internal/textfold"
)

// MinSearchLength is the number of characters needed before the site list is searched.
const MinSearchLength = 3

// SearchSites returns the sites whose title contains term, ignoring case and accents.
func SearchSites(list models.SiteList, term string) []models.Project {
	term = strings.TrimSpace(term)
	if utf8.RuneCountInString(term) < MinSearchLength {
		return nil
	}
	var matches []models.Project
	for _, site := range list.Sites {
		if textfold.Contains(site.Title, term) {
			matches = append(matches, site)
		}
	}
	return matches
}

// FindSite looks a site up by its exact title.
func FindSite(list models.SiteList, title string) (models.Project, bool) {
	for _, site := range list.Sites {
		if site.Title == title {
			return site, true
		}
	}
	return models.Project{}, false
}
