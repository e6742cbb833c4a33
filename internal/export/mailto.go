package export

import (
	"net/url"
	"strings"
)

// MailtoLink opens the auditor's mail client with a message listing the files to attach. The ZIP is listed only when
// the audit has photos.
func MailtoLink(project string, names FileNames, withZIP bool) string {
	var body strings.Builder
	body.WriteString("Bonjour,\n\n")
	body.WriteString("Veuillez trouver ci-joint le rapport d'audit pour le projet " + project + ".\n")
	body.WriteString("Fichiers à joindre :\n")
	body.WriteString("- " + names.CSV + "\n")
	if withZIP {
		body.WriteString("- " + names.ZIP + "\n")
	}
	body.WriteString("- " + names.DOCX + "\n\n")
	body.WriteString("Cordialement.")

	return "mailto:?subject=" + mailEscape("Rapport Audit : "+project) + "&body=" + mailEscape(body.String())
}

// mailEscape percent-encodes for a mailto query. Mail clients do not decode '+' as a space.
func mailEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
