package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DisplayTitle converts a work identifier into a human-readable title:
// underscores become spaces, runs of whitespace collapse, and each word is
// title-cased. Returns "" for blank input.
func DisplayTitle(id string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(id), "_", " ")
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if cleaned == "" {
		return ""
	}
	// Casers are stateful, so build one per call instead of sharing.
	return cases.Title(language.English).String(cleaned)
}
