// Package works defines the narrative units the pipeline operates on: a work
// (one input text) and its retained sentences. Sources are loaded from disk
// and keyed by a filesystem-safe token derived from the file name; the same
// token names the exported artifact bundles.
package works

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fortuna/internal/textutil"
)

// Sentence is one retained narrative unit of a work. Indices are contiguous
// after filtering so score series stay aligned with sentence positions.
type Sentence struct {
	Index int    `json:"index"`
	Raw   string `json:"raw"`
	Clean string `json:"clean"`
	Words int    `json:"words"`
}

// Work couples a source text with its retained sentences. Immutable once
// segmentation has produced the sentence list.
type Work struct {
	ID         string
	Title      string
	SourcePath string
	Sentences  []Sentence
}

// Source describes a narrative input before segmentation.
type Source struct {
	ID    string
	Title string
	Path  string
	Text  string
}

// KeyFromPath derives the work key from an input path: the base name without
// extension, sanitized to a filesystem-safe token. Blank paths yield an empty
// key.
func KeyFromPath(path string) string {
	base := filepath.Base(strings.TrimSpace(path))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSpace(base)
	if base == "" || base == "." || base == string(filepath.Separator) {
		return ""
	}
	return textutil.SanitizeToken(base)
}

// LoadSource reads an input text and derives its key and display title.
// An unreadable or blank file is an error; the caller decides whether that
// fails the run or just the work.
func LoadSource(path string) (*Source, error) {
	key := KeyFromPath(path)
	if key == "" {
		return nil, fmt.Errorf("derive work key from %q", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("source %q is empty", path)
	}
	return &Source{
		ID:    key,
		Title: textutil.DisplayTitle(key),
		Path:  path,
		Text:  text,
	}, nil
}
