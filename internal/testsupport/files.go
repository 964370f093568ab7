package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// WriteText writes a UTF-8 fixture file, creating parent directories as needed.
func WriteText(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// Narrative builds a fixture text of n sentences, alternating a cheerful and
// a gloomy line so sentiment scores swing in both directions. Every sentence
// clears the default word-count filter.
func Narrative(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			fmt.Fprintf(&b, "Fortune smiled warmly on the travelers during day %d of the voyage. ", i+1)
		} else {
			fmt.Fprintf(&b, "Grief and ruin followed them through night %d of the voyage. ", i+1)
		}
	}
	return strings.TrimSpace(b.String())
}
