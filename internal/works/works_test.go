package works_test

import (
	"os"
	"path/filepath"
	"testing"

	"fortuna/internal/works"
)

func TestKeyFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/corpus/romeo_and_juliet.txt", "romeo_and_juliet"},
		{"Much Ado About Nothing.txt", "much_ado_about_nothing"},
		{"notes/Timon of Athens (1623).md", "timon_of_athens__1623"},
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := works.KeyFromPath(tc.path); got != tc.want {
			t.Errorf("KeyFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestLoadSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "the_winters_tale.txt")
	if err := os.WriteFile(path, []byte("Exit, pursued by a bear."), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	source, err := works.LoadSource(path)
	if err != nil {
		t.Fatalf("LoadSource: %v", err)
	}
	if source.ID != "the_winters_tale" {
		t.Errorf("expected key the_winters_tale, got %q", source.ID)
	}
	if source.Title != "The Winters Tale" {
		t.Errorf("expected derived title, got %q", source.Title)
	}
	if source.Text != "Exit, pursued by a bear." {
		t.Errorf("unexpected text %q", source.Text)
	}
}

func TestLoadSourceRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(path, []byte("  \n\t"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	if _, err := works.LoadSource(path); err == nil {
		t.Fatal("expected error for blank source")
	}
}

func TestLoadSourceMissingFile(t *testing.T) {
	if _, err := works.LoadSource(filepath.Join(t.TempDir(), "absent.txt")); err == nil {
		t.Fatal("expected error for missing source")
	}
}
