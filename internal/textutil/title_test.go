package textutil_test

import (
	"testing"

	"fortuna/internal/textutil"
)

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"romeo_and_juliet", "Romeo And Juliet"},
		{"the_winters_tale", "The Winters Tale"},
		{"hamlet", "Hamlet"},
		{"  much__ado  ", "Much Ado"},
		{"", ""},
		{"___", ""},
	}
	for _, tt := range tests {
		if got := textutil.DisplayTitle(tt.in); got != tt.want {
			t.Errorf("DisplayTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Romeo and Juliet", "romeo_and_juliet"},
		{"Timon of Athens (1623)", "timon_of_athens__1623"},
		{"king-lear", "king-lear"},
		{"", "unknown"},
		{"!!!", "unknown"},
	}
	for _, tt := range tests {
		if got := textutil.SanitizeToken(tt.in); got != tt.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
