package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeTrackName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"My Song", "My Song"},
		{"  spaced   out  ", "spaced out"},
		{"bad/slash\\name", "badslashname"},
		{"", "Untitled Track"},
		{"///", "Untitled Track"},
		{"dots...", "dots"},
		{"Band - Live (2024)", "Band - Live (2024)"},
	}
	for _, tc := range cases {
		if got := SanitizeTrackName(tc.in); got != tc.want {
			t.Errorf("SanitizeTrackName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a", "src.txt")
	dst := filepath.Join(dir, "b", "dst.txt")

	if err := EnsureDir(filepath.Dir(src)); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source file still exists after move")
	}
	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Errorf("destination content = %q, %v", data, err)
	}
}
