package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	disallowedChars = regexp.MustCompile(`[^a-zA-Z0-9 _\-\.\(\)]`)
	multipleSpaces  = regexp.MustCompile(`\s+`)
)

// SanitizeTrackName normalizes a user-supplied or file-derived track name so
// it is safe to use as a directory name and inside artifact filenames.
func SanitizeTrackName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Untitled Track"
	}

	name = multipleSpaces.ReplaceAllString(name, " ")
	name = disallowedChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")

	maxLength := 100
	if len(name) > maxLength {
		name = name[:maxLength]
	}
	if name == "" {
		name = "Untitled Track"
	}
	return name
}

// EnsureDir creates the directory if it does not exist.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}

// CopyFile copies src to dst, creating dst's directory as needed.
func CopyFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Sync()
}

// MoveFile renames src to dst, falling back to copy+remove across filesystems.
func MoveFile(src, dst string) error {
	if err := EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
