package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeFilenameChars = regexp.MustCompile(`[^\w\s.\-]`)

// ValidateFolderPath checks that a user-provided folder path is usable
// before any filesystem operation touches it. With allowCreate the
// folder itself may be missing as long as it can plausibly be created.
func ValidateFolderPath(path string, allowCreate bool) error {
	if path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if strings.ContainsRune(path, 0) {
		return fmt.Errorf("invalid characters in path")
	}

	resolved, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if allowCreate {
		return nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("path does not exist")
	}
	if !info.IsDir() {
		return fmt.Errorf("path is not a directory")
	}
	return nil
}

// SanitizeFilename strips path separators and characters that are not
// safe in a filename, falling back to "unnamed".
func SanitizeFilename(filename string) string {
	if filename == "" {
		return "unnamed"
	}

	filename = filepath.Base(filename)
	sanitized := unsafeFilenameChars.ReplaceAllString(filename, "_")
	sanitized = strings.Trim(sanitized, ". ")

	if sanitized == "" {
		return "unnamed"
	}

	if len(sanitized) > 200 {
		ext := filepath.Ext(sanitized)
		name := strings.TrimSuffix(sanitized, ext)
		if cut := 200 - len(ext); cut > 0 && cut < len(name) {
			name = name[:cut]
		}
		sanitized = name + ext
	}

	return sanitized
}
