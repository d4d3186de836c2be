package scanner

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFolderPath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file.txt")

	tests := []struct {
		name        string
		path        string
		allowCreate bool
		wantErr     bool
	}{
		{"existing directory", dir, false, false},
		{"empty path", "", false, true},
		{"empty path with create", "", true, true},
		{"nul byte", "/tmp/bad\x00path", false, true},
		{"missing folder", filepath.Join(dir, "nope"), false, true},
		{"missing folder with create", filepath.Join(dir, "nope"), true, false},
		{"regular file", file, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFolderPath(tt.path, tt.allowCreate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean name", "image_01.png", "image_01.png"},
		{"path separators stripped", "../../etc/passwd", "passwd"},
		{"unsafe characters", "a<b>c|d.png", "a_b_c_d.png"},
		{"empty", "", "unnamed"},
		{"only dots", "...", "unnamed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilenameLength(t *testing.T) {
	long := strings.Repeat("a", 300) + ".png"
	result := SanitizeFilename(long)

	assert.LessOrEqual(t, len(result), 200)
	assert.True(t, strings.HasSuffix(result, ".png"))
}
