package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const maxTitleRunes = 120

// SanitizeTitle makes a title safe for use as a file name and as the EDL
// TITLE line. Disallowed runes become underscores and control characters are
// dropped.
func SanitizeTitle(s string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case strings.ContainsRune(" -_.,()", r):
			return r
		default:
			return '_'
		}
	}, s)

	cleaned = strings.Trim(strings.TrimSpace(cleaned), ".")
	if runes := []rune(cleaned); len(runes) > maxTitleRunes {
		cleaned = strings.TrimSpace(string(runes[:maxTitleRunes]))
	}
	return cleaned
}

// ResolveOutputDir validates a caller-supplied directory, or creates and
// returns fallback when dir is empty.
func ResolveOutputDir(dir, fallback string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		if fallback == "" {
			return "", errors.New("output_dir is required")
		}
		if err := os.MkdirAll(fallback, 0o755); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
		return fallback, nil
	}

	if !filepath.IsAbs(dir) {
		return "", errors.New("output_dir must be absolute")
	}
	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return "", errors.New("output_dir cannot contain path traversal")
		}
	}
	if filepath.Clean(dir) != dir {
		return "", errors.New("output_dir must be clean path")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("output_dir does not exist")
		}
		return "", fmt.Errorf("invalid output_dir: %w", err)
	}
	if !info.IsDir() {
		return "", errors.New("output_dir is not a directory")
	}
	return dir, nil
}
