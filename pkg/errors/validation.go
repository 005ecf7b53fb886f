package errors

import (
	"strings"
	"unicode"
)

// maxNameLength bounds diagram names and storage keys.
const maxNameLength = 256

// ValidateDiagramName validates a user-chosen diagram name.
//
// Names end up in export filenames and Content-Disposition headers, so the
// rules are conservative:
//   - Not empty or whitespace-only
//   - Maximum length of 256 characters
//   - No control characters
//   - No path separators
func ValidateDiagramName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidName, "diagram name cannot be empty")
	}

	if len(name) > maxNameLength {
		return New(ErrCodeInvalidName, "diagram name too long (max %d characters)", maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidName, "diagram name contains invalid control characters")
		}
	}

	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidName, "diagram name cannot contain path separators")
	}

	return nil
}

// ValidateKey validates a storage key for safety.
// File backends map keys directly to file names, so keys must not be usable
// for path traversal.
func ValidateKey(key string) error {
	if key == "" {
		return New(ErrCodeInvalidKey, "storage key cannot be empty")
	}

	if len(key) > maxNameLength {
		return New(ErrCodeInvalidKey, "storage key too long (max %d characters)", maxNameLength)
	}

	for _, r := range key {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidKey, "storage key contains invalid control characters")
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\\",   // Backslash (Windows path)
		"\x00", // Null byte
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(key, pattern) {
			return New(ErrCodeInvalidKey, "storage key contains invalid characters: %q", pattern)
		}
	}

	if strings.HasPrefix(key, ".") {
		return New(ErrCodeInvalidKey, "storage key cannot start with a dot")
	}

	return nil
}
