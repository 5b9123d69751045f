package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxNameLength = 150

// ValidateFileName enforces the rules for client-supplied file names: 1-150
// characters of valid UTF-8 with no NUL bytes, path separators, or parent
// directory references. Names become neither storage paths nor shell input,
// but they are echoed back to every client that lists the folder.
func ValidateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("file name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("file name too long (max %d characters)", maxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("file name contains invalid UTF-8 characters")
	}
	if strings.ContainsAny(name, "\x00/\\") {
		return fmt.Errorf("file name contains invalid characters")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("file name cannot be a directory reference")
	}
	return nil
}

// ValidateFolderName applies the file name rules to folder names.
func ValidateFolderName(name string) error {
	if name == "" {
		return fmt.Errorf("folder name cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("folder name too long (max %d characters)", maxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("folder name contains invalid UTF-8 characters")
	}
	if strings.ContainsAny(name, "\x00/\\") {
		return fmt.Errorf("folder name contains invalid characters")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("folder name cannot be a directory reference")
	}
	return nil
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("invalid email format")
	}
	return nil
}

func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}
	if utf8.RuneCountInString(username) > 64 {
		return fmt.Errorf("username too long (max 64 characters)")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	return nil
}

// SingularHeader returns the value of a header that must be present exactly
// once. Repeated headers are a smuggling vector, so duplicates are rejected
// rather than joined.
func SingularHeader(values []string, name string) (string, error) {
	switch len(values) {
	case 0:
		return "", fmt.Errorf("missing %s header", name)
	case 1:
		return values[0], nil
	default:
		return "", fmt.Errorf("repeated %s header", name)
	}
}
