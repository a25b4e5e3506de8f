package people

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"faceid/internal/errs"
)

const (
	minNameLength = 2
	maxNameLength = 255
)

var (
	// Characters that would be hazardous in file paths or markup.
	hazardChars = regexp.MustCompile(`[<>"/\\|?*]`)
	// A name must contain at least one Latin or Cyrillic letter or digit.
	alphanumeric = regexp.MustCompile(`[a-zA-Zа-яА-ЯёЁ0-9]`)
)

// ValidateName checks a person name: trimmed length 2..255, no
// path-hazard characters, at least one letter or digit. Returns the
// trimmed name on success.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errs.Validation("name must not be empty")
	}

	length := utf8.RuneCountInString(name)
	if length < minNameLength {
		return "", errs.Validation("name too short, minimum %d characters", minNameLength)
	}
	if length > maxNameLength {
		return "", errs.Validation("name too long, maximum %d characters", maxNameLength)
	}
	if hazardChars.MatchString(name) {
		return "", errs.Validation("name contains invalid characters")
	}
	if !alphanumeric.MatchString(name) {
		return "", errs.Validation("name must contain letters or digits")
	}
	return name, nil
}
