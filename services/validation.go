package services

import (
	"net/mail"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxDescriptionLength = 5000
	maxTitleLength       = 200
	maxReasonLength      = 1000
	maxNameLength        = 200
	// MaxTimeSpentMinutes bounds a single entry to one day of work
	MaxTimeSpentMinutes = 24 * 60
)

// CleanText trims surrounding whitespace and otherwise keeps input verbatim.
// Text that is not valid UTF-8, carries control characters other than
// newlines and tabs, or exceeds maxLen characters is rejected. Empty input is
// returned as "" with no error; callers decide whether the field is required.
func CleanText(field, input string, maxLen int) (string, error) {
	if !utf8.ValidString(input) {
		return "", validationError("%s must be valid UTF-8", field)
	}
	t := strings.TrimSpace(input)
	for _, r := range t {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return "", validationError("%s contains control character %U", field, r)
		}
	}
	if utf8.RuneCountInString(t) > maxLen {
		return "", validationError("%s must be at most %d characters", field, maxLen)
	}
	return t, nil
}

// requiredText is CleanText for fields that may not be blank
func requiredText(field, input string, maxLen int) (string, error) {
	t, err := CleanText(field, input, maxLen)
	if err != nil {
		return "", err
	}
	if t == "" {
		return "", validationError("%s is required", field)
	}
	return t, nil
}

func cleanDescription(description string) (string, error) {
	return requiredText("description", description, maxDescriptionLength)
}

func validateTimeSpent(minutes int) error {
	if minutes <= 0 {
		return validationError("time_spent must be a positive number of minutes")
	}
	if minutes > MaxTimeSpentMinutes {
		return validationError("time_spent must be at most %d minutes", MaxTimeSpentMinutes)
	}
	return nil
}

func cleanTitle(title string) (string, error) {
	return requiredText("title", title, maxTitleLength)
}

// NormalizeEmail validates and lowercases an email address
func NormalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil {
		return "", validationError("invalid email address")
	}
	return strings.ToLower(addr.Address), nil
}
