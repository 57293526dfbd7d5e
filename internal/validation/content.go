package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Length limits for user-authored content, in characters.
const (
	MaxCommunityNameLen = 100
	MaxPostTitleLen     = 200
	MaxPostContentLen   = 10000
	MaxCommentLen       = 2000
	MaxSuggestionReason = 255
)

// RequiredText trims s and checks it is non-empty and at most max characters.
// It returns the trimmed value.
func RequiredText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%s is required", field)
	}
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return s, nil
}

// OptionalText trims s and checks it is at most max characters.
func OptionalText(field, s string, max int) (string, error) {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		return "", fmt.Errorf("%s must not exceed %d characters", field, max)
	}
	return s, nil
}
