package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// check runs fn over cases keyed by input; an empty want means valid,
// otherwise the error must contain want.
func check(t *testing.T, fn func(string) error, cases map[string]string) {
	t.Helper()
	for input, want := range cases {
		err := fn(input)
		if want == "" {
			assert.NoError(t, err, "input %q", input)
			continue
		}
		if assert.Error(t, err, "input %q", input) {
			assert.Contains(t, err.Error(), want, "input %q", input)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	check(t, ValidateUsername, map[string]string{
		"alice_42":              "",
		"_lead":                 "",
		"abc":                   "",
		strings.Repeat("u", 30): "",
		"ab":                    "at least 3",
		strings.Repeat("u", 31): "not exceed 30",
		"bob-smith":             "only contain",
		"bob@home":              "only contain",
		"zoë_ok":                "only contain",
	})
}

func TestValidateEmail(t *testing.T) {
	longest := strings.Repeat("a", 64) + "@" + strings.Repeat("b", 185) + ".com"
	require.Len(t, longest, MaxEmailLen)

	check(t, ValidateEmail, map[string]string{
		"reader@agora.example": "",
		longest:                "",
		"x" + longest:          "not exceed 254",
		"no-at-sign":           "invalid email",
		"user@":                "invalid email",
		"user@@agora.example":  "invalid email",
		"us er@agora.example":  "invalid email",
		"user@agora.example.":  "invalid email",
	})
}

func TestValidatePassword(t *testing.T) {
	check(t, ValidatePassword, map[string]string{
		"password123":                 "",
		"abcdefg1":                    "",
		"Ångström9":                   "",
		strings.Repeat("p", 71) + "1": "",
		"pw1":                         "at least 8",
		strings.Repeat("p", 72) + "1": "not exceed 72",
		"lettersonly":                 "one digit",
		"12345678":                    "one letter",
	})
}

func TestRequiredAndOptionalText(t *testing.T) {
	got, err := RequiredText("title", "  First post  ", MaxPostTitleLen)
	require.NoError(t, err)
	assert.Equal(t, "First post", got)

	_, err = RequiredText("content", " \t\n ", MaxCommentLen)
	assert.EqualError(t, err, "content is required")

	// Limits count characters, not bytes.
	_, err = RequiredText("name", strings.Repeat("é", 10), 10)
	assert.NoError(t, err)
	_, err = RequiredText("name", strings.Repeat("é", 11), 10)
	assert.EqualError(t, err, "name must not exceed 10 characters")

	got, err = OptionalText("reason", "   ", MaxSuggestionReason)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = OptionalText("reason", strings.Repeat("r", MaxSuggestionReason+1), MaxSuggestionReason)
	assert.Error(t, err)
}
