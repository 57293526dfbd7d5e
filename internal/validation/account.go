// Package validation checks user input before it reaches a repository.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Account field limits. Passwords stop at 72 bytes because bcrypt ignores
// anything longer.
const (
	MinUsernameLen = 3
	MaxUsernameLen = 30
	MinPasswordLen = 8
	MaxPasswordLen = 72
	MaxEmailLen    = 254
)

var (
	usernamePattern = regexp.MustCompile(`^\w+$`)
	emailPattern    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

// ValidateUsername accepts 3 to 30 ASCII letters, digits and underscores.
func ValidateUsername(username string) error {
	switch n := len(username); {
	case n < MinUsernameLen:
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLen)
	case n > MaxUsernameLen:
		return fmt.Errorf("username must not exceed %d characters", MaxUsernameLen)
	case !usernamePattern.MatchString(username):
		return errors.New("username can only contain letters, numbers, and underscores")
	}
	return nil
}

// ValidateEmail is a shape check only; deliverability is not verified.
func ValidateEmail(email string) error {
	if len(email) > MaxEmailLen {
		return fmt.Errorf("email must not exceed %d characters", MaxEmailLen)
	}
	if !emailPattern.MatchString(email) || strings.HasSuffix(email, ".") {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidatePassword requires at least one letter and one digit.
func ValidatePassword(password string) error {
	switch n := len(password); {
	case n < MinPasswordLen:
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLen)
	case n > MaxPasswordLen:
		return fmt.Errorf("password must not exceed %d characters", MaxPasswordLen)
	}
	if strings.IndexFunc(password, unicode.IsLetter) < 0 {
		return errors.New("password must contain at least one letter")
	}
	if strings.IndexFunc(password, unicode.IsDigit) < 0 {
		return errors.New("password must contain at least one digit")
	}
	return nil
}
