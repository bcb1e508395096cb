// Package validation holds the input rules shared by several handlers.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MinFeedbackLength is the shortest feedback text worth classifying.
const MinFeedbackLength = 10

var (
	ErrNameLength       = errors.New("invalid name length")
	ErrFeedbackTooShort = fmt.Errorf("feedback must be at least %d characters", MinFeedbackLength)
)

// Name trims s and checks that it has between min and max characters.
func Name(s string, min, max int) (string, error) {
	s = strings.TrimSpace(s)
	if n := utf8.RuneCountInString(s); n < min || n > max {
		return "", fmt.Errorf("%w: must be between %d and %d characters", ErrNameLength, min, max)
	}
	return s, nil
}

// FeedbackText trims s and rejects texts shorter than MinFeedbackLength.
func FeedbackText(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !LongEnough(s) {
		return "", ErrFeedbackTooShort
	}
	return s, nil
}

// LongEnough reports whether an already trimmed text meets MinFeedbackLength.
func LongEnough(s string) bool {
	return utf8.RuneCountInString(s) >= MinFeedbackLength
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
