// Package sanitize cleans and bounds-checks raw user and model text before it
// enters the chat pipeline. All functions are pure.
package sanitize

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// DefaultMaxLength is the length cap applied when a caller passes no limit.
const DefaultMaxLength = 2000

// ErrDisallowedContent is returned for input matching the injection
// blocklist. Deliberately generic: the matched pattern is never echoed back.
var ErrDisallowedContent = errors.New("content contains disallowed patterns")

var (
	ErrEmpty       = errors.New("content cannot be empty")
	ErrTooLong     = errors.New("content exceeds maximum length")
	ErrInvalidUTF8 = errors.New("content must be valid UTF-8")
)

// blocklist covers script and markup injection vectors. Matching is
// case-insensitive.
var blocklist = []*regexp.Regexp{
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)\bon\w+\s*=`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)<\s*object`),
	regexp.MustCompile(`(?i)<\s*embed`),
	regexp.MustCompile(`(?i)<\s*script`),
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// Validate checks raw input against length bounds and the injection
// blocklist. maxLen <= 0 selects DefaultMaxLength.
func Validate(text string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmpty
	}
	if len(text) > maxLen {
		return ErrTooLong
	}
	if !utf8.ValidString(text) {
		return ErrInvalidUTF8
	}
	for _, p := range blocklist {
		if p.MatchString(text) {
			return ErrDisallowedContent
		}
	}
	return nil
}

// Sanitize strips all markup tags, trims surrounding whitespace and
// truncates to maxLen. It is applied to every message in conversation
// context, not only the newest one.
func Sanitize(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	out := tagPattern.ReplaceAllString(text, "")
	out = strings.TrimSpace(out)
	if len(out) > maxLen {
		out = truncateUTF8(out, maxLen)
	}
	return out
}

// truncateUTF8 cuts at maxLen bytes without splitting a rune.
func truncateUTF8(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
