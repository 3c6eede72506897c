package util

import (
	"strings"
	"unicode"
)

// CleanText strips control and invisible formatting characters from
// user-supplied free text and trims surrounding whitespace. Line breaks and
// tabs survive only when multiline is set.
func CleanText(s string, multiline bool) string {
	if s == "" {
		return ""
	}

	builder := strings.Builder{}
	builder.Grow(len(s))

	for _, char := range s {
		if multiline && (char == '\n' || char == '\t') {
			builder.WriteRune(char)
			continue
		}
		if char == '\r' {
			continue
		}
		if unicode.IsControl(char) || isInvisibleUnicode(char) {
			continue
		}
		builder.WriteRune(char)
	}

	return strings.TrimSpace(builder.String())
}

// isInvisibleUnicode returns true for zero-width, formatting, and other
// invisible Unicode characters.
func isInvisibleUnicode(r rune) bool {
	switch r {
	case
		'\u200B', // Zero-Width Space
		'\u200C', // Zero-Width Non-Joiner
		'\u200D', // Zero-Width Joiner
		'\u2060', // Word Joiner
		'\uFEFF', // Zero-Width No-Break Space / BOM
		'\uFFF9', // Interlinear Annotation Anchor
		'\uFFFA', // Interlinear Annotation Separator
		'\uFFFB': // Interlinear Annotation Terminator
		return true
	}

	// Format characters, bidi overrides included
	return unicode.Is(unicode.Cf, r)
}
