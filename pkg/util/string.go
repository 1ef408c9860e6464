package util

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug creates a URL-friendly slug
func GenerateSlug(s string) string {
	slug := strings.ToLower(s)
	slug = slugPattern.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > 50 {
		slug = slug[:50]
		slug = strings.Trim(slug, "-")
	}

	return slug
}

// SafeFilename keeps the extension and slugs the rest of an uploaded file name
func SafeFilename(name string) string {
	base := filepath.Base(name)
	ext := strings.ToLower(filepath.Ext(base))
	stem := GenerateSlug(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "upload"
	}
	return stem + ext
}

// ParseList parses "a, b" or "[a, b]" style strings into a slice
func ParseList(s string) []string {
	if s == "" {
		return []string{}
	}

	s = strings.Trim(s, "[]")

	parts := strings.Split(s, ",")
	var items []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "\"'")
		if part != "" {
			items = append(items, part)
		}
	}

	return items
}

// WordCount counts whitespace separated words
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// RuneLen is the length of s in characters
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateRunes returns the first n characters of s
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// CapitalizeFirst upper-cases the first character only
func CapitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// A word starts after any non-letter, so "case-study" becomes "Case-Study".
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}

// NormalizeText drops NUL bytes and invalid UTF-8 and trims the result
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", " ")
	s = strings.ToValidUTF8(s, "")
	return strings.TrimSpace(s)
}
