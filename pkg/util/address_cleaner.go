package util

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// htmlTagPattern matches HTML tags like <span>, </span>, <div>, </div>, etc.
	htmlTagPattern = regexp.MustCompile(`<[^>]*>`)
	// multiSpacePattern matches multiple consecutive whitespace characters
	multiSpacePattern = regexp.MustCompile(`\s+`)
	// textJunkPattern drops everything except word characters, spaces and basic punctuation.
	textJunkPattern = regexp.MustCompile(`[^\w\s\-.,()&/]`)
	// addressJunkPattern additionally keeps '#' used in plot and door numbers.
	addressJunkPattern = regexp.MustCompile(`[^\w\s\-.,()#/&]`)
	// commaRunPattern collapses ",," and ", ," left behind by empty address parts.
	commaRunPattern = regexp.MustCompile(`(\s*,\s*)+`)
	phoneJunkPattern = regexp.MustCompile(`[^\d+]`)

	titleCaser = cases.Title(language.English)
)

// CleanText strips markup and stray symbols from a scraped text field.
func CleanText(s string) string {
	s = cleanField(s)
	if s == "" {
		return ""
	}
	s = textJunkPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
}

// CleanAddress normalizes a scraped postal address, collapsing empty comma-separated
// parts and title-casing shouty all-caps values.
func CleanAddress(s string) string {
	s = cleanField(s)
	if s == "" {
		return ""
	}
	s = addressJunkPattern.ReplaceAllString(s, "")
	s = commaRunPattern.ReplaceAllString(s, ", ")
	s = strings.Trim(strings.TrimSpace(s), ",")
	s = strings.TrimSpace(multiSpacePattern.ReplaceAllString(s, " "))
	if s != "" && s == strings.ToUpper(s) {
		s = titleCaser.String(strings.ToLower(s))
	}
	return s
}

// TitleCase title-cases s, e.g. "new delhi" -> "New Delhi".
func TitleCase(s string) string {
	return titleCaser.String(strings.ToLower(strings.TrimSpace(s)))
}

// DigitsOnly keeps digits and a leading '+' in a phone number.
func DigitsOnly(phone string) string {
	return phoneJunkPattern.ReplaceAllString(phone, "")
}

// cleanField removes HTML tags, escape sequences, and normalizes whitespace.
func cleanField(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ReplaceAll(s, `<\/`, `</`)
	s = strings.ReplaceAll(s, `\/`, `/`)
	s = htmlTagPattern.ReplaceAllString(s, "")

	s = strings.ReplaceAll(s, "&amp;", "&")
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", `"`)
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&nbsp;", " ")

	s = multiSpacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NeedsCleanup checks if a field contains HTML remnants that need cleaning.
func NeedsCleanup(fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(f, "<") ||
			strings.Contains(f, `\/`) ||
			strings.Contains(f, `\n`) ||
			strings.Contains(f, "&nbsp;") {
			return true
		}
	}
	return false
}
