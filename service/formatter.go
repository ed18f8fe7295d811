package service

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Export formats
const (
	FormatTXT  = "txt"
	FormatDOCX = "docx"
	FormatPDF  = "pdf"
)

var ErrUnsupportedFormat = errors.New("unsupported export format")

var markdownRules = []struct {
	pattern *regexp.Regexp
	repl    string
}{
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`\*(.+?)\*`), "$1"},
	{regexp.MustCompile(`_(.+?)_`), "$1"},
	{regexp.MustCompile(`(?m)^#{1,6}\s+`), ""},
	{regexp.MustCompile(`(?m)^-{3,}$`), ""},
	{regexp.MustCompile(`(?m)^\*{3,}$`), ""},
}

// StripMarkdown removes bold, italic, heading and horizontal rule markup
func StripMarkdown(text string) string {
	for _, r := range markdownRules {
		text = r.pattern.ReplaceAllString(text, r.repl)
	}
	return text
}

// IsTitleLine reports whether line looks like a document title: at least
// 3 and under 80 characters, with more than 70% of its letters uppercase
func IsTitleLine(line string) bool {
	stripped := strings.TrimSpace(line)
	n := utf8.RuneCountInString(stripped)
	if n < 3 || n >= 80 {
		return false
	}

	var upper, letters int
	for _, r := range stripped {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return false
	}
	return float64(upper)/float64(letters) > 0.7
}

// DocumentTitle returns the first title line of text, or fallback
func DocumentTitle(text, fallback string) string {
	for _, line := range strings.Split(StripMarkdown(text), "\n") {
		if IsTitleLine(line) {
			return strings.TrimSpace(line)
		}
	}
	return fallback
}

// FormattedDocument is an exported document ready for download
type FormattedDocument struct {
	Content   []byte
	MimeType  string
	Extension string
}

// FormatDocument renders text in the requested format. Only plain text is
// produced; docx and pdf return ErrUnsupportedFormat.
func FormatDocument(text, format string) (*FormattedDocument, error) {
	switch strings.ToLower(format) {
	case "", FormatTXT:
		return &FormattedDocument{
			Content:   []byte(StripMarkdown(text)),
			MimeType:  "text/plain; charset=utf-8",
			Extension: ".txt",
		}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
