package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripMarkdown(t *testing.T) {
	cases := map[string]string{
		"This is **bold** text":             "This is bold text",
		"This is __bold__ text":             "This is bold text",
		"This is *italic* text":             "This is italic text",
		"This is _italic_ text":             "This is italic text",
		"":                                  "",
		"Plain text without any formatting": "Plain text without any formatting",
	}
	for in, want := range cases {
		assert.Equal(t, want, StripMarkdown(in), in)
	}

	headings := StripMarkdown("# Heading 1\n## Heading 2\n### Heading 3")
	assert.Contains(t, headings, "Heading 1")
	assert.NotContains(t, headings, "#")

	rules := StripMarkdown("Before\n---\nAfter\n***\nEnd")
	assert.NotContains(t, rules, "---")
	assert.NotContains(t, rules, "***")
}

func TestIsTitleLine(t *testing.T) {
	assert.True(t, IsTitleLine("NOTIFICAÇÃO DE BARULHO"))
	assert.True(t, IsTitleLine("  TITULO DO DOCUMENTO  "))
	assert.False(t, IsTitleLine("TITULO Com Algumas Minusculas"))
	assert.False(t, IsTitleLine("this is not a title"))
	assert.False(t, IsTitleLine("AB"))
	assert.False(t, IsTitleLine(""))
	assert.False(t, IsTitleLine("   "))
	assert.False(t, IsTitleLine(strings.Repeat("A", 100)))
	assert.False(t, IsTitleLine("12345"))
}

func TestDocumentTitle(t *testing.T) {
	text := "Condomínio Solar\n\n**ADVERTÊNCIA**\n\nPrezado condômino..."
	assert.Equal(t, "ADVERTÊNCIA", DocumentTitle(text, "documento"))
	assert.Equal(t, "documento", DocumentTitle("sem titulo aqui", "documento"))
}

func TestFormatDocument(t *testing.T) {
	doc, err := FormatDocument("## AVISO\n\nTexto em **negrito**.", FormatTXT)
	require.NoError(t, err)
	assert.Equal(t, "AVISO\n\nTexto em negrito.", string(doc.Content))
	assert.Equal(t, ".txt", doc.Extension)
	assert.True(t, strings.HasPrefix(doc.MimeType, "text/plain"))

	_, err = FormatDocument("x", FormatPDF)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	_, err = FormatDocument("x", FormatDOCX)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
