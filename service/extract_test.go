package service

import (
	"context"
	"errors"
	"testing"

	"condolex-backend/llm"
	"condolex-backend/prompts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractPlainText(t *testing.T) {
	gen := replyWith("unused")
	e := NewFileTextExtractor(gen, prompts.MustDefault())

	text, err := e.Extract(context.Background(), "regimento.txt", "", []byte("\ufeffArt. 1 Silêncio."))
	require.NoError(t, err)
	assert.Equal(t, "Art. 1 Silêncio.", text)

	latin1 := []byte{'C', 'o', 'n', 'd', 'o', 'm', 0xED, 'n', 'i', 'o'}
	text, err = e.Extract(context.Background(), "ata", "text/plain; charset=iso-8859-1", latin1)
	require.NoError(t, err)
	assert.Equal(t, "Condomínio", text)
	assert.Equal(t, 0, gen.callCount())
}

func TestExtractPDFUsesModel(t *testing.T) {
	gen := replyWith("  Art. 1 Texto transcrito.  ")
	e := NewFileTextExtractor(gen, prompts.MustDefault())

	text, err := e.Extract(context.Background(), "convencao.pdf", "application/pdf", []byte("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "Art. 1 Texto transcrito.", text)

	require.Equal(t, 1, gen.callCount())
	call := gen.calls[0]
	assert.Contains(t, call.Prompt, "convencao.pdf")
	require.Len(t, call.Attachments, 1)
	assert.Equal(t, llm.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF-1.7")}, call.Attachments[0])
}

func TestExtractErrors(t *testing.T) {
	e := NewFileTextExtractor(failWith(errors.New("quota")), prompts.MustDefault())

	_, err := e.Extract(context.Background(), "convencao.pdf", "", []byte("%PDF"))
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), "foto.png", "image/png", []byte{1})
	assert.ErrorIs(t, err, ErrUnsupportedFileType)
}

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, IsSupportedFile("a.PDF", ""))
	assert.True(t, IsSupportedFile("notas", "text/markdown"))
	assert.True(t, IsSupportedFile("upload", "application/pdf"))
	assert.False(t, IsSupportedFile("a.docx", "application/octet-stream"))
}
