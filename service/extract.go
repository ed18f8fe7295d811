package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"condolex-backend/llm"
	"condolex-backend/prompts"

	"golang.org/x/text/encoding/charmap"
)

var ErrUnsupportedFileType = errors.New("unsupported file type")

// TextExtractor turns an uploaded file into plain text
type TextExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error)
}

// FileTextExtractor reads plain text files directly and asks the model to
// transcribe PDFs
type FileTextExtractor struct {
	gen       llm.Generator
	catalogue *prompts.Catalogue
}

// NewFileTextExtractor creates a new text extractor
func NewFileTextExtractor(gen llm.Generator, catalogue *prompts.Catalogue) *FileTextExtractor {
	return &FileTextExtractor{gen: gen, catalogue: catalogue}
}

// Extract returns the text content of data
func (e *FileTextExtractor) Extract(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	switch fileKind(filename, mimeType) {
	case "text":
		return decodeText(data), nil
	case "pdf":
		return e.transcribe(ctx, filename, "application/pdf", data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, filename)
	}
}

func (e *FileTextExtractor) transcribe(ctx context.Context, filename, mimeType string, data []byte) (string, error) {
	if e.gen == nil || e.catalogue == nil {
		return "", errors.New("pdf extraction requires a generator")
	}

	rendered, err := e.catalogue.Render(prompts.ExtractText, map[string]interface{}{
		"Filename": filename,
	})
	if err != nil {
		return "", err
	}

	text, err := e.gen.Generate(ctx, llm.Request{
		System:      rendered.System,
		Prompt:      rendered.User,
		Attachments: []llm.Attachment{{MIMEType: mimeType, Data: data}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}
	return strings.TrimSpace(text), nil
}

// IsSupportedFile reports whether Extract can handle the file
func IsSupportedFile(filename, mimeType string) bool {
	return fileKind(filename, mimeType) != ""
}

func fileKind(filename, mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md":
		return "text"
	case ".pdf":
		return "pdf"
	}
	switch {
	case mimeType == "application/pdf":
		return "pdf"
	case strings.HasPrefix(mimeType, "text/"):
		return "text"
	}
	return ""
}

// decodeText reads UTF-8, falling back to Latin-1 for legacy files
func decodeText(data []byte) string {
	if utf8.Valid(data) {
		return strings.TrimPrefix(string(data), "\ufeff")
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}
