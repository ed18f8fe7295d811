package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/prompts"
)

const writerTemperature float32 = 0.3

var ErrUnknownDocumentType = errors.New("unknown document type")

// minimalFields is returned when no field set can be determined
var minimalFields = []models.DocumentField{
	{FieldID: "nome_condominio", Label: "Nome do Condomínio", FieldType: "text", Required: true},
	{FieldID: "conteudo", Label: "Conteúdo", FieldType: "textarea", Required: true},
	{FieldID: "nome_sindico", Label: "Nome do Síndico", FieldType: "text", Required: true},
}

// DraftingService detects, suggests and writes formal condominium documents
type DraftingService struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
	logger  *slog.Logger
}

// NewDraftingService creates a DraftingService
func NewDraftingService(gen llm.Generator, catalogue *prompts.Catalogue, logger *slog.Logger) *DraftingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftingService{gen: gen, prompts: catalogue, logger: logger}
}

// WriteRequest holds what the writer needs to draft a document
type WriteRequest struct {
	DocumentType     models.DocumentType
	DocumentName     string
	OriginalQuestion string
	PreviousAnswer   string
	AdditionalInfo   string
	// FieldValues are form answers keyed by field id
	FieldValues map[string]string
}

// DetectDocumentRequest checks whether message explicitly asks for a
// document. Failures are reported as "not a request".
func (s *DraftingService) DetectDocumentRequest(ctx context.Context, message string) models.DocumentRequest {
	var resp models.DocumentRequest
	if err := s.ask(ctx, prompts.DetectDocumentRequest, map[string]interface{}{"Question": message}, &resp); err != nil {
		s.logger.Warn("document request detection failed", "error", err)
		return models.DocumentRequest{}
	}
	if !resp.IsExplicitRequest || resp.DocumentType == "" {
		return models.DocumentRequest{}
	}
	if resp.DocumentName == "" {
		resp.DocumentName = resp.DocumentType.DisplayName()
	}
	return resp
}

// SuggestDocument decides whether to offer drafting a document after an
// answer. Failures are reported as "no suggestion".
func (s *DraftingService) SuggestDocument(ctx context.Context, question, answer string) models.DocumentSuggestion {
	var resp models.DocumentSuggestion
	err := s.ask(ctx, prompts.SuggestDocument, map[string]interface{}{"Question": question, "Answer": answer}, &resp)
	if err != nil {
		s.logger.Warn("document suggestion failed", "error", err)
		return models.DocumentSuggestion{}
	}
	if !resp.ShouldSuggest || resp.DocumentType == "" {
		return models.DocumentSuggestion{}
	}
	if resp.DocumentName == "" {
		resp.DocumentName = resp.DocumentType.DisplayName()
	}
	if resp.SuggestionMessage == "" {
		resp.SuggestionMessage = fmt.Sprintf("Gostaria que eu redigisse um(a) %s?", resp.DocumentName)
	}
	return resp
}

// DocumentFields returns the form fields for a document type. Known types
// use their predefined set; others are asked to the model, falling back to
// a minimal set.
func (s *DraftingService) DocumentFields(ctx context.Context, docType models.DocumentType, name, extraContext string) []models.DocumentField {
	if fields, ok := s.prompts.Fields(docType); ok {
		return fields
	}

	var resp struct {
		Fields []models.DocumentField `json:"fields"`
	}
	err := s.ask(ctx, prompts.DocumentFields, map[string]interface{}{
		"DocumentType": string(docType),
		"DocumentName": name,
		"Context":      extraContext,
	}, &resp)
	if err != nil || len(resp.Fields) == 0 {
		s.logger.Warn("could not determine document fields, using minimal set", "type", docType, "error", err)
		return MinimalFields()
	}
	return resp.Fields
}

// MinimalFields returns a copy of the fallback field set
func MinimalFields() []models.DocumentField {
	return append([]models.DocumentField(nil), minimalFields...)
}

// WriteDocument drafts the document text
func (s *DraftingService) WriteDocument(ctx context.Context, req WriteRequest) (string, error) {
	if req.DocumentType == "" {
		return "", ErrUnknownDocumentType
	}
	name := req.DocumentName
	if name == "" {
		name = req.DocumentType.DisplayName()
	}

	info := req.AdditionalInfo
	if len(req.FieldValues) > 0 {
		fields, _ := s.prompts.Fields(req.DocumentType)
		formatted := FormatFieldValues(fields, req.FieldValues)
		info = strings.TrimSpace(strings.Join([]string{formatted, info}, "\n"))
	}

	p, err := s.prompts.Render(prompts.WriteDocument, map[string]interface{}{
		"DocumentType":     string(req.DocumentType),
		"DocumentName":     name,
		"OriginalQuestion": req.OriginalQuestion,
		"PreviousAnswer":   req.PreviousAnswer,
		"AdditionalInfo":   info,
	})
	if err != nil {
		return "", err
	}

	text, err := s.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, Temperature: writerTemperature})
	if err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}
	return text, nil
}

// FormatFieldValues renders non-empty form answers as "label: value" lines,
// in field order, followed by values for unknown ids sorted by id
func FormatFieldValues(fields []models.DocumentField, values map[string]string) string {
	var lines []string
	known := make(map[string]bool, len(fields))
	for _, f := range fields {
		known[f.FieldID] = true
		if v := strings.TrimSpace(values[f.FieldID]); v != "" {
			lines = append(lines, f.Label+": "+v)
		}
	}

	var extra []string
	for id := range values {
		if !known[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		if v := strings.TrimSpace(values[id]); v != "" {
			lines = append(lines, id+": "+v)
		}
	}
	return strings.Join(lines, "\n")
}

func (s *DraftingService) ask(ctx context.Context, prompt string, data map[string]interface{}, out interface{}) error {
	p, err := s.prompts.Render(prompt, data)
	if err != nil {
		return err
	}
	raw, err := s.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, JSON: true})
	if err != nil {
		return err
	}
	return llm.DecodeJSON(raw, out)
}
