package service

import (
	"context"
	"log/slog"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/prompts"
)

// SourceIdentifier narrows the context documents down to the ones the
// answer actually relies on
type SourceIdentifier struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
	logger  *slog.Logger
}

// NewSourceIdentifier creates a SourceIdentifier
func NewSourceIdentifier(gen llm.Generator, catalogue *prompts.Catalogue, logger *slog.Logger) *SourceIdentifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceIdentifier{gen: gen, prompts: catalogue, logger: logger}
}

type usedIndicesResponse struct {
	UsedIndices []int `json:"used_indices"`
}

// IdentifyUsedSources returns the subset of docs the answer draws on, in
// their original order. Any classifier failure returns docs unchanged.
func (s *SourceIdentifier) IdentifyUsedSources(ctx context.Context, answer string, docs []models.RetrievedDocument, question string) []models.RetrievedDocument {
	if answer == "" || len(docs) == 0 {
		return []models.RetrievedDocument{}
	}

	p, err := s.prompts.Render(prompts.IdentifySources, map[string]interface{}{
		"Question":  question,
		"Answer":    answer,
		"Documents": docs,
	})
	if err != nil {
		s.logger.Warn("failed to render source prompt, keeping all sources", "error", err)
		return docs
	}

	raw, err := s.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, JSON: true})
	if err != nil {
		s.logger.Warn("source identification failed, keeping all sources", "error", err)
		return docs
	}

	var resp usedIndicesResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		s.logger.Warn("unparseable source identification, keeping all sources", "error", err)
		return docs
	}

	return selectIndices(docs, resp.UsedIndices)
}

// selectIndices keeps docs whose index appears in indices, dropping
// out-of-range and repeated indices
func selectIndices(docs []models.RetrievedDocument, indices []int) []models.RetrievedDocument {
	wanted := make(map[int]bool, len(indices))
	for _, i := range indices {
		if i >= 0 && i < len(docs) {
			wanted[i] = true
		}
	}

	out := make([]models.RetrievedDocument, 0, len(wanted))
	for i, d := range docs {
		if wanted[i] {
			out = append(out, d)
		}
	}
	return out
}

// DedupeSourcesByContent keeps the first document for each distinct content
func DedupeSourcesByContent(docs []models.RetrievedDocument) []models.RetrievedDocument {
	seen := make(map[string]bool, len(docs))
	out := make([]models.RetrievedDocument, 0, len(docs))
	for _, d := range docs {
		if seen[d.Content] {
			continue
		}
		seen[d.Content] = true
		out = append(out, d)
	}
	return out
}
