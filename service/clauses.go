package service

import (
	"context"
	"log/slog"
	"strings"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/prompts"
)

// Chunk sizes in runes
const (
	AnalysisChunkSize    = 4000
	AnalysisChunkOverlap = 200
	IndexChunkSize       = 1000
	IndexChunkOverlap    = 200
)

// ClauseExtractor pulls clauses out of one chunk of bylaws text
type ClauseExtractor interface {
	Extract(ctx context.Context, chunk string) ([]models.ExtractedClause, error)
}

// SplitText cuts text into chunks of at most size runes, each starting
// overlap runes before the end of the previous one. Cuts prefer paragraph
// breaks, then line breaks, then sentence ends, then spaces.
func SplitText(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end)
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint finds a natural boundary in the second half of runes[start:end]
func cutPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len(window) / 2
	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if i := strings.LastIndex(window, sep); i >= half {
			return start + len([]rune(window[:i+len(sep)]))
		}
	}
	return end
}

// DeduplicateClauses keeps the first clause for each clause number,
// preserving order
func DeduplicateClauses(clauses []models.ExtractedClause) []models.ExtractedClause {
	seen := make(map[string]bool, len(clauses))
	out := make([]models.ExtractedClause, 0, len(clauses))
	for _, c := range clauses {
		if seen[c.ClauseNumber] {
			continue
		}
		seen[c.ClauseNumber] = true
		out = append(out, c)
	}
	return out
}

// ExtractAll runs the extractor on every chunk. Chunks that fail are
// logged and skipped. failed counts them.
func ExtractAll(ctx context.Context, extractor ClauseExtractor, chunks []string, logger *slog.Logger) (clauses []models.ExtractedClause, failed int, err error) {
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return nil, failed, err
		}
		found, err := extractor.Extract(ctx, chunk)
		if err != nil {
			failed++
			logger.Warn("clause extraction failed, skipping chunk", "chunk", i, "error", err)
			continue
		}
		clauses = append(clauses, found...)
	}
	return DeduplicateClauses(clauses), failed, nil
}

// LLMClauseExtractor implements ClauseExtractor with the extract_clauses prompt
type LLMClauseExtractor struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
}

// NewLLMClauseExtractor creates an LLMClauseExtractor
func NewLLMClauseExtractor(gen llm.Generator, catalogue *prompts.Catalogue) *LLMClauseExtractor {
	return &LLMClauseExtractor{gen: gen, prompts: catalogue}
}

type extractResponse struct {
	Clauses []struct {
		ClauseNumber string `json:"clause_number"`
		ClauseText   string `json:"clause_text"`
		Topic        string `json:"topic"`
	} `json:"clauses"`
}

// Extract implements ClauseExtractor
func (e *LLMClauseExtractor) Extract(ctx context.Context, chunk string) ([]models.ExtractedClause, error) {
	p, err := e.prompts.Render(prompts.ExtractClauses, map[string]interface{}{"Chunk": chunk})
	if err != nil {
		return nil, err
	}

	raw, err := e.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, JSON: true})
	if err != nil {
		return nil, err
	}

	var resp extractResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return nil, err
	}

	clauses := make([]models.ExtractedClause, 0, len(resp.Clauses))
	for _, c := range resp.Clauses {
		text := strings.TrimSpace(c.ClauseText)
		if text == "" {
			continue
		}
		number := strings.TrimSpace(c.ClauseNumber)
		if number == "" {
			// unnumbered clauses are identified by their opening words
			number = "s/n: " + excerpt(text, 40)
		}
		clauses = append(clauses, models.ExtractedClause{
			ClauseNumber: number,
			ClauseText:   text,
			Topic:        models.ParseTopic(c.Topic),
		})
	}
	return clauses, nil
}

// excerpt returns at most n runes of s
func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
