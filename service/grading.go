package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"condolex-backend/llm"
	"condolex-backend/prompts"
)

// Grading strategies selectable through configuration
const (
	StrategyLabel  = "label"
	StrategyRerank = "rerank"
)

var (
	ErrGradingFailed   = errors.New("failed to grade document")
	ErrUnknownStrategy = errors.New("unknown grading strategy")
)

// Verdict is the outcome of scoring one document against a question
type Verdict struct {
	Relevant bool
	Label    string
	Score    float64
}

// RelevanceScorer decides whether a document helps answer a question
type RelevanceScorer interface {
	Score(ctx context.Context, question, content string) (Verdict, error)
}

// Reranker scores documents against a query with a cross-encoder.
// The returned slice is parallel to documents.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string) ([]float64, error)
}

// IsRelevantLabel reports whether a judge label means "relevant"
func IsRelevantLabel(label string) bool {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "yes", "sim":
		return true
	default:
		return false
	}
}

// LabelScorer asks the model for a yes/no relevance label
type LabelScorer struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
}

// NewLabelScorer creates a LabelScorer
func NewLabelScorer(gen llm.Generator, catalogue *prompts.Catalogue) *LabelScorer {
	return &LabelScorer{gen: gen, prompts: catalogue}
}

type gradeResponse struct {
	Score string `json:"score"`
}

// Score implements RelevanceScorer
func (s *LabelScorer) Score(ctx context.Context, question, content string) (Verdict, error) {
	p, err := s.prompts.Render(prompts.GradeDocument, map[string]interface{}{
		"Question": question,
		"Document": content,
	})
	if err != nil {
		return Verdict{}, err
	}

	raw, err := s.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, JSON: true})
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrGradingFailed, err)
	}

	label := strings.TrimSpace(raw)
	var resp gradeResponse
	if err := llm.DecodeJSON(raw, &resp); err == nil && resp.Score != "" {
		label = resp.Score
	}

	v := Verdict{Relevant: IsRelevantLabel(label), Label: label}
	if v.Relevant {
		v.Score = 1
	}
	return v, nil
}

// ThresholdScorer keeps documents whose rerank score reaches a threshold
type ThresholdScorer struct {
	reranker  Reranker
	threshold float64
}

// NewThresholdScorer creates a ThresholdScorer
func NewThresholdScorer(reranker Reranker, threshold float64) *ThresholdScorer {
	return &ThresholdScorer{reranker: reranker, threshold: threshold}
}

// Score implements RelevanceScorer
func (s *ThresholdScorer) Score(ctx context.Context, question, content string) (Verdict, error) {
	scores, err := s.reranker.Rerank(ctx, question, []string{content})
	if err != nil {
		return Verdict{}, fmt.Errorf("%w: %w", ErrGradingFailed, err)
	}
	if len(scores) != 1 {
		return Verdict{}, fmt.Errorf("%w: reranker returned %d scores for 1 document", ErrGradingFailed, len(scores))
	}
	return Verdict{Relevant: scores[0] >= s.threshold, Score: scores[0]}, nil
}

// NewRelevanceScorer builds the scorer named by strategy. reranker may be
// nil unless strategy is StrategyRerank.
func NewRelevanceScorer(strategy string, gen llm.Generator, catalogue *prompts.Catalogue, reranker Reranker, threshold float64) (RelevanceScorer, error) {
	switch strings.ToLower(strategy) {
	case "", StrategyLabel:
		return NewLabelScorer(gen, catalogue), nil
	case StrategyRerank:
		if reranker == nil {
			return nil, fmt.Errorf("%w: rerank strategy needs a reranker", ErrUnknownStrategy)
		}
		return NewThresholdScorer(reranker, threshold), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
	}
}
