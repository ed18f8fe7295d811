package service

import (
	"context"
	"fmt"
	"strings"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/prompts"
)

// ManualReviewRecommendation is the recommendation attached to clauses the
// classifier could not evaluate
const ManualReviewRecommendation = "revisar manualmente"

// IllegalityClassifier judges one clause against the retrieved statute text
type IllegalityClassifier interface {
	Classify(ctx context.Context, clause models.ExtractedClause, articles string) (models.IllegalityVerdict, error)
}

// SafeVerdict is the verdict recorded when classification fails
func SafeVerdict(err error) models.IllegalityVerdict {
	return models.IllegalityVerdict{
		IsPotentiallyIllegal: false,
		Confidence:           models.ConfidenceLow,
		ConflictingArticles:  []string{},
		Explanation:          fmt.Sprintf("Erro na análise: %v", err),
		Recommendation:       ManualReviewRecommendation,
	}
}

// LLMIllegalityClassifier implements IllegalityClassifier with the
// analyze_clause prompt
type LLMIllegalityClassifier struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
}

// NewLLMIllegalityClassifier creates an LLMIllegalityClassifier
func NewLLMIllegalityClassifier(gen llm.Generator, catalogue *prompts.Catalogue) *LLMIllegalityClassifier {
	return &LLMIllegalityClassifier{gen: gen, prompts: catalogue}
}

type verdictResponse struct {
	IsPotentiallyIllegal   bool     `json:"is_potentially_illegal"`
	Confidence             string   `json:"confidence"`
	ConflictingArticles    []string `json:"conflicting_articles"`
	Explanation            string   `json:"explanation"`
	LegalPrincipleViolated *string  `json:"legal_principle_violated"`
	Recommendation         string   `json:"recommendation"`
}

// Classify implements IllegalityClassifier
func (c *LLMIllegalityClassifier) Classify(ctx context.Context, clause models.ExtractedClause, articles string) (models.IllegalityVerdict, error) {
	p, err := c.prompts.Render(prompts.AnalyzeClause, map[string]interface{}{
		"Articles":     articles,
		"ClauseNumber": clause.ClauseNumber,
		"Topic":        string(clause.Topic),
		"ClauseText":   clause.ClauseText,
	})
	if err != nil {
		return models.IllegalityVerdict{}, err
	}

	raw, err := c.gen.Generate(ctx, llm.Request{System: p.System, Prompt: p.User, JSON: true})
	if err != nil {
		return models.IllegalityVerdict{}, err
	}

	var resp verdictResponse
	if err := llm.DecodeJSON(raw, &resp); err != nil {
		return models.IllegalityVerdict{}, err
	}

	v := models.IllegalityVerdict{
		IsPotentiallyIllegal: resp.IsPotentiallyIllegal,
		Confidence:           models.ParseConfidence(resp.Confidence),
		ConflictingArticles:  make([]string, 0, len(resp.ConflictingArticles)),
		Explanation:          strings.TrimSpace(resp.Explanation),
		Recommendation:       strings.TrimSpace(resp.Recommendation),
	}
	for _, a := range resp.ConflictingArticles {
		if a = strings.TrimSpace(a); a != "" {
			v.ConflictingArticles = append(v.ConflictingArticles, a)
		}
	}
	if resp.LegalPrincipleViolated != nil {
		if principle := strings.TrimSpace(*resp.LegalPrincipleViolated); principle != "" {
			v.LegalPrincipleViolated = &principle
		}
	}
	return v, nil
}
