package service

import (
	"context"
	"fmt"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/prompts"
)

// AnswerGenerator writes an answer grounded on the given documents.
// An empty document list is valid input.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, docs []models.RetrievedDocument) (string, error)
}

const answerTemperature float32 = 0

// LLMAnswerGenerator implements AnswerGenerator with the generate_answer prompt
type LLMAnswerGenerator struct {
	gen     llm.Generator
	prompts *prompts.Catalogue
}

// NewLLMAnswerGenerator creates an LLMAnswerGenerator
func NewLLMAnswerGenerator(gen llm.Generator, catalogue *prompts.Catalogue) *LLMAnswerGenerator {
	return &LLMAnswerGenerator{gen: gen, prompts: catalogue}
}

// Generate implements AnswerGenerator
func (g *LLMAnswerGenerator) Generate(ctx context.Context, question string, docs []models.RetrievedDocument) (string, error) {
	if docs == nil {
		docs = []models.RetrievedDocument{}
	}
	p, err := g.prompts.Render(prompts.GenerateAnswer, map[string]interface{}{
		"Question":  question,
		"Documents": docs,
	})
	if err != nil {
		return "", err
	}

	answer, err := g.gen.Generate(ctx, llm.Request{
		System:      p.System,
		Prompt:      p.User,
		Temperature: answerTemperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return answer, nil
}
