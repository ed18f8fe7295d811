package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used for generation and classification
const DefaultModel = "gemini-2.5-flash"

// Attachment is binary content sent alongside a prompt (for example a PDF)
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Request is a single generation call
type Request struct {
	System      string
	Prompt      string
	Temperature float32
	// JSON asks the model to answer with a JSON document
	JSON        bool
	Attachments []Attachment
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Observer is notified after every model call
type Observer func(operation string, elapsed time.Duration, err error)

// GeminiGenerator implements Generator on top of the Gemini SDK
type GeminiGenerator struct {
	client   *genai.Client
	model    string
	retry    RetryConfig
	logger   *slog.Logger
	observer Observer
}

// GeminiOption configures a GeminiGenerator
type GeminiOption func(*GeminiGenerator)

// WithModel overrides the Gemini model name
func WithModel(model string) GeminiOption {
	return func(g *GeminiGenerator) {
		if model != "" {
			g.model = model
		}
	}
}

// WithRetryConfig overrides the retry policy
func WithRetryConfig(rc RetryConfig) GeminiOption {
	return func(g *GeminiGenerator) {
		g.retry = rc
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) GeminiOption {
	return func(g *GeminiGenerator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithObserver registers a callback run after each call
func WithObserver(o Observer) GeminiOption {
	return func(g *GeminiGenerator) {
		g.observer = o
	}
}

// NewGeminiClient opens a Gemini SDK client authenticated with apiKey
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// NewGeminiGenerator creates a generator backed by client
func NewGeminiGenerator(client *genai.Client, opts ...GeminiOption) *GeminiGenerator {
	g := &GeminiGenerator{
		client: client,
		model:  DefaultModel,
		retry:  DefaultRetryConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs a generation request with retries on transient failures
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	model := g.client.GenerativeModel(g.model)
	model.SetTemperature(req.Temperature)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	parts := make([]genai.Part, 0, len(req.Attachments)+1)
	for _, a := range req.Attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}
	parts = append(parts, genai.Text(req.Prompt))

	start := time.Now()
	var text string
	err := g.retry.do(ctx, func(attempt int) error {
		if attempt > 0 {
			g.logger.Warn("retrying Gemini generation", "model", g.model, "attempt", attempt+1)
		}
		resp, err := model.GenerateContent(ctx, parts...)
		if err != nil {
			return classifyGenAIError(err)
		}
		text = responseText(resp)
		if text == "" {
			return NewTransientError(ErrEmptyResponse)
		}
		return nil
	})

	if g.observer != nil {
		g.observer("generate", time.Since(start), err)
	}
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return text, nil
}

// responseText concatenates the text parts of all candidates
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
	}
	return strings.TrimSpace(sb.String())
}
