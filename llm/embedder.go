package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"
)

const (
	// DefaultEmbeddingModel is the Gemini embedding model
	DefaultEmbeddingModel = "gemini-embedding-001"
	// EmbeddingDimensions is the vector size stored in the statute index
	EmbeddingDimensions = 768
	// DefaultGeminiBaseURL is the Gemini REST endpoint
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// Task types accepted by the embedding API
	TaskRetrievalQuery    = "RETRIEVAL_QUERY"
	TaskRetrievalDocument = "RETRIEVAL_DOCUMENT"

	maxBatchSize = 100
)

// ErrEmbeddingFailed is returned when the API gives no usable vector
var ErrEmbeddingFailed = errors.New("failed to generate embedding")

// Embedder turns text into vectors
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float64, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingRequest represents an embedding API request
type EmbeddingRequest struct {
	Model                string       `json:"model"`
	Content              ContentInput `json:"content"`
	TaskType             string       `json:"task_type,omitempty"`
	OutputDimensionality int          `json:"output_dimensionality,omitempty"`
}

// ContentInput represents content for embedding
type ContentInput struct {
	Parts []PartInput `json:"parts"`
}

// PartInput represents a part of content
type PartInput struct {
	Text string `json:"text"`
}

// EmbeddingResponse represents an embedding API response
type EmbeddingResponse struct {
	Embedding EmbeddingData `json:"embedding"`
}

// BatchEmbeddingRequest represents a batchEmbedContents request
type BatchEmbeddingRequest struct {
	Requests []EmbeddingRequest `json:"requests"`
}

// BatchEmbeddingResponse represents a batchEmbedContents response
type BatchEmbeddingResponse struct {
	Embeddings []EmbeddingData `json:"embeddings"`
}

// EmbeddingData contains the embedding values
type EmbeddingData struct {
	Values []float64 `json:"values"`
}

// GeminiEmbedder calls the Gemini embedding REST API directly
type GeminiEmbedder struct {
	apiKey     string
	baseURL    string
	model      string
	dimensions int
	httpClient *http.Client
	retry      RetryConfig
	logger     *slog.Logger
	observer   Observer
}

// EmbedderOption configures a GeminiEmbedder
type EmbedderOption func(*GeminiEmbedder)

// EmbedderWithBaseURL overrides the API base URL
func EmbedderWithBaseURL(url string) EmbedderOption {
	return func(e *GeminiEmbedder) {
		if url != "" {
			e.baseURL = url
		}
	}
}

// EmbedderWithModel overrides the embedding model
func EmbedderWithModel(model string) EmbedderOption {
	return func(e *GeminiEmbedder) {
		if model != "" {
			e.model = model
		}
	}
}

// EmbedderWithHTTPClient overrides the HTTP client
func EmbedderWithHTTPClient(c *http.Client) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.httpClient = c
	}
}

// EmbedderWithRetryConfig overrides the retry policy
func EmbedderWithRetryConfig(rc RetryConfig) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.retry = rc
	}
}

// EmbedderWithLogger sets the logger
func EmbedderWithLogger(logger *slog.Logger) EmbedderOption {
	return func(e *GeminiEmbedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// EmbedderWithObserver registers a callback run after each call
func EmbedderWithObserver(o Observer) EmbedderOption {
	return func(e *GeminiEmbedder) {
		e.observer = o
	}
}

// NewGeminiEmbedder creates an embedder for the given API key
func NewGeminiEmbedder(apiKey string, opts ...EmbedderOption) *GeminiEmbedder {
	e := &GeminiEmbedder{
		apiKey:     apiKey,
		baseURL:    DefaultGeminiBaseURL,
		model:      DefaultEmbeddingModel,
		dimensions: EmbeddingDimensions,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      DefaultRetryConfig(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EmbedQuery embeds a retrieval query
func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float64, error) {
	reqBody := e.request(text, TaskRetrievalQuery)

	var apiResp EmbeddingResponse
	start := time.Now()
	err := e.post(ctx, "embedContent", reqBody, &apiResp)
	if e.observer != nil {
		e.observer("embed", time.Since(start), err)
	}
	if err != nil {
		return nil, err
	}
	if len(apiResp.Embedding.Values) == 0 {
		return nil, ErrEmbeddingFailed
	}
	return normalize(apiResp.Embedding.Values), nil
}

// EmbedDocuments embeds texts for storage, batching requests
func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))
	for startIdx := 0; startIdx < len(texts); startIdx += maxBatchSize {
		end := startIdx + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := BatchEmbeddingRequest{Requests: make([]EmbeddingRequest, 0, end-startIdx)}
		for _, t := range texts[startIdx:end] {
			batch.Requests = append(batch.Requests, e.request(t, TaskRetrievalDocument))
		}

		var apiResp BatchEmbeddingResponse
		start := time.Now()
		err := e.post(ctx, "batchEmbedContents", batch, &apiResp)
		if e.observer != nil {
			e.observer("embed_batch", time.Since(start), err)
		}
		if err != nil {
			return nil, err
		}
		if len(apiResp.Embeddings) != end-startIdx {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingFailed, end-startIdx, len(apiResp.Embeddings))
		}
		for _, emb := range apiResp.Embeddings {
			out = append(out, normalize(emb.Values))
		}
	}
	return out, nil
}

func (e *GeminiEmbedder) request(text, taskType string) EmbeddingRequest {
	return EmbeddingRequest{
		Model: "models/" + e.model,
		Content: ContentInput{
			Parts: []PartInput{{Text: text}},
		},
		TaskType:             taskType,
		OutputDimensionality: e.dimensions,
	}
}

// post sends body to the model method and decodes the JSON answer into out
func (e *GeminiEmbedder) post(ctx context.Context, method string, body interface{}, out interface{}) error {
	if e.apiKey == "" {
		return NewFatalError(errors.New("GEMINI_API_KEY not set"))
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	url := fmt.Sprintf("%s/models/%s:%s", e.baseURL, e.model, method)

	return e.retry.do(ctx, func(attempt int) error {
		if attempt > 0 {
			e.logger.Warn("retrying embedding request", "method", method, "attempt", attempt+1)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
		if err != nil {
			return NewFatalError(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("x-goog-api-key", e.apiKey)

		resp, err := e.httpClient.Do(req)
		if err != nil {
			return NewTransientError(fmt.Errorf("failed to send request: %w", err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			return classifyStatus(resp.StatusCode, fmt.Errorf("API error: %d - %s", resp.StatusCode, truncate(string(bodyBytes), 300)))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return NewTransientError(fmt.Errorf("failed to decode response: %w", err))
		}
		return nil
	})
}

// normalize scales v to unit length in place
func normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range v {
			v[i] /= norm
		}
	}
	return v
}
