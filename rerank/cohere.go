// Package rerank scores passages against a query with the Cohere rerank API.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// DefaultModel is the Cohere rerank model used when none is configured
const DefaultModel = "rerank-v3.5"

var ErrMissingAPIKey = errors.New("COHERE_API_KEY not set")

// CohereReranker implements service.Reranker
type CohereReranker struct {
	client *cohereclient.Client
	model  string
}

// Option configures a CohereReranker
type Option func(*options)

type options struct {
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithModel overrides the rerank model
func WithModel(model string) Option {
	return func(o *options) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the client at another endpoint
func WithBaseURL(url string) Option {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// NewCohereReranker creates a reranker authenticated with apiKey
func NewCohereReranker(apiKey string, opts ...Option) (*CohereReranker, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	o := &options{
		model:      DefaultModel,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(o)
	}

	var client *cohereclient.Client
	if o.baseURL != "" {
		client = cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(o.httpClient),
			cohereclient.WithBaseURL(o.baseURL),
		)
	} else {
		client = cohereclient.NewClient(
			cohereclient.WithToken(apiKey),
			cohereclient.WithHTTPClient(o.httpClient),
		)
	}

	return &CohereReranker{client: client, model: o.model}, nil
}

// Rerank returns one relevance score per document, in input order
func (r *CohereReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	topN := len(documents)
	resp, err := r.client.V2.Rerank(ctx, &cohere.V2RerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
		TopN:      &topN,
	})
	if err != nil {
		return nil, fmt.Errorf("cohere rerank error: %w", err)
	}
	if resp == nil {
		return nil, errors.New("cohere rerank returned empty response")
	}

	scores := make([]float64, len(documents))
	seen := 0
	for _, item := range resp.Results {
		if item == nil || item.Index < 0 || item.Index >= len(documents) {
			continue
		}
		scores[item.Index] = item.RelevanceScore
		seen++
	}
	if seen != len(documents) {
		return nil, fmt.Errorf("cohere rerank scored %d of %d documents", seen, len(documents))
	}
	return scores, nil
}
