package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"condolex-backend/llm"
	"condolex-backend/models"
)

// DefaultBatchSize is the number of articles embedded per request
const DefaultBatchSize = 20

var ErrNoArticles = errors.New("no articles found in the page")

// ArticleStore persists embedded statute articles
type ArticleStore interface {
	Upsert(ctx context.Context, article *models.StatuteArticle, embedding []float64) error
}

// Ingester downloads, parses, embeds and stores statute articles
type Ingester struct {
	client    *http.Client
	embedder  llm.Embedder
	store     ArticleStore
	url       string
	first     int
	last      int
	batchSize int
	logger    *slog.Logger
}

// Option is a functional option for Ingester
type Option func(*Ingester)

// WithHTTPClient sets the client used to download the page
func WithHTTPClient(c *http.Client) Option {
	return func(i *Ingester) {
		i.client = c
	}
}

// WithURL overrides the source page
func WithURL(url string) Option {
	return func(i *Ingester) {
		i.url = url
	}
}

// WithRange limits ingestion to articles first through last
func WithRange(first, last int) Option {
	return func(i *Ingester) {
		i.first = first
		i.last = last
	}
}

// WithBatchSize sets how many articles are embedded per request
func WithBatchSize(n int) Option {
	return func(i *Ingester) {
		if n > 0 {
			i.batchSize = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(i *Ingester) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngester creates an ingester for the Civil Code condominium articles
func NewIngester(embedder llm.Embedder, store ArticleStore, opts ...Option) *Ingester {
	i := &Ingester{
		embedder:  embedder,
		store:     store,
		url:       CivilCodeURL,
		first:     FirstArticle,
		last:      LastArticle,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Run ingests every article in range and returns how many were stored
func (i *Ingester) Run(ctx context.Context) (int, error) {
	page, err := Fetch(ctx, i.client, i.url)
	if err != nil {
		return 0, err
	}

	text, err := HTMLToText(page)
	if err != nil {
		return 0, fmt.Errorf("failed to convert page: %w", err)
	}

	articles := ExtractArticles(text, i.first, i.last)
	if len(articles) == 0 {
		return 0, ErrNoArticles
	}
	i.logger.Info("extracted articles", "count", len(articles), "first", articles[0].ArticleNumber, "last", articles[len(articles)-1].ArticleNumber)

	stored := 0
	for start := 0; start < len(articles); start += i.batchSize {
		end := min(start+i.batchSize, len(articles))
		batch := articles[start:end]

		texts := make([]string, len(batch))
		for j, a := range batch {
			texts[j] = a.Text
		}
		embeddings, err := i.embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("failed to embed articles %s to %s: %w", batch[0].ArticleNumber, batch[len(batch)-1].ArticleNumber, err)
		}
		if len(embeddings) != len(batch) {
			return stored, fmt.Errorf("expected %d embeddings, got %d", len(batch), len(embeddings))
		}

		for j := range batch {
			if err := i.store.Upsert(ctx, &batch[j], embeddings[j]); err != nil {
				return stored, fmt.Errorf("failed to store article %s: %w", batch[j].ArticleNumber, err)
			}
			stored++
		}
		i.logger.Info("stored articles", "stored", stored, "total", len(articles))
	}
	return stored, nil
}
