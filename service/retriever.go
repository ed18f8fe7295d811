package service

import (
	"context"
	"fmt"

	"condolex-backend/llm"
	"condolex-backend/models"
)

// DefaultTopK is the number of passages fetched per retrieval
const DefaultTopK = 5

// Retriever returns passages similar to a query
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]models.RetrievedDocument, error)
}

// CollectionRetriever returns passages from a named collection
type CollectionRetriever interface {
	RetrieveFrom(ctx context.Context, collection, query string) ([]models.RetrievedDocument, error)
}

// StatuteSearcher is the vector search side of the statute repository
type StatuteSearcher interface {
	SearchSimilar(ctx context.Context, embedding []float64, limit int) ([]models.StatuteArticle, error)
}

// VectorSearcher queries a collection in the internal document index
type VectorSearcher interface {
	Search(ctx context.Context, collection string, embedding []float64, limit int) ([]models.RetrievedDocument, error)
}

// StatuteRetriever searches the Civil Code article table
type StatuteRetriever struct {
	embedder llm.Embedder
	repo     StatuteSearcher
	topK     int
}

// NewStatuteRetriever creates a StatuteRetriever; topK <= 0 means DefaultTopK
func NewStatuteRetriever(embedder llm.Embedder, repo StatuteSearcher, topK int) *StatuteRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &StatuteRetriever{embedder: embedder, repo: repo, topK: topK}
}

// Retrieve implements Retriever
func (r *StatuteRetriever) Retrieve(ctx context.Context, query string) ([]models.RetrievedDocument, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	articles, err := r.repo.SearchSimilar(ctx, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search statute articles: %w", err)
	}

	docs := make([]models.RetrievedDocument, 0, len(articles))
	for _, a := range articles {
		docs = append(docs, a.ToDocument())
	}
	return docs, nil
}

// InternalRetriever searches the uploaded condominium documents
type InternalRetriever struct {
	embedder llm.Embedder
	index    VectorSearcher
	topK     int
}

// NewInternalRetriever creates an InternalRetriever; topK <= 0 means DefaultTopK
func NewInternalRetriever(embedder llm.Embedder, index VectorSearcher, topK int) *InternalRetriever {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &InternalRetriever{embedder: embedder, index: index, topK: topK}
}

// RetrieveFrom implements CollectionRetriever
func (r *InternalRetriever) RetrieveFrom(ctx context.Context, collection, query string) ([]models.RetrievedDocument, error) {
	embedding, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	docs, err := r.index.Search(ctx, collection, embedding, r.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search internal documents: %w", err)
	}

	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = map[string]interface{}{}
		}
		docs[i].Metadata["origin"] = models.OriginInternal
	}
	return docs, nil
}
