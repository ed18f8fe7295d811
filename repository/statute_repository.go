package repository

import (
	"context"
	"fmt"
	"strings"

	"condolex-backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EmbeddingDimensions is the width of the statute_articles.embedding column
const EmbeddingDimensions = 768

// StatuteRepository handles database operations for Civil Code articles
type StatuteRepository struct {
	db *pgxpool.Pool
}

// NewStatuteRepository creates a new statute repository
func NewStatuteRepository(db *pgxpool.Pool) *StatuteRepository {
	return &StatuteRepository{db: db}
}

// formatVector formats an embedding vector as a pgvector literal
func formatVector(embedding []float64) string {
	if len(embedding) == 0 {
		return "[]"
	}
	parts := make([]string, 0, len(embedding))
	for _, v := range embedding {
		parts = append(parts, fmt.Sprintf("%.6f", v))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// SearchSimilar returns the articles closest to embedding by cosine distance
func (r *StatuteRepository) SearchSimilar(
	ctx context.Context,
	embedding []float64,
	limit int,
) ([]models.StatuteArticle, error) {
	if len(embedding) != EmbeddingDimensions {
		return nil, fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	query := `
		SELECT
			id,
			article_number,
			article_text,
			law,
			source_url,
			metadata,
			embedding <=> $1::vector AS distance
		FROM statute_articles
		ORDER BY embedding <=> $1::vector
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, formatVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query statute articles: %w", err)
	}
	defer rows.Close()

	var articles []models.StatuteArticle
	for rows.Next() {
		var a models.StatuteArticle
		if err := rows.Scan(
			&a.ID,
			&a.ArticleNumber,
			&a.Text,
			&a.Law,
			&a.SourceURL,
			&a.Metadata,
			&a.Distance,
		); err != nil {
			return nil, fmt.Errorf("failed to scan statute article: %w", err)
		}
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating statute articles: %w", err)
	}

	return articles, nil
}

// Upsert inserts an article or replaces the text and embedding of an
// existing one with the same law and number
func (r *StatuteRepository) Upsert(ctx context.Context, article *models.StatuteArticle, embedding []float64) error {
	if len(embedding) != EmbeddingDimensions {
		return fmt.Errorf("embedding must be %d dimensions, got %d", EmbeddingDimensions, len(embedding))
	}

	metadata := article.Metadata
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	query := `
		INSERT INTO statute_articles (
			article_number, article_text, law, source_url, metadata, embedding
		) VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (law, article_number) DO UPDATE SET
			article_text = EXCLUDED.article_text,
			source_url = EXCLUDED.source_url,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding,
			updated_at = NOW()
		RETURNING id`

	return r.db.QueryRow(
		ctx, query,
		article.ArticleNumber,
		article.Text,
		article.Law,
		article.SourceURL,
		metadata,
		formatVector(embedding),
	).Scan(&article.ID)
}

// Count returns the number of stored articles
func (r *StatuteRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM statute_articles`).Scan(&n)
	return n, err
}
