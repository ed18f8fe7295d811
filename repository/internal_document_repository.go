package repository

import (
	"context"

	"condolex-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// InternalDocumentRepository handles database operations for uploaded
// condominium documents
type InternalDocumentRepository struct {
	db *pgxpool.Pool
}

// NewInternalDocumentRepository creates a new internal document repository
func NewInternalDocumentRepository(db *pgxpool.Pool) *InternalDocumentRepository {
	return &InternalDocumentRepository{db: db}
}

// Create creates a new internal document record
func (r *InternalDocumentRepository) Create(ctx context.Context, doc *models.InternalDocument) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}

	query := `
		INSERT INTO internal_documents (
			id, filename, mime_type, size, storage_path, collection, chunk_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return r.db.QueryRow(
		ctx, query,
		doc.ID,
		doc.Filename,
		doc.MimeType,
		doc.Size,
		doc.StoragePath,
		doc.Collection,
		doc.ChunkCount,
	).Scan(&doc.CreatedAt)
}

// ListByCollection retrieves the documents indexed into a collection
func (r *InternalDocumentRepository) ListByCollection(ctx context.Context, collection string) ([]*models.InternalDocument, error) {
	query := `
		SELECT id, filename, mime_type, size, storage_path, collection, chunk_count, created_at
		FROM internal_documents
		WHERE collection = $1
		ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*models.InternalDocument
	for rows.Next() {
		doc := &models.InternalDocument{}
		err := rows.Scan(
			&doc.ID,
			&doc.Filename,
			&doc.MimeType,
			&doc.Size,
			&doc.StoragePath,
			&doc.Collection,
			&doc.ChunkCount,
			&doc.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// LatestCollection returns the collection of the most recent upload, or ""
func (r *InternalDocumentRepository) LatestCollection(ctx context.Context) (string, error) {
	query := `
		SELECT collection
		FROM internal_documents
		ORDER BY created_at DESC
		LIMIT 1`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	var collection string
	if rows.Next() {
		if err := rows.Scan(&collection); err != nil {
			return "", err
		}
	}
	return collection, rows.Err()
}

// DeleteByCollection deletes the records of a collection
func (r *InternalDocumentRepository) DeleteByCollection(ctx context.Context, collection string) error {
	query := `DELETE FROM internal_documents WHERE collection = $1`
	_, err := r.db.Exec(ctx, query, collection)
	return err
}
