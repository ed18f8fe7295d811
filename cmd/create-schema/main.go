package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"condolex-backend/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

var tables = []struct {
	name string
	sql  string
}{
	{
		name: "statute_articles",
		sql: `
CREATE TABLE IF NOT EXISTS statute_articles (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),

    -- "1331", "1331-A"
    article_number VARCHAR(20) NOT NULL,
    article_text TEXT NOT NULL,
    law VARCHAR(100) NOT NULL,
    source_url TEXT,
    metadata JSONB DEFAULT '{}'::jsonb,

    embedding vector(768),

    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),

    CONSTRAINT statute_article_unique UNIQUE (law, article_number)
);`,
	},
	{
		name: "analysis_jobs",
		sql: `
CREATE TABLE IF NOT EXISTS analysis_jobs (
    id UUID PRIMARY KEY,
    document_name TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    mime_type VARCHAR(100),
    status VARCHAR(20) NOT NULL CHECK (status IN ('pending', 'in_progress', 'completed', 'failed')),
    current_step TEXT,
    steps JSONB DEFAULT '[]'::jsonb,
    report JSONB,
    error_message TEXT,
    created_at TIMESTAMP DEFAULT NOW(),
    updated_at TIMESTAMP DEFAULT NOW(),
    completed_at TIMESTAMP
);`,
	},
	{
		name: "internal_documents",
		sql: `
CREATE TABLE IF NOT EXISTS internal_documents (
    id UUID PRIMARY KEY,
    filename TEXT NOT NULL,
    mime_type VARCHAR(100),
    size BIGINT NOT NULL DEFAULT 0,
    storage_path TEXT NOT NULL,
    -- Chroma collection holding the document chunks
    collection VARCHAR(255) NOT NULL,
    chunk_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT NOW()
);`,
	},
}

var indexes = []struct {
	name string
	sql  string
}{
	{
		name: "Vector similarity search (HNSW)",
		sql: `CREATE INDEX IF NOT EXISTS idx_statute_embedding_hnsw ON statute_articles
USING hnsw (embedding vector_cosine_ops)
WITH (m = 16, ef_construction = 64);`,
	},
	{
		name: "Statute law filtering",
		sql:  "CREATE INDEX IF NOT EXISTS idx_statute_law ON statute_articles(law);",
	},
	{
		name: "Job status filtering",
		sql:  "CREATE INDEX IF NOT EXISTS idx_analysis_jobs_status ON analysis_jobs(status);",
	},
	{
		name: "Internal documents by collection",
		sql:  "CREATE INDEX IF NOT EXISTS idx_internal_documents_collection ON internal_documents(collection, created_at DESC);",
	},
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		logger.Warn("failed to create pgvector extension", "error", err)
	} else {
		logger.Info("pgvector extension enabled")
	}

	for _, table := range tables {
		if _, err := pool.Exec(ctx, table.sql); err != nil {
			logger.Error("failed to create table", "table", table.name, "error", err)
			os.Exit(1)
		}
		logger.Info("created table", "table", table.name)
	}

	created := 0
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx.sql); err != nil {
			logger.Warn("failed to create index", "index", idx.name, "error", err)
			continue
		}
		created++
		logger.Info("created index", "index", idx.name)
	}

	fmt.Println("\n✅ Database schema created successfully!")
	fmt.Printf("   Tables: %d\n", len(tables))
	fmt.Printf("   Indexes: %d of %d created\n", created, len(indexes))
}
