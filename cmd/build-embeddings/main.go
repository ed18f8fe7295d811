package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"condolex-backend/app"
	"condolex-backend/config"
	"condolex-backend/ingest"
	"condolex-backend/llm"
	"condolex-backend/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	url := flag.String("url", ingest.CivilCodeURL, "page holding the Civil Code")
	first := flag.Int("first", ingest.FirstArticle, "first article to ingest")
	last := flag.Int("last", ingest.LastArticle, "last article to ingest")
	flag.Parse()

	logger := app.NewLogger("")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Gemini.APIKey == "" {
		logger.Error("GEMINI_API_KEY environment variable is required")
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	var tableExists bool
	err = pool.QueryRow(ctx, "SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'statute_articles')").Scan(&tableExists)
	if err != nil {
		logger.Error("failed to check table existence", "error", err)
		os.Exit(1)
	}
	if !tableExists {
		logger.Error("statute_articles table does not exist. Please run: go run ./cmd/create-schema")
		os.Exit(1)
	}

	embedder := llm.NewGeminiEmbedder(cfg.Gemini.APIKey,
		llm.EmbedderWithModel(cfg.Gemini.EmbeddingModel),
		llm.EmbedderWithLogger(logger),
	)
	statutes := repository.NewStatuteRepository(pool)

	ingester := ingest.NewIngester(embedder, statutes,
		ingest.WithURL(*url),
		ingest.WithRange(*first, *last),
		ingest.WithLogger(logger),
	)
	n, err := ingester.Run(ctx)
	if err != nil {
		logger.Error("ingestion failed", "stored", n, "error", err)
		os.Exit(1)
	}

	total, err := statutes.Count(ctx)
	if err != nil {
		logger.Warn("failed to count articles", "error", err)
	}
	fmt.Println("\n✅ Embedding build complete!")
	fmt.Printf("   Articles stored: %d\n", n)
	fmt.Printf("   Articles in index: %d\n", total)
}
