// Package index talks to the Chroma vector database that holds the
// internal condominium document collections.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"condolex-backend/models"
)

const (
	defaultTenant   = "default_tenant"
	defaultDatabase = "default_database"
)

// ErrCollectionNotFound is returned for operations on a missing collection
var ErrCollectionNotFound = errors.New("collection not found")

// Document is a chunk to be stored in a collection
type Document struct {
	ID       string
	Content  string
	Metadata map[string]interface{}
}

// QueryResults represents the response from a similarity query
type QueryResults struct {
	IDs       [][]string                 `json:"ids"`
	Distances [][]float64                `json:"distances"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Documents [][]string                 `json:"documents"`
}

// Chroma wraps the Chroma v2 REST API
type Chroma struct {
	baseURL    string
	tenant     string
	database   string
	httpClient *http.Client
	logger     *slog.Logger

	mu  sync.Mutex
	ids map[string]string
}

// ChromaOption configures a Chroma client
type ChromaOption func(*Chroma)

// ChromaWithTenant overrides the tenant and database
func ChromaWithTenant(tenant, database string) ChromaOption {
	return func(c *Chroma) {
		if tenant != "" {
			c.tenant = tenant
		}
		if database != "" {
			c.database = database
		}
	}
}

// ChromaWithHTTPClient overrides the HTTP client
func ChromaWithHTTPClient(hc *http.Client) ChromaOption {
	return func(c *Chroma) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// ChromaWithLogger sets the logger
func ChromaWithLogger(l *slog.Logger) ChromaOption {
	return func(c *Chroma) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewChroma creates a client for the server at baseURL, e.g.
// http://localhost:8000
func NewChroma(baseURL string, opts ...ChromaOption) *Chroma {
	c := &Chroma{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v2",
		tenant:     defaultTenant,
		database:   defaultDatabase,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		ids:        make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Chroma) collectionsURL() string {
	return fmt.Sprintf("%s/tenants/%s/databases/%s/collections", c.baseURL, c.tenant, c.database)
}

// Heartbeat checks that the server is reachable
func (c *Chroma) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, c.baseURL+"/heartbeat", nil, nil)
}

// EnsureCollection gets or creates a collection and returns its id
func (c *Chroma) EnsureCollection(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	payload := map[string]interface{}{
		"name": name,
		"metadata": map[string]interface{}{
			"description": "condominium internal documents",
			"hnsw:space":  "cosine",
		},
		"get_or_create": true,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, c.collectionsURL(), payload, &result); err != nil {
		return "", fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("failed to create collection %s: empty id", name)
	}

	c.mu.Lock()
	c.ids[name] = result.ID
	c.mu.Unlock()
	return result.ID, nil
}

func (c *Chroma) collectionID(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	id, ok := c.ids[name]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var result struct {
		ID string `json:"id"`
	}
	err := c.do(ctx, http.MethodGet, c.collectionsURL()+"/"+name, nil, &result)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.ids[name] = result.ID
	c.mu.Unlock()
	return result.ID, nil
}

// Add stores documents with their embeddings
func (c *Chroma) Add(ctx context.Context, collection string, docs []Document, embeddings [][]float64) error {
	if len(docs) == 0 {
		return nil
	}
	if len(docs) != len(embeddings) {
		return fmt.Errorf("got %d documents but %d embeddings", len(docs), len(embeddings))
	}

	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return err
	}

	documents := make([]string, len(docs))
	metadatas := make([]map[string]interface{}, len(docs))
	ids := make([]string, len(docs))
	for i, doc := range docs {
		documents[i] = doc.Content
		metadatas[i] = doc.Metadata
		ids[i] = doc.ID
	}

	payload := map[string]interface{}{
		"ids":        ids,
		"documents":  documents,
		"metadatas":  metadatas,
		"embeddings": embeddings,
	}
	if err := c.do(ctx, http.MethodPost, c.collectionsURL()+"/"+id+"/add", payload, nil); err != nil {
		return fmt.Errorf("failed to add documents: %w", err)
	}

	c.logger.Debug("added documents to collection", "collection", collection, "count", len(docs))
	return nil
}

// Query returns the raw nearest neighbours of embedding
func (c *Chroma) Query(ctx context.Context, collection string, embedding []float64, nResults int) (*QueryResults, error) {
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float64{embedding},
		"n_results":        nResults,
		"include":          []string{"metadatas", "documents", "distances"},
	}

	var result QueryResults
	if err := c.do(ctx, http.MethodPost, c.collectionsURL()+"/"+id+"/query", payload, &result); err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return &result, nil
}

// Search returns the nearest chunks as retrieval results
func (c *Chroma) Search(ctx context.Context, collection string, embedding []float64, limit int) ([]models.RetrievedDocument, error) {
	results, err := c.Query(ctx, collection, embedding, limit)
	if err != nil {
		return nil, err
	}
	if len(results.Documents) == 0 {
		return []models.RetrievedDocument{}, nil
	}

	docs := make([]models.RetrievedDocument, 0, len(results.Documents[0]))
	for i, content := range results.Documents[0] {
		meta := map[string]interface{}{}
		if len(results.Metadatas) > 0 && i < len(results.Metadatas[0]) && results.Metadatas[0][i] != nil {
			for k, v := range results.Metadatas[0][i] {
				meta[k] = v
			}
		}
		if len(results.Distances) > 0 && i < len(results.Distances[0]) {
			meta["distance"] = results.Distances[0][i]
		}
		docs = append(docs, models.RetrievedDocument{Content: content, Metadata: meta})
	}
	return docs, nil
}

// Count returns the number of records in a collection
func (c *Chroma) Count(ctx context.Context, collection string) (int, error) {
	id, err := c.collectionID(ctx, collection)
	if err != nil {
		return 0, err
	}

	var count int
	if err := c.do(ctx, http.MethodGet, c.collectionsURL()+"/"+id+"/count", nil, &count); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// DeleteCollection drops a collection. Missing collections are ignored.
func (c *Chroma) DeleteCollection(ctx context.Context, name string) error {
	err := c.do(ctx, http.MethodDelete, c.collectionsURL()+"/"+name, nil, nil)

	c.mu.Lock()
	delete(c.ids, name)
	c.mu.Unlock()

	if errors.Is(err, ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	c.logger.Info("deleted collection", "collection", name)
	return nil
}

func (c *Chroma) do(ctx context.Context, method, url string, payload interface{}, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrCollectionNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("chroma returned status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
