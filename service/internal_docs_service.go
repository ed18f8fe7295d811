package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"condolex-backend/index"
	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/storage"

	"github.com/google/uuid"
)

const defaultCollectionPrefix = "condominio"

var (
	ErrNoFiles             = errors.New("no files uploaded")
	ErrNoDocumentsIndexed  = errors.New("no text could be extracted from the uploaded files")
	ErrInternalDocsMissing = errors.New("internal document service is missing a dependency")
)

// DocumentIndex stores chunk embeddings in named collections
type DocumentIndex interface {
	EnsureCollection(ctx context.Context, name string) (string, error)
	Add(ctx context.Context, collection string, docs []index.Document, embeddings [][]float64) error
	DeleteCollection(ctx context.Context, name string) error
}

// InternalDocumentStore records which uploads belong to which collection
type InternalDocumentStore interface {
	Create(ctx context.Context, doc *models.InternalDocument) error
	ListByCollection(ctx context.Context, collection string) ([]*models.InternalDocument, error)
	LatestCollection(ctx context.Context) (string, error)
	DeleteByCollection(ctx context.Context, collection string) error
}

// UploadedFile is one file posted for indexing
type UploadedFile struct {
	Filename string
	MimeType string
	Data     []byte
}

// InternalDocsService builds and replaces the internal document collection
type InternalDocsService struct {
	files     storage.Storage
	extractor TextExtractor
	embedder  llm.Embedder
	index     DocumentIndex
	records   InternalDocumentStore
	config    *InternalIndexConfig
	prefix    string
	logger    *slog.Logger

	// one rebuild at a time
	mu sync.Mutex
}

// InternalDocsOption is a functional option for InternalDocsService
type InternalDocsOption func(*InternalDocsService)

// InternalDocsWithStorage sets where originals are kept
func InternalDocsWithStorage(files storage.Storage) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.files = files
	}
}

// InternalDocsWithExtractor sets the text extractor
func InternalDocsWithExtractor(e TextExtractor) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.extractor = e
	}
}

// InternalDocsWithEmbedder sets the embedder
func InternalDocsWithEmbedder(e llm.Embedder) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.embedder = e
	}
}

// InternalDocsWithIndex sets the vector index
func InternalDocsWithIndex(idx DocumentIndex) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.index = idx
	}
}

// InternalDocsWithRecords sets the upload record store
func InternalDocsWithRecords(r InternalDocumentStore) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.records = r
	}
}

// InternalDocsWithConfig sets the shared internal index configuration
func InternalDocsWithConfig(c *InternalIndexConfig) InternalDocsOption {
	return func(s *InternalDocsService) {
		s.config = c
	}
}

// InternalDocsWithCollectionPrefix sets the prefix of generated collection names
func InternalDocsWithCollectionPrefix(prefix string) InternalDocsOption {
	return func(s *InternalDocsService) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// InternalDocsWithLogger sets the logger
func InternalDocsWithLogger(l *slog.Logger) InternalDocsOption {
	return func(s *InternalDocsService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewInternalDocsService creates a new internal document service
func NewInternalDocsService(opts ...InternalDocsOption) *InternalDocsService {
	s := &InternalDocsService{
		prefix: defaultCollectionPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = NewInternalIndexConfig()
	}
	return s
}

func (s *InternalDocsService) ready() bool {
	return s.files != nil && s.extractor != nil && s.embedder != nil && s.index != nil && s.records != nil
}

// Upload indexes files into a fresh collection and makes it the active
// internal index once it is complete. The previous collection is dropped
// once no running query holds it. Returns the number of documents indexed.
func (s *InternalDocsService) Upload(ctx context.Context, files []UploadedFile) (int, error) {
	if !s.ready() {
		return 0, ErrInternalDocsMissing
	}
	if len(files) == 0 {
		return 0, ErrNoFiles
	}
	for _, f := range files {
		if !IsSupportedFile(f.Filename, f.MimeType) {
			return 0, fmt.Errorf("%w: %s", ErrUnsupportedFileType, f.Filename)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	collection := s.newCollectionName()
	if _, err := s.index.EnsureCollection(ctx, collection); err != nil {
		return 0, err
	}

	indexed, err := s.indexFiles(ctx, collection, files)
	if err == nil && len(indexed) == 0 {
		err = ErrNoDocumentsIndexed
	}
	if err != nil {
		s.discard(ctx, collection)
		return 0, err
	}

	names := make([]string, len(indexed))
	for i, doc := range indexed {
		names[i] = doc.Filename
	}

	previous := s.config.Swap(collection, names)
	s.logger.Info("internal index replaced", "collection", collection, "documents", len(names), "previous", previous)

	if previous != "" && previous != collection {
		s.retire(ctx, previous)
	}
	return len(indexed), nil
}

func (s *InternalDocsService) indexFiles(ctx context.Context, collection string, files []UploadedFile) ([]*models.InternalDocument, error) {
	indexed := make([]*models.InternalDocument, 0, len(files))

	for _, f := range files {
		docID := uuid.New()

		text, err := s.extractor.Extract(ctx, f.Filename, f.MimeType, f.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Filename, err)
		}
		chunks := nonEmpty(SplitText(text, IndexChunkSize, IndexChunkOverlap))
		if len(chunks) == 0 {
			s.logger.Warn("skipping file without text", "filename", f.Filename)
			continue
		}

		storagePath, err := s.files.Upload(ctx, docID, f.Filename, bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to store %s: %w", f.Filename, err)
		}

		record, err := s.indexFile(ctx, collection, docID, f, chunks, storagePath)
		if err != nil {
			// not yet recorded, so drop would miss it
			if delErr := s.files.Delete(ctx, storagePath); delErr != nil {
				s.logger.Warn("failed to delete stored original", "path", storagePath, "error", delErr)
			}
			return nil, err
		}

		s.logger.Debug("indexed internal document", "filename", f.Filename, "chunks", len(chunks))
		indexed = append(indexed, record)
	}

	return indexed, nil
}

func (s *InternalDocsService) indexFile(ctx context.Context, collection string, docID uuid.UUID, f UploadedFile, chunks []string, storagePath string) (*models.InternalDocument, error) {
	embeddings, err := s.embedder.EmbedDocuments(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", f.Filename, err)
	}

	docs := make([]index.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = index.Document{
			ID:      fmt.Sprintf("%s-%d", docID, i),
			Content: chunk,
			Metadata: map[string]interface{}{
				"source":      f.Filename,
				"document_id": docID.String(),
				"chunk":       i,
			},
		}
	}

	if err := s.index.Add(ctx, collection, docs, embeddings); err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", f.Filename, err)
	}

	mimeType := f.MimeType
	if mimeType == "" {
		mimeType = storage.ContentType(f.Filename)
	}
	record := &models.InternalDocument{
		ID:          docID,
		Filename:    f.Filename,
		MimeType:    mimeType,
		Size:        int64(len(f.Data)),
		StoragePath: storagePath,
		Collection:  collection,
		ChunkCount:  len(chunks),
	}
	if err := s.records.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to record %s: %w", f.Filename, err)
	}
	return record, nil
}

// Names returns the names of the documents in the active collection
func (s *InternalDocsService) Names() []string {
	return s.config.Names()
}

// Clear unsets the internal index and drops its collection, or schedules
// the drop when a running query still holds it
func (s *InternalDocsService) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous := s.config.Clear()
	if previous == "" {
		return nil
	}
	s.logger.Info("internal index cleared", "collection", previous)

	if s.config.Retire(previous, s.deferredDrop(ctx, previous)) {
		s.logger.Info("collection in use, drop deferred", "collection", previous)
		return nil
	}
	return s.drop(ctx, previous)
}

// Restore reactivates the most recently built collection, if any
func (s *InternalDocsService) Restore(ctx context.Context) error {
	if s.records == nil {
		return ErrInternalDocsMissing
	}

	collection, err := s.records.LatestCollection(ctx)
	if err != nil {
		return fmt.Errorf("failed to find latest collection: %w", err)
	}
	if collection == "" {
		return nil
	}

	docs, err := s.records.ListByCollection(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to list documents of %s: %w", collection, err)
	}

	names := make([]string, len(docs))
	for i, doc := range docs {
		names[i] = doc.Filename
	}
	s.config.Swap(collection, names)
	s.logger.Info("internal index restored", "collection", collection, "documents", len(names))
	return nil
}

func (s *InternalDocsService) newCollectionName() string {
	return s.prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// drop deletes a collection together with its stored originals and records
func (s *InternalDocsService) drop(ctx context.Context, collection string) error {
	var errs []error
	if err := s.index.DeleteCollection(ctx, collection); err != nil {
		errs = append(errs, err)
	}

	docs, err := s.records.ListByCollection(ctx, collection)
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("failed to list documents of %s: %w", collection, err))...)
	}
	if s.files != nil {
		paths := make([]string, 0, len(docs))
		for _, doc := range docs {
			paths = append(paths, doc.StoragePath)
		}
		if err := storage.DeleteAll(ctx, s.files, paths); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.records.DeleteByCollection(ctx, collection); err != nil {
		errs = append(errs, fmt.Errorf("failed to delete records of %s: %w", collection, err))
	}
	return errors.Join(errs...)
}

// retire drops a replaced collection now, or after its last reader is done
func (s *InternalDocsService) retire(ctx context.Context, collection string) {
	drop := s.deferredDrop(ctx, collection)
	if s.config.Retire(collection, drop) {
		s.logger.Info("collection in use, drop deferred", "collection", collection)
		return
	}
	s.discard(ctx, collection)
}

func (s *InternalDocsService) deferredDrop(ctx context.Context, collection string) func() {
	// the request that retired the collection may be gone by the time
	// the last reader releases it
	detached := context.WithoutCancel(ctx)
	return func() {
		s.discard(detached, collection)
	}
}

// discard drops a collection, logging instead of failing
func (s *InternalDocsService) discard(ctx context.Context, collection string) {
	if err := s.drop(ctx, collection); err != nil {
		s.logger.Warn("failed to drop collection", "collection", collection, "error", err)
	}
}

func nonEmpty(chunks []string) []string {
	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}
