package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"condolex-backend/metrics"
	"condolex-backend/models"
)

var ErrEmptyQuestion = errors.New("question cannot be empty")

// QueryRunner answers a question from retrieved law and documents
type QueryRunner interface {
	Run(ctx context.Context, question string) (*models.PipelineState, error)
}

// SourceSelector narrows retrieved documents down to those an answer used
type SourceSelector interface {
	IdentifyUsedSources(ctx context.Context, answer string, docs []models.RetrievedDocument, question string) []models.RetrievedDocument
}

// DocumentAdvisor recognises document requests and suggests documents
type DocumentAdvisor interface {
	DetectDocumentRequest(ctx context.Context, message string) models.DocumentRequest
	SuggestDocument(ctx context.Context, question, answer string) models.DocumentSuggestion
	DocumentFields(ctx context.Context, docType models.DocumentType, name, extraContext string) []models.DocumentField
}

// AnswerCache stores answers keyed by question and index version
type AnswerCache interface {
	Key(question string, indexVersion int64) string
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
}

// AskResult is the response to a question. Either Answer is set, or the
// message was an explicit document request and Fields describe the form.
type AskResult struct {
	Answer          string                     `json:"answer,omitempty"`
	Sources         []models.RetrievedDocument `json:"sources"`
	Suggestion      *models.DocumentSuggestion `json:"document_suggestion,omitempty"`
	DocumentRequest *models.DocumentRequest    `json:"document_request,omitempty"`
	Fields          []models.DocumentField     `json:"fields,omitempty"`
	Cached          bool                       `json:"cached"`
}

// QueryService orchestrates a question: document request detection, the
// query pipeline, source attribution and document suggestion
type QueryService struct {
	pipeline QueryRunner
	sources  SourceSelector
	advisor  DocumentAdvisor
	cache    AnswerCache
	index    *InternalIndexConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// QueryServiceOption is a functional option for QueryService
type QueryServiceOption func(*QueryService)

// QueryWithPipeline sets the query pipeline
func QueryWithPipeline(p QueryRunner) QueryServiceOption {
	return func(s *QueryService) {
		s.pipeline = p
	}
}

// QueryWithSourceSelector sets the source identifier
func QueryWithSourceSelector(sel SourceSelector) QueryServiceOption {
	return func(s *QueryService) {
		s.sources = sel
	}
}

// QueryWithAdvisor sets the drafting advisor
func QueryWithAdvisor(a DocumentAdvisor) QueryServiceOption {
	return func(s *QueryService) {
		s.advisor = a
	}
}

// QueryWithCache sets the answer cache
func QueryWithCache(c AnswerCache) QueryServiceOption {
	return func(s *QueryService) {
		s.cache = c
	}
}

// QueryWithInternalIndex sets the internal index configuration used to
// version cache keys
func QueryWithInternalIndex(c *InternalIndexConfig) QueryServiceOption {
	return func(s *QueryService) {
		s.index = c
	}
}

// QueryWithLogger sets the logger
func QueryWithLogger(l *slog.Logger) QueryServiceOption {
	return func(s *QueryService) {
		if l != nil {
			s.logger = l
		}
	}
}

// QueryWithMetrics sets the metrics collector
func QueryWithMetrics(m *metrics.Metrics) QueryServiceOption {
	return func(s *QueryService) {
		s.metrics = m
	}
}

// NewQueryService creates a new query service
func NewQueryService(opts ...QueryServiceOption) *QueryService {
	s := &QueryService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ask answers a question
func (s *QueryService) Ask(ctx context.Context, question string) (*AskResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if s.pipeline == nil {
		return nil, ErrPipelineMisconfigured
	}

	if s.advisor != nil {
		req := s.advisor.DetectDocumentRequest(ctx, question)
		if req.IsExplicitRequest {
			fields := s.advisor.DocumentFields(ctx, req.DocumentType, req.DocumentName, req.ExtractedContext)
			return &AskResult{
				Sources:         []models.RetrievedDocument{},
				DocumentRequest: &req,
				Fields:          fields,
			}, nil
		}
	}

	key := s.cacheKey(question)
	if cached, ok := s.lookup(ctx, key); ok {
		return cached, nil
	}

	state, err := s.pipeline.Run(ctx, question)
	if err != nil {
		return nil, err
	}
	answer := state.Answer()

	used := state.Documents
	if s.sources != nil {
		used = s.sources.IdentifyUsedSources(ctx, answer, state.Documents, question)
	}

	result := &AskResult{
		Answer:  answer,
		Sources: DedupeSourcesByContent(used),
	}
	if result.Sources == nil {
		result.Sources = []models.RetrievedDocument{}
	}

	if s.advisor != nil {
		if suggestion := s.advisor.SuggestDocument(ctx, question, answer); suggestion.ShouldSuggest {
			result.Suggestion = &suggestion
		}
	}

	s.store(ctx, key, result)
	return result, nil
}

func (s *QueryService) cacheKey(question string) string {
	if s.cache == nil {
		return ""
	}
	var version int64
	if s.index != nil {
		version = s.index.Snapshot().Version
	}
	return s.cache.Key(question, version)
}

func (s *QueryService) lookup(ctx context.Context, key string) (*AskResult, bool) {
	if s.cache == nil || key == "" {
		return nil, false
	}

	var cached AskResult
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		s.logger.Warn("answer cache lookup failed", "error", err)
		return nil, false
	}
	s.metrics.CacheLookup(found)
	if !found {
		return nil, false
	}
	cached.Cached = true
	return &cached, true
}

func (s *QueryService) store(ctx context.Context, key string, result *AskResult) {
	if s.cache == nil || key == "" {
		return
	}
	if err := s.cache.Set(ctx, key, result); err != nil {
		s.logger.Warn("answer cache write failed", "error", err)
	}
}
