package service

import (
	"context"
	"errors"
	"log/slog"

	"condolex-backend/metrics"
	"condolex-backend/models"

	"golang.org/x/sync/errgroup"
)

// Branch is the route taken after external documents are graded
type Branch int

const (
	BranchAnswerOnly Branch = iota
	BranchMergeInternal
)

func (b Branch) String() string {
	switch b {
	case BranchAnswerOnly:
		return "answer_only"
	case BranchMergeInternal:
		return "merge_internal"
	default:
		return "unknown"
	}
}

// Query pipeline node names
const (
	NodeRetrieveExternal = "retrieve_external"
	NodeGradeDocuments   = "grade_documents"
	NodeRetrieveInternal = "retrieve_internal"
	NodeMergeInternal    = "merge_internal"
	NodeGenerateAnswer   = "generate_answer"
)

const defaultGradeConcurrency = 4

var ErrPipelineMisconfigured = errors.New("query pipeline is missing a collaborator")

// QueryPipeline answers one question per Run call. It holds no per-run
// state, so a single value serves concurrent requests.
type QueryPipeline struct {
	external         Retriever
	internal         CollectionRetriever
	scorer           RelevanceScorer
	internalScorer   RelevanceScorer
	generator        AnswerGenerator
	index            *InternalIndexConfig
	gradeConcurrency int
	logger           *slog.Logger
	metrics          *metrics.Metrics
}

// PipelineOption is a functional option for QueryPipeline
type PipelineOption func(*QueryPipeline)

// PipelineWithExternalRetriever sets the statute retriever
func PipelineWithExternalRetriever(r Retriever) PipelineOption {
	return func(p *QueryPipeline) {
		p.external = r
	}
}

// PipelineWithInternalRetriever sets the internal document retriever
func PipelineWithInternalRetriever(r CollectionRetriever) PipelineOption {
	return func(p *QueryPipeline) {
		p.internal = r
	}
}

// PipelineWithScorer sets the relevance scorer for external documents
func PipelineWithScorer(s RelevanceScorer) PipelineOption {
	return func(p *QueryPipeline) {
		p.scorer = s
	}
}

// PipelineWithInternalScorer sets a separate scorer for internal documents.
// When unset the external scorer is used.
func PipelineWithInternalScorer(s RelevanceScorer) PipelineOption {
	return func(p *QueryPipeline) {
		p.internalScorer = s
	}
}

// PipelineWithGenerator sets the answer generator
func PipelineWithGenerator(g AnswerGenerator) PipelineOption {
	return func(p *QueryPipeline) {
		p.generator = g
	}
}

// PipelineWithInternalIndex sets the shared internal index configuration
func PipelineWithInternalIndex(c *InternalIndexConfig) PipelineOption {
	return func(p *QueryPipeline) {
		p.index = c
	}
}

// PipelineWithGradeConcurrency bounds parallel scorer calls
func PipelineWithGradeConcurrency(n int) PipelineOption {
	return func(p *QueryPipeline) {
		if n > 0 {
			p.gradeConcurrency = n
		}
	}
}

// PipelineWithLogger sets the logger
func PipelineWithLogger(l *slog.Logger) PipelineOption {
	return func(p *QueryPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// PipelineWithMetrics sets the metrics sink
func PipelineWithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *QueryPipeline) {
		p.metrics = m
	}
}

// NewQueryPipeline creates a new query pipeline
func NewQueryPipeline(opts ...PipelineOption) *QueryPipeline {
	p := &QueryPipeline{
		gradeConcurrency: defaultGradeConcurrency,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the pipeline for question and returns the terminal state
func (p *QueryPipeline) Run(ctx context.Context, question string) (*models.PipelineState, error) {
	state, err := p.run(ctx, question)
	p.metrics.PipelineRun("query", err)
	return state, err
}

func (p *QueryPipeline) run(ctx context.Context, question string) (*models.PipelineState, error) {
	if p.external == nil || p.scorer == nil || p.generator == nil {
		return nil, ErrPipelineMisconfigured
	}

	// the branch and collection are fixed for the whole run even if an
	// upload lands midway
	snapshot := InternalIndexSnapshot{}
	if p.index != nil {
		var release func()
		snapshot, release = p.index.Acquire()
		defer release()
	}

	state := models.PipelineState{Question: question}

	state, err := p.retrieveExternal(ctx, state)
	if err != nil {
		return nil, err
	}

	state, err = p.gradeDocuments(ctx, state)
	if err != nil {
		return nil, err
	}

	branch := p.chooseBranch(snapshot)
	p.logger.Debug("query pipeline branch", "branch", branch.String(), "documents", len(state.Documents))

	if branch == BranchMergeInternal {
		state, err = p.retrieveInternal(ctx, state, snapshot)
		if err != nil {
			return nil, err
		}
		state, err = p.mergeInternal(ctx, state)
		if err != nil {
			return nil, err
		}
	}

	state, err = p.generateAnswer(ctx, state)
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (p *QueryPipeline) chooseBranch(snapshot InternalIndexSnapshot) Branch {
	if snapshot.Configured && p.internal != nil {
		return BranchMergeInternal
	}
	return BranchAnswerOnly
}

func (p *QueryPipeline) retrieveExternal(ctx context.Context, state models.PipelineState) (models.PipelineState, error) {
	p.metrics.NodeExecuted("query", NodeRetrieveExternal)
	docs, err := p.external.Retrieve(ctx, state.Question)
	if err != nil {
		return state, err
	}
	state.Documents = docs
	return state, nil
}

func (p *QueryPipeline) gradeDocuments(ctx context.Context, state models.PipelineState) (models.PipelineState, error) {
	p.metrics.NodeExecuted("query", NodeGradeDocuments)
	kept, err := p.filterRelevant(ctx, p.scorer, state.Question, state.Documents, models.OriginStatute)
	if err != nil {
		return state, err
	}
	state.Documents = kept
	return state, nil
}

func (p *QueryPipeline) retrieveInternal(ctx context.Context, state models.PipelineState, snapshot InternalIndexSnapshot) (models.PipelineState, error) {
	p.metrics.NodeExecuted("query", NodeRetrieveInternal)
	docs, err := p.internal.RetrieveFrom(ctx, snapshot.Collection, state.Question)
	if err != nil {
		return state, err
	}
	state.InternalDocuments = docs
	return state, nil
}

func (p *QueryPipeline) mergeInternal(ctx context.Context, state models.PipelineState) (models.PipelineState, error) {
	p.metrics.NodeExecuted("query", NodeMergeInternal)
	scorer := p.internalScorer
	if scorer == nil {
		scorer = p.scorer
	}

	kept, err := p.filterRelevant(ctx, scorer, state.Question, state.InternalDocuments, models.OriginInternal)
	if err != nil {
		return state, err
	}

	merged := make([]models.RetrievedDocument, 0, len(state.Documents)+len(kept))
	merged = append(merged, state.Documents...)
	merged = append(merged, kept...)
	state.Documents = merged
	return state, nil
}

func (p *QueryPipeline) generateAnswer(ctx context.Context, state models.PipelineState) (models.PipelineState, error) {
	p.metrics.NodeExecuted("query", NodeGenerateAnswer)
	answer, err := p.generator.Generate(ctx, state.Question, state.Documents)
	if err != nil {
		return state, err
	}
	state.Solution = &answer
	return state, nil
}

// filterRelevant scores docs concurrently and returns the relevant ones in
// input order. Any scorer error fails the whole batch.
func (p *QueryPipeline) filterRelevant(ctx context.Context, scorer RelevanceScorer, question string, docs []models.RetrievedDocument, origin string) ([]models.RetrievedDocument, error) {
	if len(docs) == 0 {
		return []models.RetrievedDocument{}, nil
	}

	relevant := make([]bool, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.gradeConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			v, err := scorer.Score(gctx, question, doc.Content)
			if err != nil {
				return err
			}
			relevant[i] = v.Relevant
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := make([]models.RetrievedDocument, 0, len(docs))
	for i, doc := range docs {
		p.metrics.DocumentGraded(origin, relevant[i])
		if relevant[i] {
			kept = append(kept, doc)
		}
	}
	return kept, nil
}
