package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"condolex-backend/metrics"
	"condolex-backend/models"
)

// Analysis pipeline node names
const (
	NodeExtractClauses   = "extract_clauses"
	NodeRetrieveArticles = "retrieve_articles"
	NodeAnalyzeClause    = "analyze_clause"
	NodeComplete         = "complete"
)

// DefaultMaxNodeExecutions bounds one analysis run
const DefaultMaxNodeExecutions = 500

const retrievalExcerptRunes = 300

var (
	ErrIterationLimit = errors.New("analysis exceeded iteration limit")
	ErrEmptyDocument  = errors.New("document has no text to analyze")
)

// topicQueryLabels are the Portuguese terms prepended to article queries
var topicQueryLabels = map[models.Topic]string{
	models.TopicPets:        "animais de estimação",
	models.TopicCommonAreas: "uso das áreas comuns",
	models.TopicFees:        "taxas e contribuições condominiais",
	models.TopicQuorum:      "quórum de assembleia e votação",
	models.TopicVisitors:    "visitantes e hóspedes",
	models.TopicPropertyUse: "uso da unidade autônoma",
	models.TopicFines:       "multas e penalidades",
	models.TopicGeneral:     "direitos e deveres dos condôminos",
}

// AnalysisProgress is reported after every node execution
type AnalysisProgress struct {
	Node         string
	ClauseIndex  int
	TotalClauses int
	Result       *models.ClauseAnalysisResult
}

// ProgressFunc receives analysis progress
type ProgressFunc func(AnalysisProgress)

// AnalysisPipeline checks each clause of a bylaws document against the
// Civil Code
type AnalysisPipeline struct {
	extractor    ClauseExtractor
	retriever    Retriever
	classifier   IllegalityClassifier
	chunkSize    int
	chunkOverlap int
	maxNodes     int
	now          func() time.Time
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// AnalysisOption is a functional option for AnalysisPipeline
type AnalysisOption func(*AnalysisPipeline)

// AnalysisWithExtractor sets the clause extractor
func AnalysisWithExtractor(e ClauseExtractor) AnalysisOption {
	return func(p *AnalysisPipeline) {
		p.extractor = e
	}
}

// AnalysisWithRetriever sets the statute retriever
func AnalysisWithRetriever(r Retriever) AnalysisOption {
	return func(p *AnalysisPipeline) {
		p.retriever = r
	}
}

// AnalysisWithClassifier sets the illegality classifier
func AnalysisWithClassifier(c IllegalityClassifier) AnalysisOption {
	return func(p *AnalysisPipeline) {
		p.classifier = c
	}
}

// AnalysisWithChunking overrides the chunk size and overlap
func AnalysisWithChunking(size, overlap int) AnalysisOption {
	return func(p *AnalysisPipeline) {
		if size > 0 {
			p.chunkSize = size
			p.chunkOverlap = overlap
		}
	}
}

// AnalysisWithMaxNodeExecutions overrides the iteration ceiling
func AnalysisWithMaxNodeExecutions(n int) AnalysisOption {
	return func(p *AnalysisPipeline) {
		if n > 0 {
			p.maxNodes = n
		}
	}
}

// AnalysisWithClock overrides the report timestamp source
func AnalysisWithClock(now func() time.Time) AnalysisOption {
	return func(p *AnalysisPipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// AnalysisWithLogger sets the logger
func AnalysisWithLogger(l *slog.Logger) AnalysisOption {
	return func(p *AnalysisPipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// AnalysisWithMetrics sets the metrics sink
func AnalysisWithMetrics(m *metrics.Metrics) AnalysisOption {
	return func(p *AnalysisPipeline) {
		p.metrics = m
	}
}

// NewAnalysisPipeline creates a new analysis pipeline
func NewAnalysisPipeline(opts ...AnalysisOption) *AnalysisPipeline {
	p := &AnalysisPipeline{
		chunkSize:    AnalysisChunkSize,
		chunkOverlap: AnalysisChunkOverlap,
		maxNodes:     DefaultMaxNodeExecutions,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analyze chunks text and runs the pipeline on it
func (p *AnalysisPipeline) Analyze(ctx context.Context, documentName, text string, progress ProgressFunc) (*models.DocumentAnalysisReport, error) {
	chunks := SplitText(text, p.chunkSize, p.chunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return p.Run(ctx, documentName, chunks, progress)
}

// Run executes the state machine over pre-split chunks
func (p *AnalysisPipeline) Run(ctx context.Context, documentName string, chunks []string, progress ProgressFunc) (*models.DocumentAnalysisReport, error) {
	report, err := p.run(ctx, documentName, chunks, progress)
	p.metrics.PipelineRun("analysis", err)
	return report, err
}

func (p *AnalysisPipeline) run(ctx context.Context, documentName string, chunks []string, progress ProgressFunc) (*models.DocumentAnalysisReport, error) {
	if p.extractor == nil || p.retriever == nil || p.classifier == nil {
		return nil, errors.New("analysis pipeline is missing a collaborator")
	}
	if progress == nil {
		progress = func(AnalysisProgress) {}
	}

	state := &models.AnalysisState{DocumentChunks: chunks}
	node := NodeExtractClauses

	for executed := 0; ; executed++ {
		if executed >= p.maxNodes {
			return nil, fmt.Errorf("%w (%d node executions)", ErrIterationLimit, p.maxNodes)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.metrics.NodeExecuted("analysis", node)

		switch node {
		case NodeExtractClauses:
			if err := p.extractClauses(ctx, state); err != nil {
				return nil, err
			}
			progress(AnalysisProgress{Node: node, TotalClauses: len(state.ExtractedClauses)})
			node = NodeRetrieveArticles

		case NodeRetrieveArticles:
			p.retrieveArticles(ctx, state)
			node = NodeAnalyzeClause

		case NodeAnalyzeClause:
			result := p.analyzeClause(ctx, state)
			if result != nil {
				progress(AnalysisProgress{
					Node:         node,
					ClauseIndex:  state.CurrentClauseIndex - 1,
					TotalClauses: len(state.ExtractedClauses),
					Result:       result,
				})
			}
			if state.Done() {
				node = NodeComplete
			} else {
				node = NodeRetrieveArticles
			}

		case NodeComplete:
			report := models.NewReport(documentName, state.AnalysisResults, p.now())
			progress(AnalysisProgress{
				Node:         node,
				ClauseIndex:  state.CurrentClauseIndex,
				TotalClauses: len(state.ExtractedClauses),
			})
			return report, nil

		default:
			return nil, fmt.Errorf("unknown analysis node %q", node)
		}
	}
}

func (p *AnalysisPipeline) extractClauses(ctx context.Context, state *models.AnalysisState) error {
	clauses, failed, err := ExtractAll(ctx, p.extractor, state.DocumentChunks, p.logger)
	if err != nil {
		return err
	}
	if failed > 0 {
		p.logger.Warn("some chunks could not be extracted", "failed", failed, "chunks", len(state.DocumentChunks))
	}

	state.ExtractedClauses = clauses
	state.CurrentClauseIndex = 0
	state.AnalysisResults = []models.ClauseAnalysisResult{}
	p.logger.Info("clauses extracted", "count", len(clauses))
	return nil
}

func (p *AnalysisPipeline) retrieveArticles(ctx context.Context, state *models.AnalysisState) {
	clause, ok := state.CurrentClause()
	if !ok {
		return
	}

	docs, err := p.retriever.Retrieve(ctx, ArticleQuery(clause))
	if err != nil {
		p.logger.Warn("article retrieval failed, analyzing without statute context",
			"clause", clause.ClauseNumber, "error", err)
		state.RelevantArticles = ""
		return
	}
	state.RelevantArticles = FormatArticles(docs)
}

// analyzeClause appends one result and advances the cursor. It returns nil
// when the cursor was already past the end.
func (p *AnalysisPipeline) analyzeClause(ctx context.Context, state *models.AnalysisState) *models.ClauseAnalysisResult {
	clause, ok := state.CurrentClause()
	if !ok {
		return nil
	}

	verdict, err := p.classifier.Classify(ctx, clause, state.RelevantArticles)
	fallback := err != nil
	if fallback {
		p.logger.Warn("clause classification failed, recording safe default",
			"clause", clause.ClauseNumber, "error", err)
		verdict = SafeVerdict(err)
	}

	result := models.NewClauseAnalysisResult(clause, verdict)
	state.AnalysisResults = append(state.AnalysisResults, result)
	state.CurrentClauseIndex++
	p.metrics.ClauseAnalyzed(result.IsPotentiallyIllegal, fallback)
	return &result
}

// ArticleQuery builds the statute search query for a clause from its topic
// and the opening of its text
func ArticleQuery(clause models.ExtractedClause) string {
	label, ok := topicQueryLabels[clause.Topic]
	if !ok {
		label = topicQueryLabels[models.TopicGeneral]
	}
	return label + ": " + excerpt(strings.TrimSpace(clause.ClauseText), retrievalExcerptRunes)
}

// FormatArticles concatenates statute passages for the classifier prompt
func FormatArticles(docs []models.RetrievedDocument) string {
	parts := make([]string, 0, len(docs))
	for _, d := range docs {
		if src := d.Source(); src != "" {
			parts = append(parts, "["+src+"]\n"+d.Content)
			continue
		}
		parts = append(parts, d.Content)
	}
	return strings.Join(parts, "\n\n")
}
