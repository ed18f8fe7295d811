package service

import (
	"context"
	"strings"
	"sync"

	"condolex-backend/llm"
	"condolex-backend/models"
	"condolex-backend/repository"

	"github.com/google/uuid"
)

type stubGenerator struct {
	mu      sync.Mutex
	calls   []llm.Request
	respond func(req llm.Request) (string, error)
}

func (g *stubGenerator) Generate(_ context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, req)
	g.mu.Unlock()
	return g.respond(req)
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func replyWith(s string) *stubGenerator {
	return &stubGenerator{respond: func(llm.Request) (string, error) { return s, nil }}
}

func failWith(err error) *stubGenerator {
	return &stubGenerator{respond: func(llm.Request) (string, error) { return "", err }}
}

type stubRetriever struct {
	mu      sync.Mutex
	queries []string
	docs    []models.RetrievedDocument
	err     error
	hook    func()
}

func (r *stubRetriever) Retrieve(_ context.Context, query string) ([]models.RetrievedDocument, error) {
	r.mu.Lock()
	r.queries = append(r.queries, query)
	r.mu.Unlock()
	if r.hook != nil {
		r.hook()
	}
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.RetrievedDocument(nil), r.docs...), nil
}

type stubCollectionRetriever struct {
	calls       int
	collections []string
	docs        []models.RetrievedDocument
	err         error
}

func (r *stubCollectionRetriever) RetrieveFrom(_ context.Context, collection, _ string) ([]models.RetrievedDocument, error) {
	r.calls++
	r.collections = append(r.collections, collection)
	if r.err != nil {
		return nil, r.err
	}
	return append([]models.RetrievedDocument(nil), r.docs...), nil
}

// stubScorer marks a document relevant when its content contains keep
type stubScorer struct {
	mu     sync.Mutex
	keep   string
	failOn string
	err    error
	seen   []string
}

func (s *stubScorer) Score(_ context.Context, _, content string) (Verdict, error) {
	s.mu.Lock()
	s.seen = append(s.seen, content)
	s.mu.Unlock()
	if s.failOn != "" && strings.Contains(content, s.failOn) {
		return Verdict{}, s.err
	}
	return Verdict{Relevant: strings.Contains(content, s.keep)}, nil
}

type stubAnswerGenerator struct {
	calls  int
	gotDoc []models.RetrievedDocument
	answer string
	err    error
}

func (g *stubAnswerGenerator) Generate(_ context.Context, _ string, docs []models.RetrievedDocument) (string, error) {
	g.calls++
	g.gotDoc = docs
	return g.answer, g.err
}

type stubExtractor struct {
	byChunk map[string][]models.ExtractedClause
	failOn  map[string]error
}

func (e *stubExtractor) Extract(_ context.Context, chunk string) ([]models.ExtractedClause, error) {
	if err, ok := e.failOn[chunk]; ok {
		return nil, err
	}
	return e.byChunk[chunk], nil
}

type stubClassifier struct {
	calls    int
	articles []string
	verdict  func(call int, clause models.ExtractedClause) (models.IllegalityVerdict, error)
}

func (c *stubClassifier) Classify(_ context.Context, clause models.ExtractedClause, articles string) (models.IllegalityVerdict, error) {
	c.calls++
	c.articles = append(c.articles, articles)
	return c.verdict(c.calls, clause)
}

func doc(source, content string) models.RetrievedDocument {
	return models.RetrievedDocument{Content: content, Metadata: map[string]interface{}{"source": source}}
}

type stubEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float64, error) {
	vs, err := e.EmbedDocuments(context.Background(), []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (e *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float64, error) {
	e.mu.Lock()
	e.texts = append(e.texts, texts...)
	e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

// stubTextExtractor returns the file content as text, or err for failOn
type stubTextExtractor struct {
	calls  int
	failOn string
	err    error
}

func (e *stubTextExtractor) Extract(_ context.Context, filename, _ string, data []byte) (string, error) {
	e.calls++
	if e.failOn != "" && filename == e.failOn {
		return "", e.err
	}
	return string(data), nil
}

type memJobStore struct {
	mu         sync.Mutex
	jobs       map[uuid.UUID]*models.AnalysisJob
	progress   []string
	failCreate error
}

func newMemJobStore() *memJobStore {
	return &memJobStore{jobs: make(map[uuid.UUID]*models.AnalysisJob)}
}

func (m *memJobStore) Create(_ context.Context, job *models.AnalysisJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return m.failCreate
	}
	cp := *job
	m.jobs[job.ID] = &cp
	return nil
}

func (m *memJobStore) GetByID(_ context.Context, id uuid.UUID) (*models.AnalysisJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *job
	cp.Steps = append(models.AnalysisSteps(nil), job.Steps...)
	return &cp, nil
}

func (m *memJobStore) UpdateStatus(_ context.Context, id uuid.UUID, status models.AnalysisJobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id].Status = status
	return nil
}

func (m *memJobStore) UpdateProgress(_ context.Context, id uuid.UUID, currentStep string, steps models.AnalysisSteps) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.CurrentStep = &currentStep
	job.Steps = append(models.AnalysisSteps(nil), steps...)
	for _, s := range steps {
		if s.Name == StepAnalyzeClauses && s.Description != "" {
			m.progress = append(m.progress, s.Description)
		}
	}
	return nil
}

func (m *memJobStore) Complete(_ context.Context, id uuid.UUID, report *models.DocumentAnalysisReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.JobStatusCompleted
	job.Report = report
	return nil
}

func (m *memJobStore) Fail(_ context.Context, id uuid.UUID, errorMessage string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &errorMessage
	return nil
}

type recordingDispatcher struct {
	ids []uuid.UUID
	err error
}

func (d *recordingDispatcher) Dispatch(_ context.Context, id uuid.UUID) error {
	d.ids = append(d.ids, id)
	return d.err
}
