package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"condolex-backend/models"
	"condolex-backend/queue"
	"condolex-backend/repository"
	"condolex-backend/storage"

	"github.com/google/uuid"
)

// Analysis job step names
const (
	StepExtractText    = "Extracting Text"
	StepExtractClauses = "Extracting Clauses"
	StepAnalyzeClauses = "Analyzing Clauses"
	StepAssembleReport = "Assembling Report"
)

var (
	ErrJobNotFound          = errors.New("analysis job not found")
	ErrJobCreationFailed    = errors.New("failed to create analysis job")
	ErrReportNotReady       = errors.New("analysis report not ready")
	ErrMissingUpload        = errors.New("no document uploaded")
	ErrServiceMisconfigured = errors.New("analysis service is missing a dependency")
)

// AnalysisJobStore persists analysis jobs
type AnalysisJobStore interface {
	Create(ctx context.Context, job *models.AnalysisJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisJob, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AnalysisJobStatus) error
	UpdateProgress(ctx context.Context, id uuid.UUID, currentStep string, steps models.AnalysisSteps) error
	Complete(ctx context.Context, id uuid.UUID, report *models.DocumentAnalysisReport) error
	Fail(ctx context.Context, id uuid.UUID, errorMessage string) error
}

// DocumentAnalyzer runs the clause-by-clause legality analysis
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentName, text string, progress ProgressFunc) (*models.DocumentAnalysisReport, error)
}

// AnalysisService manages asynchronous bylaws analysis jobs
type AnalysisService struct {
	jobs       AnalysisJobStore
	files      storage.Storage
	extractor  TextExtractor
	analyzer   DocumentAnalyzer
	dispatcher queue.Dispatcher
	logger     *slog.Logger
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// AnalysisServiceWithJobStore sets the job store
func AnalysisServiceWithJobStore(jobs AnalysisJobStore) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.jobs = jobs
	}
}

// AnalysisServiceWithStorage sets the upload storage
func AnalysisServiceWithStorage(files storage.Storage) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.files = files
	}
}

// AnalysisServiceWithExtractor sets the text extractor
func AnalysisServiceWithExtractor(e TextExtractor) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.extractor = e
	}
}

// AnalysisServiceWithAnalyzer sets the analysis pipeline
func AnalysisServiceWithAnalyzer(a DocumentAnalyzer) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.analyzer = a
	}
}

// AnalysisServiceWithDispatcher sets how created jobs are scheduled
func AnalysisServiceWithDispatcher(d queue.Dispatcher) AnalysisServiceOption {
	return func(s *AnalysisService) {
		s.dispatcher = d
	}
}

// AnalysisServiceWithLogger sets the logger
func AnalysisServiceWithLogger(l *slog.Logger) AnalysisServiceOption {
	return func(s *AnalysisService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	s := &AnalysisService{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDispatcher replaces the dispatcher. Dispatchers usually call back into
// ProcessAnalysis, so they are often built after the service.
func (s *AnalysisService) SetDispatcher(d queue.Dispatcher) {
	s.dispatcher = d
}

// StartAnalysisRequest is an uploaded bylaws document
type StartAnalysisRequest struct {
	Filename string
	MimeType string
	Data     []byte
}

// StartAnalysisResult identifies the created job
type StartAnalysisResult struct {
	JobID uuid.UUID
}

// StartAnalysis stores the upload, creates a pending job and dispatches it.
// It returns without waiting for the analysis.
func (s *AnalysisService) StartAnalysis(ctx context.Context, req StartAnalysisRequest) (*StartAnalysisResult, error) {
	if s.jobs == nil || s.files == nil {
		return nil, ErrServiceMisconfigured
	}
	if len(req.Data) == 0 || req.Filename == "" {
		return nil, ErrMissingUpload
	}
	if !IsSupportedFile(req.Filename, req.MimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, req.Filename)
	}

	jobID := uuid.New()
	storagePath, err := s.files.Upload(ctx, jobID, req.Filename, bytes.NewReader(req.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = storage.ContentType(req.Filename)
	}

	job := &models.AnalysisJob{
		ID:           jobID,
		DocumentName: req.Filename,
		StoragePath:  storagePath,
		MimeType:     mimeType,
		Status:       models.JobStatusPending,
		Steps:        initialAnalysisSteps(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		s.logger.Error("failed to create analysis job", "error", err)
		return nil, ErrJobCreationFailed
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, jobID); err != nil {
			s.markJobFailed(ctx, jobID, "failed to dispatch job: "+err.Error())
			return nil, fmt.Errorf("failed to dispatch analysis job: %w", err)
		}
	}

	return &StartAnalysisResult{JobID: jobID}, nil
}

func initialAnalysisSteps() models.AnalysisSteps {
	names := []string{StepExtractText, StepExtractClauses, StepAnalyzeClauses, StepAssembleReport}
	steps := make(models.AnalysisSteps, len(names))
	for i, name := range names {
		steps[i] = models.AnalysisStep{Name: name, Status: models.StepPending}
	}
	return steps
}

// ProcessAnalysis performs the analysis of a job. It records the outcome on
// the job and also returns any failure.
func (s *AnalysisService) ProcessAnalysis(ctx context.Context, jobID uuid.UUID) error {
	if s.jobs == nil || s.files == nil || s.extractor == nil || s.analyzer == nil {
		return ErrServiceMisconfigured
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load analysis job: %w", err)
	}
	if job.Status == models.JobStatusCompleted {
		return nil
	}

	if err := s.jobs.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	tracker := &stepTracker{ctx: ctx, jobs: s.jobs, jobID: jobID, steps: initialAnalysisSteps(), logger: s.logger}

	// 1. Extract text
	tracker.set(StepExtractText, models.StepInProgress, "")
	data, err := storage.ReadAll(ctx, s.files, job.StoragePath)
	if err != nil {
		return s.fail(ctx, tracker, StepExtractText, fmt.Errorf("failed to load document: %w", err))
	}
	text, err := s.extractor.Extract(ctx, job.DocumentName, job.MimeType, data)
	if err != nil {
		return s.fail(ctx, tracker, StepExtractText, err)
	}
	tracker.set(StepExtractText, models.StepCompleted, "")

	// 2. Extract and analyze clauses
	tracker.set(StepExtractClauses, models.StepInProgress, "")
	report, err := s.analyzer.Analyze(ctx, job.DocumentName, text, tracker.onProgress)
	if err != nil {
		step := StepAnalyzeClauses
		if tracker.status(StepExtractClauses) != models.StepCompleted {
			step = StepExtractClauses
		}
		return s.fail(ctx, tracker, step, err)
	}

	// 3. Store report
	tracker.set(StepAssembleReport, models.StepInProgress, "")
	if err := s.jobs.Complete(ctx, jobID, report); err != nil {
		return s.fail(ctx, tracker, StepAssembleReport, fmt.Errorf("failed to store report: %w", err))
	}
	tracker.set(StepAssembleReport, models.StepCompleted, "")

	s.logger.Info("analysis completed",
		"job_id", jobID,
		"document", job.DocumentName,
		"clauses", report.TotalClausesAnalyzed,
		"potentially_illegal", report.PotentiallyIllegalCount,
	)
	return nil
}

func (s *AnalysisService) fail(ctx context.Context, tracker *stepTracker, step string, err error) error {
	tracker.set(step, models.StepFailed, "")
	s.markJobFailed(ctx, tracker.jobID, err.Error())
	return err
}

// markJobFailed marks a job as failed with an error message
func (s *AnalysisService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobs.Fail(ctx, jobID, errorMessage); err != nil {
		s.logger.Error("failed to mark job as failed", "job_id", jobID, "error", err)
	}
}

// GetJobStatus retrieves an analysis job
func (s *AnalysisService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error) {
	if s.jobs == nil {
		return nil, ErrServiceMisconfigured
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetReport returns the report of a completed job and its download filename
func (s *AnalysisService) GetReport(ctx context.Context, jobID uuid.UUID) (*models.DocumentAnalysisReport, string, error) {
	job, err := s.GetJobStatus(ctx, jobID)
	if err != nil {
		return nil, "", err
	}
	if job.Status != models.JobStatusCompleted || job.Report == nil {
		return nil, "", ErrReportNotReady
	}
	return job.Report, ReportFilename(job.DocumentName), nil
}

// ReportFilename names the JSON download of a report
func ReportFilename(documentName string) string {
	base := filepath.Base(documentName)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		base = "documento"
	}
	return "analise_" + base + ".json"
}

// stepTracker keeps the job steps in memory and persists every change
type stepTracker struct {
	ctx     context.Context
	jobs    AnalysisJobStore
	jobID   uuid.UUID
	steps   models.AnalysisSteps
	current string
	logger  *slog.Logger
}

func (t *stepTracker) set(name, status, description string) {
	for i := range t.steps {
		if t.steps[i].Name != name {
			continue
		}
		t.steps[i].Status = status
		if description != "" {
			t.steps[i].Description = description
		}
		if status == models.StepInProgress {
			t.current = name
		}
		break
	}

	if err := t.jobs.UpdateProgress(t.ctx, t.jobID, t.current, t.steps); err != nil {
		t.logger.Warn("failed to update job progress", "job_id", t.jobID, "step", name, "error", err)
	}
}

func (t *stepTracker) status(name string) string {
	for _, step := range t.steps {
		if step.Name == name {
			return step.Status
		}
	}
	return ""
}

func (t *stepTracker) onProgress(p AnalysisProgress) {
	switch p.Node {
	case NodeExtractClauses:
		t.set(StepExtractClauses, models.StepCompleted, fmt.Sprintf("%d clauses found", p.TotalClauses))
		t.set(StepAnalyzeClauses, models.StepInProgress, fmt.Sprintf("0/%d", p.TotalClauses))
	case NodeAnalyzeClause:
		t.set(StepAnalyzeClauses, models.StepInProgress, fmt.Sprintf("%d/%d", p.ClauseIndex+1, p.TotalClauses))
	case NodeComplete:
		t.set(StepAnalyzeClauses, models.StepCompleted, fmt.Sprintf("%d/%d", p.ClauseIndex, p.TotalClauses))
	}
}
