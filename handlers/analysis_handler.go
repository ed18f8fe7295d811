package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"condolex-backend/models"
	"condolex-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DefaultMaxUploadSize bounds every uploaded document
const DefaultMaxUploadSize = 10 * 1024 * 1024 // 10MB

// Analyzer starts and tracks bylaws analysis jobs
type Analyzer interface {
	StartAnalysis(ctx context.Context, req service.StartAnalysisRequest) (*service.StartAnalysisResult, error)
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.AnalysisJob, error)
	GetReport(ctx context.Context, jobID uuid.UUID) (*models.DocumentAnalysisReport, string, error)
}

// AnalysisHandler handles HTTP requests for bylaws analysis
type AnalysisHandler struct {
	analyzer    Analyzer
	maxFileSize int64
	logger      *slog.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyzer Analyzer, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{
		analyzer:    analyzer,
		maxFileSize: DefaultMaxUploadSize,
		logger:      logger,
	}
}

// StartAnalysis handles POST /api/analyses
func (h *AnalysisHandler) StartAnalysis(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "NO_FILE", "No file provided")
		return
	}

	data, err := readUpload(fileHeader, h.maxFileSize)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
		return
	}

	result, err := h.analyzer.StartAnalysis(c.Request.Context(), service.StartAnalysisRequest{
		Filename: fileHeader.Filename,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingUpload):
			errorResponse(c, http.StatusBadRequest, "EMPTY_FILE", err.Error())
		case errors.Is(err, service.ErrUnsupportedFileType):
			errorResponse(c, http.StatusBadRequest, "INVALID_FILE_TYPE", err.Error())
		default:
			h.logger.Error("failed to start analysis", "file", fileHeader.Filename, "error", err)
			errorResponse(c, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error())
		}
		return
	}

	// Return 202 Accepted with job ID for polling
	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id":  result.JobID,
			"status":  models.JobStatusPending,
			"message": "Analysis started. Poll /api/jobs/" + result.JobID.String() + " for updates.",
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *AnalysisHandler) GetJobStatus(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	job, err := h.analyzer.GetJobStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			errorResponse(c, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
			return
		}
		errorResponse(c, http.StatusInternalServerError, "FETCH_FAILED", err.Error())
		return
	}

	successResponse(c, http.StatusOK, job)
}

// DownloadReport handles GET /api/analyses/:id/report
func (h *AnalysisHandler) DownloadReport(c *gin.Context) {
	jobID, ok := parseJobID(c)
	if !ok {
		return
	}

	report, filename, err := h.analyzer.GetReport(c.Request.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			errorResponse(c, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		case errors.Is(err, service.ErrReportNotReady):
			errorResponse(c, http.StatusConflict, "REPORT_NOT_READY", "Analysis has not completed")
		default:
			errorResponse(c, http.StatusInternalServerError, "FETCH_FAILED", err.Error())
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.IndentedJSON(http.StatusOK, report)
}

func parseJobID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid job ID format")
		return uuid.Nil, false
	}
	return id, true
}
