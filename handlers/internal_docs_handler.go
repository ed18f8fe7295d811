package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"condolex-backend/service"

	"github.com/gin-gonic/gin"
)

// InternalDocs manages the condominium's own indexed documents
type InternalDocs interface {
	Upload(ctx context.Context, files []service.UploadedFile) (int, error)
	Names() []string
	Clear(ctx context.Context) error
}

// InternalDocsHandler handles HTTP requests for internal documents
type InternalDocsHandler struct {
	docs        InternalDocs
	maxFileSize int64
	logger      *slog.Logger
}

// NewInternalDocsHandler creates a new internal documents handler
func NewInternalDocsHandler(docs InternalDocs, logger *slog.Logger) *InternalDocsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InternalDocsHandler{
		docs:        docs,
		maxFileSize: DefaultMaxUploadSize,
		logger:      logger,
	}
}

// List handles GET /api/internal-documents
func (h *InternalDocsHandler) List(c *gin.Context) {
	names := h.docs.Names()
	successResponse(c, http.StatusOK, gin.H{
		"documents":  names,
		"configured": len(names) > 0,
	})
}

// Upload handles POST /api/internal-documents
func (h *InternalDocsHandler) Upload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		errorResponse(c, http.StatusBadRequest, "NO_FILE", "No files provided")
		return
	}

	files := make([]service.UploadedFile, 0, len(form.File["files"]))
	for _, fh := range form.File["files"] {
		data, err := readUpload(fh, h.maxFileSize)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "FILE_TOO_LARGE", err.Error())
			return
		}
		files = append(files, service.UploadedFile{
			Filename: fh.Filename,
			MimeType: fh.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	n, err := h.docs.Upload(c.Request.Context(), files)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoFiles), errors.Is(err, service.ErrNoDocumentsIndexed):
			errorResponse(c, http.StatusBadRequest, "NO_CONTENT", err.Error())
		case errors.Is(err, service.ErrUnsupportedFileType):
			errorResponse(c, http.StatusBadRequest, "INVALID_FILE_TYPE", err.Error())
		default:
			h.logger.Error("internal document upload failed", "files", len(files), "error", err)
			errorResponse(c, http.StatusInternalServerError, "UPLOAD_FAILED", err.Error())
		}
		return
	}

	successResponse(c, http.StatusCreated, gin.H{
		"indexed":   n,
		"documents": h.docs.Names(),
	})
}

// Clear handles DELETE /api/internal-documents
func (h *InternalDocsHandler) Clear(c *gin.Context) {
	if err := h.docs.Clear(c.Request.Context()); err != nil {
		h.logger.Error("failed to clear internal documents", "error", err)
		errorResponse(c, http.StatusInternalServerError, "DELETE_FAILED", err.Error())
		return
	}
	successResponse(c, http.StatusOK, gin.H{"documents": []string{}})
}
