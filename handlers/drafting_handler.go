package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"condolex-backend/models"
	"condolex-backend/service"

	"github.com/gin-gonic/gin"
)

// Drafter produces form fields and drafts for condominium documents
type Drafter interface {
	DocumentFields(ctx context.Context, docType models.DocumentType, name, extraContext string) []models.DocumentField
	WriteDocument(ctx context.Context, req service.WriteRequest) (string, error)
}

// DraftingHandler handles HTTP requests for document drafting
type DraftingHandler struct {
	drafter Drafter
	logger  *slog.Logger
}

// NewDraftingHandler creates a new drafting handler
func NewDraftingHandler(drafter Drafter, logger *slog.Logger) *DraftingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DraftingHandler{drafter: drafter, logger: logger}
}

// GetFields handles GET /api/documents/fields
func (h *DraftingHandler) GetFields(c *gin.Context) {
	docType := models.DocumentType(c.Query("document_type"))
	if docType == "" {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", "document_type is required")
		return
	}
	name := c.DefaultQuery("document_name", docType.DisplayName())

	fields := h.drafter.DocumentFields(c.Request.Context(), docType, name, c.Query("context"))
	successResponse(c, http.StatusOK, gin.H{
		"document_type": docType,
		"document_name": name,
		"fields":        fields,
	})
}

// WriteDocumentRequest represents the request body for drafting a document
type WriteDocumentRequest struct {
	DocumentType     string            `json:"document_type" binding:"required"`
	DocumentName     string            `json:"document_name"`
	OriginalQuestion string            `json:"original_question"`
	PreviousAnswer   string            `json:"previous_answer"`
	AdditionalInfo   string            `json:"additional_info"`
	FieldValues      map[string]string `json:"field_values"`
	Format           string            `json:"format"`
}

// WriteDocument handles POST /api/documents. With a format the draft is
// returned as a file download, otherwise as JSON.
func (h *DraftingHandler) WriteDocument(c *gin.Context) {
	var req WriteDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	docType := models.DocumentType(req.DocumentType)
	name := req.DocumentName
	if name == "" {
		name = docType.DisplayName()
	}

	text, err := h.drafter.WriteDocument(c.Request.Context(), service.WriteRequest{
		DocumentType:     docType,
		DocumentName:     name,
		OriginalQuestion: req.OriginalQuestion,
		PreviousAnswer:   req.PreviousAnswer,
		AdditionalInfo:   req.AdditionalInfo,
		FieldValues:      req.FieldValues,
	})
	if err != nil {
		h.logger.Error("failed to write document", "document_type", docType, "error", err)
		errorResponse(c, http.StatusInternalServerError, "DRAFT_FAILED", err.Error())
		return
	}

	title := service.DocumentTitle(text, name)
	if req.Format == "" {
		successResponse(c, http.StatusOK, gin.H{
			"document_type": docType,
			"title":         title,
			"content":       text,
		})
		return
	}

	doc, err := service.FormatDocument(text, req.Format)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedFormat) {
			errorResponse(c, http.StatusBadRequest, "UNSUPPORTED_FORMAT", fmt.Sprintf("Format %q is not supported", req.Format))
			return
		}
		errorResponse(c, http.StatusInternalServerError, "FORMAT_FAILED", err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName(title)+doc.Extension))
	c.Data(http.StatusOK, doc.MimeType, doc.Content)
}

var unsafeFilename = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

func downloadName(title string) string {
	name := strings.Trim(unsafeFilename.ReplaceAllString(title, "_"), "_")
	if name == "" {
		return "documento"
	}
	return name
}
