package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"condolex-backend/service"

	"github.com/gin-gonic/gin"
)

// Asker answers condominium law questions
type Asker interface {
	Ask(ctx context.Context, question string) (*service.AskResult, error)
}

// QuestionHandler handles HTTP requests for questions
type QuestionHandler struct {
	asker  Asker
	logger *slog.Logger
}

// NewQuestionHandler creates a new question handler
func NewQuestionHandler(asker Asker, logger *slog.Logger) *QuestionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionHandler{asker: asker, logger: logger}
}

// AskRequest represents the request body for a question
type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

// Ask handles POST /api/questions
func (h *QuestionHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.asker.Ask(c.Request.Context(), req.Question)
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuestion) {
			errorResponse(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}
		h.logger.Error("question failed", "error", err)
		errorResponse(c, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}

	successResponse(c, http.StatusOK, result)
}
