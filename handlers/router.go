package handlers

import (
	"net/http"

	"condolex-backend/metrics"

	"github.com/gin-gonic/gin"
)

// Router bundles the handlers mounted under /api
type Router struct {
	Questions    *QuestionHandler
	Analyses     *AnalysisHandler
	InternalDocs *InternalDocsHandler
	Drafting     *DraftingHandler
	Metrics      *metrics.Metrics
	// AdminTokenHash guards internal document changes
	AdminTokenHash string
}

// Register mounts every route on engine
func (r *Router) Register(engine *gin.Engine) {
	if r.Metrics != nil {
		engine.Use(Metrics(r.Metrics))
	}

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := engine.Group("/api")
	{
		if r.Questions != nil {
			api.POST("/questions", r.Questions.Ask)
		}

		if r.Analyses != nil {
			api.POST("/analyses", r.Analyses.StartAnalysis)
			api.GET("/analyses/:id/report", r.Analyses.DownloadReport)
			api.GET("/jobs/:id", r.Analyses.GetJobStatus)
		}

		if r.InternalDocs != nil {
			api.GET("/internal-documents", r.InternalDocs.List)
			admin := api.Group("/internal-documents", RequireAdminToken(r.AdminTokenHash))
			admin.POST("", r.InternalDocs.Upload)
			admin.DELETE("", r.InternalDocs.Clear)
		}

		if r.Drafting != nil {
			api.GET("/documents/fields", r.Drafting.GetFields)
			api.POST("/documents", r.Drafting.WriteDocument)
		}
	}
}
