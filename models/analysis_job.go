package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AnalysisJobStatus represents the status of an analysis job
type AnalysisJobStatus string

const (
	JobStatusPending    AnalysisJobStatus = "pending"
	JobStatusInProgress AnalysisJobStatus = "in_progress"
	JobStatusCompleted  AnalysisJobStatus = "completed"
	JobStatusFailed     AnalysisJobStatus = "failed"
)

// Step statuses
const (
	StepPending    = "pending"
	StepInProgress = "in_progress"
	StepCompleted  = "completed"
	StepFailed     = "failed"
)

// AnalysisStep represents a step in the analysis process
type AnalysisStep struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
}

// AnalysisSteps represents a list of analysis steps
type AnalysisSteps []AnalysisStep

// Value implements driver.Valuer for JSONB
func (g AnalysisSteps) Value() (driver.Value, error) {
	return json.Marshal(g)
}

// Scan implements sql.Scanner for JSONB
func (g *AnalysisSteps) Scan(value interface{}) error {
	if value == nil {
		*g = make(AnalysisSteps, 0)
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		*g = make(AnalysisSteps, 0)
		return nil
	}

	if len(bytes) == 0 {
		*g = make(AnalysisSteps, 0)
		return nil
	}

	return json.Unmarshal(bytes, g)
}

// AnalysisJob tracks one asynchronous bylaws analysis
type AnalysisJob struct {
	ID           uuid.UUID               `json:"id"`
	DocumentName string                  `json:"document_name"`
	StoragePath  string                  `json:"-"`
	MimeType     string                  `json:"mime_type"`
	Status       AnalysisJobStatus       `json:"status"`
	CurrentStep  *string                 `json:"current_step,omitempty"`
	Steps        AnalysisSteps           `json:"steps"`
	Report       *DocumentAnalysisReport `json:"report,omitempty"`
	ErrorMessage *string                 `json:"error_message,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
	CompletedAt  *time.Time              `json:"completed_at,omitempty"`
}
