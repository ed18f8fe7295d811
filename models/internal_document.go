package models

import (
	"time"

	"github.com/google/uuid"
)

// InternalDocument is a condominium document uploaded by a user and indexed
// into the internal collection
type InternalDocument struct {
	ID          uuid.UUID `json:"id"`
	Filename    string    `json:"filename"`
	MimeType    string    `json:"mime_type"`
	Size        int64     `json:"size"`
	StoragePath string    `json:"storage_path"`
	Collection  string    `json:"collection"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}
