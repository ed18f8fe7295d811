package models

// RetrievedDocument is a passage returned by a retriever
type RetrievedDocument struct {
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Source returns the "source" metadata value, or an empty string
func (d RetrievedDocument) Source() string {
	if d.Metadata == nil {
		return ""
	}
	if s, ok := d.Metadata["source"].(string); ok {
		return s
	}
	return ""
}

// Origin metadata values used by the retrievers
const (
	OriginStatute  = "statute"
	OriginInternal = "internal"
)
