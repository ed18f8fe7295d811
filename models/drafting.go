package models

// DocumentType identifies a kind of formal condominium document
type DocumentType string

const (
	DocNoiseNotice       DocumentType = "notificacao_barulho"
	DocDelinquencyNotice DocumentType = "notificacao_inadimplencia"
	DocWarning           DocumentType = "advertencia"
	DocMeetingCall       DocumentType = "convocacao_assembleia"
	DocMeetingMinutes    DocumentType = "ata_assembleia"
	DocGeneralNotice     DocumentType = "comunicado_geral"
)

// DocumentTypeNames maps each known type to its display name
var DocumentTypeNames = map[DocumentType]string{
	DocNoiseNotice:       "Notificação de Barulho",
	DocDelinquencyNotice: "Notificação de Inadimplência",
	DocWarning:           "Advertência",
	DocMeetingCall:       "Convocação de Assembleia",
	DocMeetingMinutes:    "Ata de Assembleia",
	DocGeneralNotice:     "Comunicado Geral",
}

// DisplayName returns the friendly name of a document type
func (t DocumentType) DisplayName() string {
	if name, ok := DocumentTypeNames[t]; ok {
		return name
	}
	return string(t)
}

// DocumentField describes one input the user fills before drafting
type DocumentField struct {
	FieldID     string   `json:"field_id" yaml:"field_id"`
	Label       string   `json:"label" yaml:"label"`
	FieldType   string   `json:"field_type" yaml:"field_type"` // text, textarea, date, number, select
	Required    bool     `json:"required" yaml:"required"`
	Placeholder string   `json:"placeholder" yaml:"placeholder"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
}

// DocumentSuggestion is an offer to draft a document after an answer
type DocumentSuggestion struct {
	ShouldSuggest     bool         `json:"should_suggest"`
	DocumentType      DocumentType `json:"document_type,omitempty"`
	DocumentName      string       `json:"document_name,omitempty"`
	SuggestionMessage string       `json:"suggestion_message,omitempty"`
}

// DocumentRequest is the result of checking whether a message explicitly
// asks for a document
type DocumentRequest struct {
	IsExplicitRequest bool         `json:"is_explicit_request"`
	DocumentType      DocumentType `json:"document_type,omitempty"`
	DocumentName      string       `json:"document_name,omitempty"`
	ExtractedContext  string       `json:"extracted_context,omitempty"`
}
