package models

// PipelineState is the working state of one question answering run.
// Solution stays nil until the answer has been generated.
type PipelineState struct {
	Question          string              `json:"question"`
	Documents         []RetrievedDocument `json:"documents"`
	InternalDocuments []RetrievedDocument `json:"internal_documents,omitempty"`
	Solution          *string             `json:"solution,omitempty"`
}

// Answer returns the generated solution, or an empty string
func (s PipelineState) Answer() string {
	if s.Solution == nil {
		return ""
	}
	return *s.Solution
}

// AnalysisState is the working state of one legality analysis run.
// Between iterations CurrentClauseIndex equals len(AnalysisResults).
type AnalysisState struct {
	DocumentChunks     []string               `json:"document_chunks"`
	ExtractedClauses   []ExtractedClause      `json:"extracted_clauses"`
	CurrentClauseIndex int                    `json:"current_clause_index"`
	RelevantArticles   string                 `json:"relevant_articles"`
	AnalysisResults    []ClauseAnalysisResult `json:"analysis_results"`
}

// Done reports whether every extracted clause has been analyzed
func (s *AnalysisState) Done() bool {
	return s.CurrentClauseIndex >= len(s.ExtractedClauses)
}

// CurrentClause returns the clause under the cursor
func (s *AnalysisState) CurrentClause() (ExtractedClause, bool) {
	if s.Done() {
		return ExtractedClause{}, false
	}
	return s.ExtractedClauses[s.CurrentClauseIndex], true
}
