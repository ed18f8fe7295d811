package models

import "strings"

// Topic classifies the subject of a bylaws clause
type Topic string

const (
	TopicPets        Topic = "pets"
	TopicCommonAreas Topic = "common_areas"
	TopicFees        Topic = "fees"
	TopicQuorum      Topic = "quorum"
	TopicVisitors    Topic = "visitors"
	TopicPropertyUse Topic = "property_use"
	TopicFines       Topic = "fines"
	TopicGeneral     Topic = "general"
)

var validTopics = map[Topic]bool{
	TopicPets:        true,
	TopicCommonAreas: true,
	TopicFees:        true,
	TopicQuorum:      true,
	TopicVisitors:    true,
	TopicPropertyUse: true,
	TopicFines:       true,
	TopicGeneral:     true,
}

// ParseTopic normalizes a topic label, falling back to TopicGeneral
func ParseTopic(s string) Topic {
	t := Topic(strings.ToLower(strings.TrimSpace(s)))
	if validTopics[t] {
		return t
	}
	return TopicGeneral
}

// Confidence is the classifier's confidence in an illegality verdict
type Confidence string

const (
	ConfidenceHigh   Confidence = "alta"
	ConfidenceMedium Confidence = "media"
	ConfidenceLow    Confidence = "baixa"
)

// ParseConfidence normalizes a confidence label, falling back to ConfidenceLow
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "alta", "high":
		return ConfidenceHigh
	case "media", "média", "medium":
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ExtractedClause is a single clause found in a bylaws document.
// ClauseNumber identifies the clause within one analysis.
type ExtractedClause struct {
	ClauseNumber string `json:"clause_number"`
	ClauseText   string `json:"clause_text"`
	Topic        Topic  `json:"topic"`
}

// IllegalityVerdict is what the illegality classifier says about one clause
type IllegalityVerdict struct {
	IsPotentiallyIllegal   bool       `json:"is_potentially_illegal"`
	Confidence             Confidence `json:"confidence"`
	ConflictingArticles    []string   `json:"conflicting_articles"`
	Explanation            string     `json:"explanation"`
	LegalPrincipleViolated *string    `json:"legal_principle_violated"`
	Recommendation         string     `json:"recommendation"`
}

// ClauseAnalysisResult is the verdict for a clause together with its identity
type ClauseAnalysisResult struct {
	ClauseNumber string `json:"clause_number"`
	ClauseText   string `json:"clause_text"`
	Topic        Topic  `json:"topic"`
	IllegalityVerdict
}

// NewClauseAnalysisResult pairs a clause with its verdict
func NewClauseAnalysisResult(clause ExtractedClause, verdict IllegalityVerdict) ClauseAnalysisResult {
	if verdict.ConflictingArticles == nil {
		verdict.ConflictingArticles = []string{}
	}
	return ClauseAnalysisResult{
		ClauseNumber:      clause.ClauseNumber,
		ClauseText:        clause.ClauseText,
		Topic:             clause.Topic,
		IllegalityVerdict: verdict,
	}
}
