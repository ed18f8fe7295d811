package models

import (
	"github.com/google/uuid"
)

// StatuteArticle is one article of the Civil Code stored in the statute index
type StatuteArticle struct {
	ID            uuid.UUID              `json:"id"`
	ArticleNumber string                 `json:"article_number"` // "1331", "1331-A"
	Text          string                 `json:"text"`
	Law           string                 `json:"law"`
	SourceURL     string                 `json:"source_url"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Distance      float64                `json:"distance,omitempty"`
}

// Citation renders the article reference used in answers and reports
func (a StatuteArticle) Citation() string {
	return "Art. " + a.ArticleNumber + " do " + a.Law
}

// ToDocument converts the article into a retrieval result
func (a StatuteArticle) ToDocument() RetrievedDocument {
	meta := map[string]interface{}{
		"source":         a.Citation(),
		"origin":         OriginStatute,
		"article_number": a.ArticleNumber,
		"law":            a.Law,
		"distance":       a.Distance,
	}
	if a.SourceURL != "" {
		meta["url"] = a.SourceURL
	}
	return RetrievedDocument{
		Content:  a.Text,
		Metadata: meta,
	}
}
