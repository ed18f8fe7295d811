package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DocumentAnalysisReport is the outcome of a completed bylaws analysis
type DocumentAnalysisReport struct {
	DocumentName            string                 `json:"document_name"`
	AnalysisDate            time.Time              `json:"analysis_date"`
	TotalClausesAnalyzed    int                    `json:"total_clauses_analyzed"`
	PotentiallyIllegalCount int                    `json:"potentially_illegal_count"`
	Clauses                 []ClauseAnalysisResult `json:"clauses"`
}

// NewReport builds a report from the ordered clause results, stamped with now
func NewReport(documentName string, results []ClauseAnalysisResult, now time.Time) *DocumentAnalysisReport {
	clauses := make([]ClauseAnalysisResult, len(results))
	copy(clauses, results)

	illegal := 0
	for _, r := range clauses {
		if r.IsPotentiallyIllegal {
			illegal++
		}
	}

	return &DocumentAnalysisReport{
		DocumentName:            documentName,
		AnalysisDate:            now,
		TotalClausesAnalyzed:    len(clauses),
		PotentiallyIllegalCount: illegal,
		Clauses:                 clauses,
	}
}

// ConformityRate returns the percentage of clauses not flagged as illegal.
// ok is false when the report has no clauses.
func (r *DocumentAnalysisReport) ConformityRate() (rate float64, ok bool) {
	if r.TotalClausesAnalyzed == 0 {
		return 0, false
	}
	conform := r.TotalClausesAnalyzed - r.PotentiallyIllegalCount
	return float64(conform) / float64(r.TotalClausesAnalyzed) * 100, true
}

// IllegalClauses returns the flagged clauses in report order
func (r *DocumentAnalysisReport) IllegalClauses() []ClauseAnalysisResult {
	out := make([]ClauseAnalysisResult, 0, r.PotentiallyIllegalCount)
	for _, c := range r.Clauses {
		if c.IsPotentiallyIllegal {
			out = append(out, c)
		}
	}
	return out
}

// ToMap converts the report to its persisted nested-map form
func (r *DocumentAnalysisReport) ToMap() map[string]interface{} {
	clauses := make([]map[string]interface{}, 0, len(r.Clauses))
	for _, c := range r.Clauses {
		articles := make([]string, len(c.ConflictingArticles))
		copy(articles, c.ConflictingArticles)

		var principle interface{}
		if c.LegalPrincipleViolated != nil {
			principle = *c.LegalPrincipleViolated
		}

		clauses = append(clauses, map[string]interface{}{
			"clause_number":            c.ClauseNumber,
			"clause_text":              c.ClauseText,
			"topic":                    string(c.Topic),
			"is_potentially_illegal":   c.IsPotentiallyIllegal,
			"confidence":               string(c.Confidence),
			"conflicting_articles":     articles,
			"explanation":              c.Explanation,
			"legal_principle_violated": principle,
			"recommendation":           c.Recommendation,
		})
	}

	return map[string]interface{}{
		"document_name":             r.DocumentName,
		"analysis_date":             r.AnalysisDate.Format(time.RFC3339Nano),
		"total_clauses_analyzed":    r.TotalClausesAnalyzed,
		"potentially_illegal_count": r.PotentiallyIllegalCount,
		"clauses":                   clauses,
	}
}

// ErrMalformedReport is returned when a persisted report map cannot be decoded
var ErrMalformedReport = errors.New("malformed analysis report")

// ReportFromMap rebuilds a report from its nested-map form. It accepts maps
// produced by ToMap as well as maps decoded from JSON.
func ReportFromMap(m map[string]interface{}) (*DocumentAnalysisReport, error) {
	r := &DocumentAnalysisReport{}

	name, ok := m["document_name"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: document_name", ErrMalformedReport)
	}
	r.DocumentName = name

	dateStr, ok := m["analysis_date"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: analysis_date", ErrMalformedReport)
	}
	date, err := time.Parse(time.RFC3339Nano, dateStr)
	if err != nil {
		return nil, fmt.Errorf("%w: analysis_date: %v", ErrMalformedReport, err)
	}
	r.AnalysisDate = date

	if r.TotalClausesAnalyzed, ok = toInt(m["total_clauses_analyzed"]); !ok {
		return nil, fmt.Errorf("%w: total_clauses_analyzed", ErrMalformedReport)
	}
	if r.PotentiallyIllegalCount, ok = toInt(m["potentially_illegal_count"]); !ok {
		return nil, fmt.Errorf("%w: potentially_illegal_count", ErrMalformedReport)
	}

	var rawClauses []map[string]interface{}
	switch v := m["clauses"].(type) {
	case []map[string]interface{}:
		rawClauses = v
	case []interface{}:
		for _, item := range v {
			cm, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: clause entry", ErrMalformedReport)
			}
			rawClauses = append(rawClauses, cm)
		}
	case nil:
	default:
		return nil, fmt.Errorf("%w: clauses", ErrMalformedReport)
	}

	r.Clauses = make([]ClauseAnalysisResult, 0, len(rawClauses))
	for _, cm := range rawClauses {
		c := ClauseAnalysisResult{}
		c.ClauseNumber, _ = cm["clause_number"].(string)
		c.ClauseText, _ = cm["clause_text"].(string)
		topic, _ := cm["topic"].(string)
		c.Topic = Topic(topic)
		c.IsPotentiallyIllegal, _ = cm["is_potentially_illegal"].(bool)
		confidence, _ := cm["confidence"].(string)
		c.Confidence = Confidence(confidence)
		c.Explanation, _ = cm["explanation"].(string)
		c.Recommendation, _ = cm["recommendation"].(string)
		if p, ok := cm["legal_principle_violated"].(string); ok {
			c.LegalPrincipleViolated = &p
		}

		c.ConflictingArticles = []string{}
		switch arts := cm["conflicting_articles"].(type) {
		case []string:
			c.ConflictingArticles = append(c.ConflictingArticles, arts...)
		case []interface{}:
			for _, a := range arts {
				if s, ok := a.(string); ok {
					c.ConflictingArticles = append(c.ConflictingArticles, s)
				}
			}
		}
		r.Clauses = append(r.Clauses, c)
	}

	return r, nil
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

// MarshalJSON writes the report in its persisted map form
func (r DocumentAnalysisReport) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.ToMap())
}

// UnmarshalJSON reads a report from its persisted map form
func (r *DocumentAnalysisReport) UnmarshalJSON(data []byte) error {
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	decoded, err := ReportFromMap(m)
	if err != nil {
		return err
	}
	*r = *decoded
	return nil
}

// Value implements driver.Valuer for JSONB
func (r DocumentAnalysisReport) Value() (driver.Value, error) {
	return json.Marshal(r.ToMap())
}

// Scan implements sql.Scanner for JSONB
func (r *DocumentAnalysisReport) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	case map[string]interface{}:
		decoded, err := ReportFromMap(v)
		if err != nil {
			return err
		}
		*r = *decoded
		return nil
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrMalformedReport, value)
	}
	return r.UnmarshalJSON(bytes)
}
