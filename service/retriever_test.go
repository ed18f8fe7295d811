package service

import (
	"context"
	"testing"

	"condolex-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSearcher struct {
	limits []int
}

func (s *recordingSearcher) SearchSimilar(_ context.Context, _ []float64, limit int) ([]models.StatuteArticle, error) {
	s.limits = append(s.limits, limit)
	return []models.StatuteArticle{{ArticleNumber: "1336", Law: "Código Civil", Text: "São deveres do condômino"}}, nil
}

func TestStatuteRetrieversKeepTheirOwnLimits(t *testing.T) {
	repo := &recordingSearcher{}
	query := NewStatuteRetriever(&stubEmbedder{}, repo, 12)
	clauses := NewStatuteRetriever(&stubEmbedder{}, repo, 0)

	_, err := query.Retrieve(context.Background(), "animais")
	require.NoError(t, err)
	docs, err := clauses.Retrieve(context.Background(), "animais")
	require.NoError(t, err)

	assert.Equal(t, []int{12, DefaultTopK}, repo.limits)
	require.Len(t, docs, 1)
	assert.Equal(t, "Art. 1336 do Código Civil", docs[0].Source())
}
