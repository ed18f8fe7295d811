package service

import (
	"context"
	"errors"
	"testing"

	"condolex-backend/models"
	"condolex-backend/prompts"

	"github.com/stretchr/testify/assert"
)

func TestIdentifyUsedSourcesEmptyInputSkipsClassifier(t *testing.T) {
	gen := replyWith(`{"used_indices": [0]}`)
	s := NewSourceIdentifier(gen, prompts.MustDefault(), nil)

	assert.Empty(t, s.IdentifyUsedSources(context.Background(), "", []models.RetrievedDocument{doc("a", "x")}, "q"))
	assert.Empty(t, s.IdentifyUsedSources(context.Background(), "answer", nil, "q"))
	assert.Equal(t, 0, gen.callCount())
}

func TestIdentifyUsedSourcesFailsOpen(t *testing.T) {
	docs := []models.RetrievedDocument{doc("Art. 1336", "x"), doc("Art. 1337", "y"), doc("Art. 1338", "z")}

	s := NewSourceIdentifier(failWith(errors.New("timeout")), prompts.MustDefault(), nil)
	assert.Equal(t, docs, s.IdentifyUsedSources(context.Background(), "answer", docs, "q"))

	s = NewSourceIdentifier(replyWith("not json at all"), prompts.MustDefault(), nil)
	assert.Equal(t, docs, s.IdentifyUsedSources(context.Background(), "answer", docs, "q"))
}

func TestIdentifyUsedSourcesDropsOutOfRangeIndices(t *testing.T) {
	docs := []models.RetrievedDocument{doc("Art. 1336", "x"), doc("Art. 1337", "y")}
	s := NewSourceIdentifier(replyWith(`{"used_indices": [-1, 0, 5]}`), prompts.MustDefault(), nil)

	got := s.IdentifyUsedSources(context.Background(), "answer", docs, "q")
	assert.Equal(t, []models.RetrievedDocument{docs[0]}, got)
}

func TestIdentifyUsedSourcesKeepsInputOrder(t *testing.T) {
	docs := []models.RetrievedDocument{doc("a", "x"), doc("b", "y"), doc("c", "z")}
	s := NewSourceIdentifier(replyWith("```json\n{\"used_indices\": [2, 0, 2]}\n```"), prompts.MustDefault(), nil)

	got := s.IdentifyUsedSources(context.Background(), "answer", docs, "q")
	assert.Equal(t, []models.RetrievedDocument{docs[0], docs[2]}, got)
}

func TestDedupeSourcesByContent(t *testing.T) {
	docs := []models.RetrievedDocument{doc("a", "x"), doc("b", "y"), doc("c", "x")}
	assert.Equal(t, []models.RetrievedDocument{docs[0], docs[1]}, DedupeSourcesByContent(docs))
	assert.Empty(t, DedupeSourcesByContent(nil))
}
