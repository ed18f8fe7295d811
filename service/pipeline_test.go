package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"condolex-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryPipelineAnswerOnlyNeverCallsInternalRetriever(t *testing.T) {
	external := &stubRetriever{docs: []models.RetrievedDocument{doc("Art. 1336", "keep 1"), doc("Art. 1337", "drop"), doc("Art. 1338", "keep 2")}}
	internal := &stubCollectionRetriever{}
	answer := &stubAnswerGenerator{answer: "resposta"}

	p := NewQueryPipeline(
		PipelineWithExternalRetriever(external),
		PipelineWithInternalRetriever(internal),
		PipelineWithScorer(&stubScorer{keep: "keep"}),
		PipelineWithGenerator(answer),
		PipelineWithInternalIndex(NewInternalIndexConfig()),
	)

	state, err := p.Run(context.Background(), "Posso ter cachorro?")
	require.NoError(t, err)
	assert.Equal(t, 0, internal.calls)
	assert.Equal(t, "resposta", state.Answer())
	assert.Equal(t, []string{"keep 1", "keep 2"}, contents(state.Documents))
	assert.Equal(t, state.Documents, answer.gotDoc)
}

func TestQueryPipelineMergesGradedInternalDocumentsAfterExternal(t *testing.T) {
	index := NewInternalIndexConfig()
	index.Swap("internal-v1", []string{"convencao.pdf"})

	external := &stubRetriever{docs: []models.RetrievedDocument{doc("Art. 1336", "keep ext"), doc("Art. 1337", "drop ext")}}
	internal := &stubCollectionRetriever{docs: []models.RetrievedDocument{doc("convencao.pdf", "drop int"), doc("convencao.pdf", "keep int")}}
	internalScorer := &stubScorer{keep: "keep"}
	answer := &stubAnswerGenerator{answer: "ok"}

	p := NewQueryPipeline(
		PipelineWithExternalRetriever(external),
		PipelineWithInternalRetriever(internal),
		PipelineWithScorer(&stubScorer{keep: "keep"}),
		PipelineWithInternalScorer(internalScorer),
		PipelineWithGenerator(answer),
		PipelineWithInternalIndex(index),
	)

	state, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, internal.calls)
	assert.Equal(t, []string{"internal-v1"}, internal.collections)
	assert.ElementsMatch(t, []string{"drop int", "keep int"}, internalScorer.seen)
	assert.Equal(t, []string{"keep ext", "keep int"}, contents(state.Documents))
	assert.Len(t, state.InternalDocuments, 2)
}

func TestQueryPipelineEmptyContextStillGenerates(t *testing.T) {
	answer := &stubAnswerGenerator{answer: "Não há informação suficiente."}
	p := NewQueryPipeline(
		PipelineWithExternalRetriever(&stubRetriever{docs: []models.RetrievedDocument{doc("a", "irrelevant")}}),
		PipelineWithScorer(&stubScorer{keep: "keep"}),
		PipelineWithGenerator(answer),
	)

	state, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, answer.calls)
	assert.Empty(t, answer.gotDoc)
	assert.Equal(t, "Não há informação suficiente.", state.Answer())
}

func TestQueryPipelineRetrievalErrorPropagates(t *testing.T) {
	boom := errors.New("vector store unavailable")
	answer := &stubAnswerGenerator{}
	p := NewQueryPipeline(
		PipelineWithExternalRetriever(&stubRetriever{err: boom}),
		PipelineWithScorer(&stubScorer{}),
		PipelineWithGenerator(answer),
	)

	state, err := p.Run(context.Background(), "q")
	assert.Nil(t, state)
	assert.Equal(t, boom, err)
	assert.Equal(t, 0, answer.calls)
}

func TestQueryPipelineGradingErrorAborts(t *testing.T) {
	boom := errors.New("judge down")
	answer := &stubAnswerGenerator{}
	p := NewQueryPipeline(
		PipelineWithExternalRetriever(&stubRetriever{docs: []models.RetrievedDocument{doc("a", "keep"), doc("b", "keep bad")}}),
		PipelineWithScorer(&stubScorer{keep: "keep", failOn: "bad", err: boom}),
		PipelineWithGenerator(answer),
	)

	_, err := p.Run(context.Background(), "q")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, answer.calls)
}

func TestQueryPipelineBranchUsesSnapshotFromStart(t *testing.T) {
	index := NewInternalIndexConfig()
	internal := &stubCollectionRetriever{}
	external := &stubRetriever{
		docs: []models.RetrievedDocument{doc("a", "keep")},
		// an upload lands while the run is in flight
		hook: func() { index.Swap("late", []string{"late.pdf"}) },
	}

	p := NewQueryPipeline(
		PipelineWithExternalRetriever(external),
		PipelineWithInternalRetriever(internal),
		PipelineWithScorer(&stubScorer{keep: "keep"}),
		PipelineWithGenerator(&stubAnswerGenerator{answer: "ok"}),
		PipelineWithInternalIndex(index),
	)

	_, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 0, internal.calls)

	_, err = p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, 1, internal.calls)
}

func TestQueryPipelineConcurrentGradingPreservesOrder(t *testing.T) {
	var docs []models.RetrievedDocument
	for i := 0; i < 20; i++ {
		docs = append(docs, doc(fmt.Sprint(i), fmt.Sprintf("keep %02d", i)))
	}

	p := NewQueryPipeline(
		PipelineWithExternalRetriever(&stubRetriever{docs: docs}),
		PipelineWithScorer(&stubScorer{keep: "keep"}),
		PipelineWithGenerator(&stubAnswerGenerator{answer: "ok"}),
		PipelineWithGradeConcurrency(8),
	)

	state, err := p.Run(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, docs, state.Documents)
}

func TestQueryPipelineMisconfigured(t *testing.T) {
	_, err := NewQueryPipeline().Run(context.Background(), "q")
	assert.ErrorIs(t, err, ErrPipelineMisconfigured)
}

func TestBranchString(t *testing.T) {
	assert.Equal(t, "answer_only", BranchAnswerOnly.String())
	assert.Equal(t, "merge_internal", BranchMergeInternal.String())
}

func contents(docs []models.RetrievedDocument) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Content)
	}
	return out
}
