package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campusbrain/backend/internal/vector/milvus"
	"github.com/campusbrain/backend/pkg/apperr"
)

type fakeEmbedder struct {
	vector []float32
	err    error
	calls  int
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vector, f.err
}

type fakeSearcher struct {
	passages []milvus.Passage
	err      error

	gotVector []float32
	gotCohort string
	gotTopK   int
}

func (f *fakeSearcher) Search(ctx context.Context, vector []float32, cohort string, topK int) ([]milvus.Passage, error) {
	f.gotVector = vector
	f.gotCohort = cohort
	f.gotTopK = topK
	return f.passages, f.err
}

func TestRetrieveOrdersByScoreDescending(t *testing.T) {
	store := &fakeSearcher{passages: []milvus.Passage{
		{RecordID: "f:0", Score: 0.42, Seq: 0},
		{RecordID: "f:1", Score: 0.91, Seq: 1},
		{RecordID: "f:2", Score: 0.77, Seq: 2},
	}}
	engine := NewEngine(&fakeEmbedder{vector: []float32{0.1}}, store, 5, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), "when are internals", "3", 5)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "f:1", got[0].RecordID)
	assert.Equal(t, "f:2", got[1].RecordID)
	assert.Equal(t, "f:0", got[2].RecordID)
}

func TestRetrieveBreaksTiesBySeq(t *testing.T) {
	store := &fakeSearcher{passages: []milvus.Passage{
		{RecordID: "f:7", Score: 0.5, Seq: 7},
		{RecordID: "f:2", Score: 0.5, Seq: 2},
		{RecordID: "f:4", Score: 0.5, Seq: 4},
	}}
	engine := NewEngine(&fakeEmbedder{vector: []float32{0.1}}, store, 5, zap.NewNop())

	got, err := engine.Retrieve(context.Background(), "q", "1", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got[0].Seq)
	assert.Equal(t, int64(4), got[1].Seq)
	assert.Equal(t, int64(7), got[2].Seq)
}

func TestRetrievePassesCohortAndVectorThrough(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.3, 0.4}}
	store := &fakeSearcher{}
	engine := NewEngine(embedder, store, 5, zap.NewNop())

	_, err := engine.Retrieve(context.Background(), "q", "2", 7)
	require.NoError(t, err)
	assert.Equal(t, "2", store.gotCohort)
	assert.Equal(t, []float32{0.3, 0.4}, store.gotVector)
	assert.Equal(t, 7, store.gotTopK)
}

func TestRetrieveDefaultsTopK(t *testing.T) {
	store := &fakeSearcher{}
	engine := NewEngine(&fakeEmbedder{vector: []float32{0.1}}, store, 5, zap.NewNop())

	_, err := engine.Retrieve(context.Background(), "q", "1", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, store.gotTopK)

	_, err = engine.Retrieve(context.Background(), "q", "1", -3)
	require.NoError(t, err)
	assert.Equal(t, 5, store.gotTopK)
}

func TestRetrieveRejectsEmptyInput(t *testing.T) {
	engine := NewEngine(&fakeEmbedder{}, &fakeSearcher{}, 5, zap.NewNop())

	_, err := engine.Retrieve(context.Background(), "", "1", 5)
	assert.True(t, apperr.IsInvalidInput(err))

	_, err = engine.Retrieve(context.Background(), "q", "", 5)
	assert.True(t, apperr.IsInvalidInput(err))
}

func TestRetrievePropagatesErrors(t *testing.T) {
	embedErr := apperr.Throttled("embed", errors.New("429"))
	engine := NewEngine(&fakeEmbedder{err: embedErr}, &fakeSearcher{}, 5, zap.NewNop())

	_, err := engine.Retrieve(context.Background(), "q", "1", 5)
	assert.True(t, apperr.IsThrottled(err))
}

func TestRetrieveNeverCaches(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	engine := NewEngine(embedder, &fakeSearcher{}, 5, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := engine.Retrieve(context.Background(), "same question", "1", 5)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, embedder.calls)
}
