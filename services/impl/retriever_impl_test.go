package impl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type stubEmbedder struct {
	embedOneCalls   int
	embedBatchCalls int
}

func (s *stubEmbedder) Dim() int             { return 3 }
func (s *stubEmbedder) ModelVersion() string { return "test-embed-v1" }

func (s *stubEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	s.embedOneCalls++
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.embedBatchCalls++
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

type stubVectorStore struct {
	matchCalls        int
	batchContextCalls int
	matches           []models.Match
	contexts          map[string]models.ChunkContext
}

func (s *stubVectorStore) CreateCollection(ctx context.Context, dim int, recreate bool) error {
	return nil
}

func (s *stubVectorStore) Upsert(ctx context.Context, points []models.VectorPoint) error {
	return nil
}

func (s *stubVectorStore) Match(ctx context.Context, vector []float32, docID string, minSimilarity float64, k int) ([]models.Match, error) {
	s.matchCalls++
	return s.matches, nil
}

func (s *stubVectorStore) BatchContext(ctx context.Context, chunkIDs []string) (map[string]models.ChunkContext, error) {
	s.batchContextCalls++
	return s.contexts, nil
}

func (s *stubVectorStore) DeleteByDocID(ctx context.Context, docID string) error {
	return nil
}

func setupTestRetriever(t *testing.T, store *stubVectorStore) (services.Retriever, *stubEmbedder, func()) {
	kv, _, cleanup := setupTestKV(t)
	embedder := &stubEmbedder{}
	retriever := NewRetriever(embedder, store, kv,
		&config.RetrievalConfig{DefaultTopK: 5, MaxTopK: 20, DefaultThreshold: 0.7, MaxSiblings: 3},
		&config.CacheConfig{Enabled: true, QueryResultsTTLSec: 3600},
	)
	return retriever, embedder, cleanup
}

func threeMatches() *stubVectorStore {
	return &stubVectorStore{
		matches: []models.Match{
			{ChunkID: "c1", SectionID: "§ 1", Content: "Erster Treffer.", Similarity: 0.95},
			{ChunkID: "c2", SectionID: "§ 2", Content: "Zweiter Treffer.", Similarity: 0.89},
			{ChunkID: "c3", SectionID: "§ 3", Content: "Dritter Treffer.", Similarity: 0.82},
		},
		contexts: map[string]models.ChunkContext{
			"c1": {
				Parent: &models.ContextChunk{ChunkID: "p1", SectionID: "§ 1", Content: "Elterntext."},
				Siblings: []models.ContextChunk{
					{ChunkID: "c1", Content: "Erster Treffer."},
					{ChunkID: "p1", Content: "Elterntext."},
					{ChunkID: "s1", Content: "Geschwister eins."},
					{ChunkID: "s2", Content: "Geschwister zwei."},
					{ChunkID: "s3", Content: "Geschwister drei."},
					{ChunkID: "s4", Content: "Geschwister vier."},
				},
			},
		},
	}
}

func TestRetriever_SingleBatchContextCall(t *testing.T) {
	store := threeMatches()
	retriever, embedder, cleanup := setupTestRetriever(t, store)
	defer cleanup()

	results, err := retriever.Retrieve(context.Background(), "Wer haftet?", "doc-1", 5, 0.7)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, 1, embedder.embedOneCalls)
	assert.Equal(t, 1, store.matchCalls)
	assert.Equal(t, 1, store.batchContextCalls)
}

func TestRetriever_SecondCallHitsCache(t *testing.T) {
	store := threeMatches()
	retriever, embedder, cleanup := setupTestRetriever(t, store)
	defer cleanup()
	ctx := context.Background()

	first, err := retriever.Retrieve(ctx, "Wer haftet?", "doc-1", 5, 0.7)
	require.NoError(t, err)

	second, err := retriever.Retrieve(ctx, "Wer haftet?", "doc-1", 5, 0.7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.embedOneCalls)
	assert.Equal(t, 1, store.matchCalls)
	assert.Equal(t, 1, store.batchContextCalls)
}

func TestRetriever_NormalizedQuerySharesCacheEntry(t *testing.T) {
	store := threeMatches()
	retriever, embedder, cleanup := setupTestRetriever(t, store)
	defer cleanup()
	ctx := context.Background()

	_, err := retriever.Retrieve(ctx, "Wer haftet?", "doc-1", 5, 0.7)
	require.NoError(t, err)
	_, err = retriever.Retrieve(ctx, "  WER   haftet? ", "doc-1", 5, 0.7)
	require.NoError(t, err)

	assert.Equal(t, 1, embedder.embedOneCalls)
}

func TestRetriever_EmptyResultsAreNotCached(t *testing.T) {
	store := &stubVectorStore{}
	retriever, embedder, cleanup := setupTestRetriever(t, store)
	defer cleanup()
	ctx := context.Background()

	results, err := retriever.Retrieve(ctx, "Nichts dazu", "doc-1", 5, 0.7)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Zero(t, store.batchContextCalls)

	_, err = retriever.Retrieve(ctx, "Nichts dazu", "doc-1", 5, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 2, embedder.embedOneCalls)
	assert.Equal(t, 2, store.matchCalls)
}

func TestRetriever_SiblingsExcludeSelfAndParentAndAreCapped(t *testing.T) {
	store := threeMatches()
	retriever, _, cleanup := setupTestRetriever(t, store)
	defer cleanup()

	results, err := retriever.Retrieve(context.Background(), "Wer haftet?", "doc-1", 5, 0.7)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	first := results[0]
	require.NotNil(t, first.ParentContent)
	assert.Equal(t, "Elterntext.", *first.ParentContent)
	assert.Equal(t, []string{"Geschwister eins.", "Geschwister zwei.", "Geschwister drei."}, first.SiblingContents)
}

func TestRetriever_EmptyQueryRejected(t *testing.T) {
	retriever, _, cleanup := setupTestRetriever(t, &stubVectorStore{})
	defer cleanup()

	_, err := retriever.Retrieve(context.Background(), "   ", "doc-1", 5, 0.7)
	require.Error(t, err)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
}

func TestRetriever_InvalidateDocumentDropsOnlyThatDocument(t *testing.T) {
	store := threeMatches()
	retriever, embedder, cleanup := setupTestRetriever(t, store)
	defer cleanup()
	ctx := context.Background()

	_, err := retriever.Retrieve(ctx, "Frage A", "doc-1", 5, 0.7)
	require.NoError(t, err)
	_, err = retriever.Retrieve(ctx, "Frage B", "doc-2", 5, 0.7)
	require.NoError(t, err)

	require.NoError(t, retriever.InvalidateDocument(ctx, "doc-1"))

	// doc-1 re-fetches, doc-2 still cached.
	_, err = retriever.Retrieve(ctx, "Frage A", "doc-1", 5, 0.7)
	require.NoError(t, err)
	_, err = retriever.Retrieve(ctx, "Frage B", "doc-2", 5, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 3, embedder.embedOneCalls)
}

func TestHashQuery_Normalization(t *testing.T) {
	assert.Equal(t, HashQuery("Wer haftet?"), HashQuery("  wer   HAFTET?  "))
	assert.NotEqual(t, HashQuery("Wer haftet?"), HashQuery("Wer zahlt?"))
	assert.Len(t, HashQuery("x"), 16)
}
