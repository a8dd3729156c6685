package impl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
)

func newTestChunker(maxSize, overlap int) *sectionChunker {
	return NewChunker(&config.ChunkingConfig{
		MaxChunkSize: maxSize,
		ChunkOverlap: overlap,
	}).(*sectionChunker)
}

func TestChunker_ShortSectionIsOneChunk(t *testing.T) {
	chunker := newTestChunker(1600, 100)

	sections := []models.Section{{
		ID:        "§ 1",
		Content:   "Kurzer Inhalt.",
		Level:     0,
		Position:  0,
		ChunkType: models.ChunkTypeSection,
	}}
	chunks := chunker.Chunk(sections, "doc-1")

	require.Len(t, chunks, 1)
	assert.Equal(t, "§ 1", chunks[0].SectionID)
	assert.Equal(t, "Kurzer Inhalt.", chunks[0].Content)
	assert.False(t, chunks[0].Metadata.IsSplit)
	assert.Nil(t, chunks[0].ParentID)
	assert.Equal(t, len("Kurzer Inhalt."), chunks[0].Metadata.CharCount)
	assert.Equal(t, 2, chunks[0].Metadata.WordCount)
}

func TestChunker_SplitWithOverlapAndSentenceSnap(t *testing.T) {
	chunker := newTestChunker(50, 10)

	content := "Sentence one. Sentence two. Sentence three. Sentence four."
	sections := []models.Section{{ID: "§ 2", Content: content, Position: 0}}
	chunks := chunker.Chunk(sections, "doc-1")

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 50)
		assert.NotEmpty(t, c.Content)
		assert.True(t, c.Metadata.IsSplit)
		assert.Equal(t, i, c.Metadata.SplitIndex)
		require.NotNil(t, c.ParentID)
		assert.Equal(t, "§ 2", *c.ParentID)
	}

	// Adjacent pieces overlap by at most the configured overlap; a sentence
	// snap may reduce it, never increase it.
	for i := 1; i < len(chunks); i++ {
		overlap := overlapLen(chunks[i-1].Content, chunks[i].Content)
		assert.LessOrEqual(t, overlap, 10)
		assert.Greater(t, overlap, 0)
	}

	// The first cut snapped back to a sentence boundary.
	assert.True(t, strings.HasSuffix(chunks[0].Content, ". "))
}

func TestChunker_SplitSectionIDsAndPositions(t *testing.T) {
	chunker := newTestChunker(50, 10)

	sections := []models.Section{
		{ID: "§ 1", Content: "Kurz.", Position: 0},
		{ID: "§ 2", Content: strings.Repeat("Viele Worte hier. ", 10), Position: 1},
	}
	chunks := chunker.Chunk(sections, "doc-1")

	require.Greater(t, len(chunks), 2)
	for i, c := range chunks {
		assert.Equal(t, i, c.Position)
	}
	assert.Equal(t, "§ 1", chunks[0].SectionID)
	assert.Equal(t, "§ 2_0", chunks[1].SectionID)
	assert.Equal(t, "§ 2_1", chunks[2].SectionID)
}

func TestChunker_ParentLinkFollowsSectionHierarchy(t *testing.T) {
	chunker := newTestChunker(1600, 100)

	parentPos := 0
	sections := []models.Section{
		{ID: "§ 5", Content: "Grundsatz.", Level: 0, Position: 0},
		{ID: "Absatz 1", Content: "Detail.", Level: 1, Position: 1, ParentPosition: &parentPos},
	}
	chunks := chunker.Chunk(sections, "doc-1")

	require.Len(t, chunks, 2)
	assert.Nil(t, chunks[0].ParentID)
	require.NotNil(t, chunks[1].ParentID)
	assert.Equal(t, "§ 5", *chunks[1].ParentID)
}

func TestChunker_ChunkIDsAreDeterministic(t *testing.T) {
	chunker := newTestChunker(1600, 100)

	sections := []models.Section{{ID: "§ 1", Content: "Inhalt.", Position: 0}}
	first := chunker.Chunk(sections, "doc-1")
	second := chunker.Chunk(sections, "doc-1")

	require.Len(t, first, 1)
	assert.Equal(t, first[0].ChunkID, second[0].ChunkID)
	assert.Len(t, first[0].ChunkID, 16)

	other := chunker.Chunk(sections, "doc-2")
	assert.NotEqual(t, first[0].ChunkID, other[0].ChunkID)
}

// overlapLen returns the length of the longest suffix of a that is a prefix
// of b.
func overlapLen(a, b string) int {
	max := len(a)
	if len(b) < max {
		max = len(b)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(a, b[:n]) {
			return n
		}
	}
	return 0
}
