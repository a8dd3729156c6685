package impl

import (
	"fmt"
	"strings"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

type sectionChunker struct {
	maxChunkSize int
	chunkOverlap int
}

// NewChunker creates a chunker producing size-bounded chunks with overlap.
func NewChunker(cfg *config.ChunkingConfig) services.Chunker {
	return &sectionChunker{
		maxChunkSize: cfg.MaxChunkSize,
		chunkOverlap: cfg.ChunkOverlap,
	}
}

// Chunk converts sections into embedding-ready chunks. Sections longer than
// MaxChunkSize are split with a sliding window; a cut landing inside a word
// snaps back to the last sentence boundary (". ") within the window. Split
// chunks carry the original section as parent and a monotonically increasing
// split index. Positions are unique per document, assigned in
// document-then-split order.
func (c *sectionChunker) Chunk(sections []models.Section, docID string) []models.Chunk {
	var chunks []models.Chunk
	position := 0

	for si := range sections {
		section := &sections[si]
		parentID := resolveParentID(sections, section)

		if len(section.Content) <= c.maxChunkSize {
			chunks = append(chunks, models.Chunk{
				ChunkID:   models.NewChunkID(docID, section.ID, 0),
				DocID:     docID,
				SectionID: section.ID,
				Content:   section.Content,
				Position:  position,
				ParentID:  parentID,
				Metadata: models.ChunkMetadata{
					CharCount: len(section.Content),
					WordCount: len(strings.Fields(section.Content)),
				},
			})
			position++
			continue
		}

		for _, piece := range c.split(section.Content) {
			splitSectionID := fmt.Sprintf("%s_%d", section.ID, piece.index)
			originalID := section.ID
			chunks = append(chunks, models.Chunk{
				ChunkID:   models.NewChunkID(docID, section.ID, piece.index),
				DocID:     docID,
				SectionID: splitSectionID,
				Content:   piece.content,
				Position:  position,
				ParentID:  &originalID,
				Metadata: models.ChunkMetadata{
					CharCount:  len(piece.content),
					WordCount:  len(strings.Fields(piece.content)),
					IsSplit:    true,
					SplitIndex: piece.index,
				},
			})
			position++
		}
	}

	return chunks
}

func resolveParentID(sections []models.Section, section *models.Section) *string {
	if section.ParentPosition == nil {
		return nil
	}
	for i := range sections {
		if sections[i].Position == *section.ParentPosition {
			id := sections[i].ID
			return &id
		}
	}
	return nil
}

type splitPiece struct {
	index   int
	content string
}

// split walks a sliding window of maxChunkSize with chunkOverlap. When a cut
// lands mid-word, it snaps back to the last ". " inside the current window;
// with no sentence boundary the raw cut stands. The snap may reduce the
// overlap between adjacent pieces but never increase it.
func (c *sectionChunker) split(content string) []splitPiece {
	var pieces []splitPiece
	start := 0
	index := 0

	for start < len(content) {
		end := start + c.maxChunkSize
		if end >= len(content) {
			end = len(content)
		} else if insideWord(content, end) {
			if boundary := strings.LastIndex(content[start:end], ". "); boundary > 0 {
				end = start + boundary + 2
			}
		}

		pieces = append(pieces, splitPiece{index: index, content: content[start:end]})
		index++

		if end == len(content) {
			break
		}
		next := end - c.chunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return pieces
}

// insideWord reports whether cutting at offset would break a word in two.
func insideWord(s string, offset int) bool {
	if offset <= 0 || offset >= len(s) {
		return false
	}
	return !isSpace(s[offset-1]) && !isSpace(s[offset])
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t'
}
