package models

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// ChunkMetadata carries per-chunk statistics and split bookkeeping.
type ChunkMetadata struct {
	CharCount  int  `json:"char_count"`
	WordCount  int  `json:"word_count"`
	IsSplit    bool `json:"is_split,omitempty"`
	SplitIndex int  `json:"split_index,omitempty"`
}

// Chunk is a contiguous slice of a section sized for embedding. Chunks are
// immutable once created; a re-index replaces them by DocID.
type Chunk struct {
	ChunkID   string        `json:"chunk_id"`
	DocID     string        `json:"doc_id"`
	SectionID string        `json:"section_id"`
	Content   string        `json:"content"`
	Position  int           `json:"position"`
	ParentID  *string       `json:"parent_id,omitempty"`
	Metadata  ChunkMetadata `json:"metadata"`
	Embedding []float32     `json:"embedding,omitempty"`
}

// NewChunkID derives the stable chunk identifier from the document, section
// and split index. The same inputs always produce the same ID.
func NewChunkID(docID, sectionID string, splitIndex int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%d", docID, sectionID, splitIndex)))
	return hex.EncodeToString(sum[:])[:16]
}

// NumericVectorID maps a chunk ID to the stable numeric ID used by the
// vector store: the first 16 hex chars of md5(chunkID), read as an unsigned
// integer. Collision-resistant across independent ingestion runs.
func NumericVectorID(chunkID string) int64 {
	sum := md5.Sum([]byte(chunkID))
	n, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:16], 16, 64)
	return int64(n)
}

// VectorPoint pairs a chunk payload with its embedding and the numeric ID
// used by the vector store.
type VectorPoint struct {
	NumericID int64     `json:"numeric_id"`
	Chunk     Chunk     `json:"chunk"`
	Vector    []float32 `json:"vector"`
}
