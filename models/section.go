package models

// ChunkType classifies the structural level of a parsed section.
type ChunkType string

const (
	ChunkTypeSection    ChunkType = "section"
	ChunkTypeSubsection ChunkType = "subsection"
	ChunkTypeClause     ChunkType = "clause"
	ChunkTypeParagraph  ChunkType = "paragraph"
)

// Section is a parser-identified unit of a legal document, identified by a
// marker such as "§ 823" or "Absatz 2". Sections form a tree via
// ParentPosition; the parent is always an earlier section with a strictly
// lower level.
type Section struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Level          int       `json:"level"`
	Position       int       `json:"position"`
	ParentPosition *int      `json:"parent_position,omitempty"`
	ChunkType      ChunkType `json:"chunk_type"`
}
