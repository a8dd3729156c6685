package impl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/models"
)

func TestParser_SectionHierarchy(t *testing.T) {
	parser := NewParser()

	sections := parser.Parse("§ 5 Text A. Absatz 1 Text B. § 6 Text C.")

	require.Len(t, sections, 3)

	assert.Equal(t, "§ 5", sections[0].ID)
	assert.Equal(t, "Text A.", sections[0].Content)
	assert.Equal(t, 0, sections[0].Level)
	assert.Nil(t, sections[0].ParentPosition)

	assert.Equal(t, "Absatz 1", sections[1].ID)
	assert.Equal(t, "Text B.", sections[1].Content)
	assert.Equal(t, 1, sections[1].Level)
	require.NotNil(t, sections[1].ParentPosition)
	assert.Equal(t, 0, *sections[1].ParentPosition)

	assert.Equal(t, "§ 6", sections[2].ID)
	assert.Equal(t, "Text C.", sections[2].Content)
	assert.Equal(t, 0, sections[2].Level)
	assert.Nil(t, sections[2].ParentPosition)
}

func TestParser_ParentAlwaysLowerLevelAndEarlier(t *testing.T) {
	parser := NewParser()

	text := "§ 1 Grundsatz. Absatz 1 Erstens. Ziffer 1 Im Einzelnen. Absatz 2 Zweitens. § 2 Schluss."
	sections := parser.Parse(text)
	require.NotEmpty(t, sections)

	for _, s := range sections {
		if s.ParentPosition == nil {
			continue
		}
		p := *s.ParentPosition
		assert.Less(t, p, s.Position)
		assert.Less(t, sections[p].Level, s.Level)
	}
}

func TestParser_NoMarkersFallsBackToSingleSection(t *testing.T) {
	parser := NewParser()

	sections := parser.Parse("Dieser Vertrag regelt die Zusammenarbeit der Parteien.")

	require.Len(t, sections, 1)
	assert.Equal(t, "document", sections[0].ID)
	assert.Equal(t, 0, sections[0].Level)
	assert.Equal(t, models.ChunkTypeSection, sections[0].ChunkType)
	assert.Nil(t, sections[0].ParentPosition)
}

func TestParser_EmptyInput(t *testing.T) {
	parser := NewParser()

	assert.Empty(t, parser.Parse(""))
	assert.Empty(t, parser.Parse("   \n\n  "))
}

func TestParser_DropsEmptyBodiesAndKeepsPositionsSequential(t *testing.T) {
	parser := NewParser()

	// § 7 has no body before Absatz 1 starts.
	sections := parser.Parse("§ 7 Absatz 1 Inhalt des Absatzes. § 8 Weiterer Text.")

	for i, s := range sections {
		assert.Equal(t, i, s.Position)
		assert.NotEmpty(t, s.Content)
	}
}

func TestNormalizeText_StripsPageHeaders(t *testing.T) {
	in := "Erster Teil\r\nSeite 2 von 10\r\nZweiter   Teil"
	out := NormalizeText(in)

	assert.NotContains(t, out, "Seite 2 von 10")
	assert.NotContains(t, out, "\r")
	assert.NotContains(t, out, "  ")
}

func TestParser_ExtractSectionIDs(t *testing.T) {
	parser := NewParser()

	ids := parser.ExtractSectionIDs("Nach § 5 und Absatz 1 gilt § 5 entsprechend, vgl. § 6.")

	assert.Equal(t, []string{"§ 5", "Absatz 1", "§ 6"}, ids)
}
