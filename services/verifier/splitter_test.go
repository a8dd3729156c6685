package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegexSplitter_BasicSplit(t *testing.T) {
	sentences := SplitterFor("xx", "unknown").Split("Erster Satz. Zweiter Satz! Dritter Satz?")

	require.Len(t, sentences, 3)
	assert.Equal(t, "Erster Satz.", sentences[0].Text)
	assert.Equal(t, "Zweiter Satz!", sentences[1].Text)
	assert.Equal(t, "Dritter Satz?", sentences[2].Text)
}

func TestRegexSplitter_AbbreviationsDoNotSplit(t *testing.T) {
	sentences := defaultSplitter.Split("Nach § 5 Abs. 2 gilt z.B. die Frist. Der Rest folgt.")

	require.Len(t, sentences, 2)
	assert.Contains(t, sentences[0].Text, "Abs. 2")
	assert.Contains(t, sentences[0].Text, "z.B.")
}

func TestRegexSplitter_DropsTinyFragments(t *testing.T) {
	sentences := defaultSplitter.Split("A. Dies ist ein vollständiger Satz.")

	require.Len(t, sentences, 1)
	assert.Equal(t, "Dies ist ein vollständiger Satz.", sentences[0].Text)
}

func TestRegexSplitter_OffsetsAreOrdered(t *testing.T) {
	sentences := defaultSplitter.Split("Eins zwei drei. Vier fünf sechs. Sieben acht.")

	require.Len(t, sentences, 3)
	last := 0
	for _, s := range sentences {
		assert.GreaterOrEqual(t, s.Start, last)
		assert.Greater(t, s.End, s.Start)
		last = s.End
	}
}

func TestRegexSplitter_CitationFlag(t *testing.T) {
	sentences := defaultSplitter.Split("Nach § 5 haftet der Mieter. Dies ist unstreitig.")

	require.Len(t, sentences, 2)
	assert.True(t, sentences[0].HasCitation)
	assert.False(t, sentences[1].HasCitation)
}

func TestRegexSplitter_CollapsesWhitespace(t *testing.T) {
	sentences := defaultSplitter.Split("  Viel   Raum\n\nhier.  ")

	require.Len(t, sentences, 1)
	assert.Equal(t, "Viel Raum hier.", sentences[0].Text)
}

type fixedSplitter struct{}

func (fixedSplitter) Split(text string) []Sentence {
	return []Sentence{{Text: text, Start: 0, End: len(text)}}
}

func TestSplitterRegistry(t *testing.T) {
	RegisterSplitter("en", "contracts", fixedSplitter{})

	assert.IsType(t, fixedSplitter{}, SplitterFor("en", "contracts"))
	assert.IsType(t, regexSplitter{}, SplitterFor("en", "torts"))
}
