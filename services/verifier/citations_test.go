package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCitationExtractor_DocumentOrder(t *testing.T) {
	extractor := NewCitationExtractor()

	citations := extractor.Extract("Gemäß Art. 14 GG und § 535 Abs. 1 BGB gilt dies nach Nr. 3.")
	assert.Equal(t, []string{"Art. 14 GG", "§ 535 Abs. 1 BGB", "Nr. 3"}, citations)
}

func TestCitationExtractor_OverlapPrefersLongerForm(t *testing.T) {
	extractor := NewCitationExtractor()

	// "Abs. 1" inside the §-reference must not appear as a second citation.
	citations := extractor.Extract("Nach § 5 Abs. 1 haftet der Mieter.")
	assert.Equal(t, []string{"§ 5 Abs. 1"}, citations)
}

func TestCitationExtractor_Deduplicates(t *testing.T) {
	extractor := NewCitationExtractor()

	citations := extractor.Extract("§ 5 gilt. Auch hier gilt § 5. Daneben § 6.")
	assert.Equal(t, []string{"§ 5", "§ 6"}, citations)
}

func TestCitationExtractor_Variants(t *testing.T) {
	extractor := NewCitationExtractor()

	cases := map[string]string{
		"Siehe Artikel 3 der Satzung.": "Artikel 3",
		"Laut Ziffer 4 des Vertrags.":  "Ziffer 4",
		"Vgl. lit. b der Anlage.":      "lit. b",
		"Nach Absatz 2 gilt dies.":     "Absatz 2",
	}
	for text, want := range cases {
		citations := extractor.Extract(text)
		assert.Contains(t, citations, want, "input %q", text)
	}
}

func TestCitationExtractor_NoCitations(t *testing.T) {
	extractor := NewCitationExtractor()

	assert.Empty(t, extractor.Extract("Der Mieter zahlt die Miete monatlich im Voraus."))
	assert.Empty(t, extractor.Extract(""))
}

func TestHasCitation(t *testing.T) {
	assert.True(t, hasCitation("Nach § 7 gilt die Frist."))
	assert.True(t, hasCitation("Gemäß Art. 2 ist dies zulässig."))
	assert.False(t, hasCitation("Ein gewöhnlicher Satz ohne Verweis."))
}
