package verifier

import (
	"regexp"
	"sort"
)

// CitationExtractor recognizes legal citations in prose. Pluggable per
// domain; the default covers German and generic statute references.
type CitationExtractor interface {
	Extract(text string) []string
}

var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`§+\s*\d+[a-z]?(?:\s+Abs\.\s*\d+)?(?:\s+(?:Satz|S\.)\s*\d+)?(?:\s+[A-ZÄÖÜ][A-Za-zÄÖÜäöüß]*)?`),
	regexp.MustCompile(`\b(?:Artikel|Art\.)\s+\d+[a-z]?(?:\s+Abs\.\s*\d+)?(?:\s+[A-ZÄÖÜ][A-Za-zÄÖÜäöüß]*)?`),
	regexp.MustCompile(`\b(?:Absatz|Abs\.)\s*\d+[a-z]?`),
	regexp.MustCompile(`\b(?:Ziffer|Ziff\.|Nummer|Nr\.)\s*\d+[a-z]?`),
	regexp.MustCompile(`\b(?:Buchstabe|lit\.)\s*[a-z]\b`),
}

type defaultCitationExtractor struct{}

// NewCitationExtractor returns the default legal citation extractor.
func NewCitationExtractor() CitationExtractor {
	return defaultCitationExtractor{}
}

// Extract returns citations in document order, deduplicated on first
// occurrence. When patterns overlap, the earlier (more specific) table entry
// wins.
func (defaultCitationExtractor) Extract(text string) []string {
	type hit struct {
		start, end, order int
		text              string
	}
	var hits []hit
	for order, re := range citationPatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			hits = append(hits, hit{start: loc[0], end: loc[1], order: order, text: text[loc[0]:loc[1]]})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].start != hits[j].start {
			return hits[i].start < hits[j].start
		}
		return hits[i].order < hits[j].order
	})

	seen := make(map[string]bool, len(hits))
	var citations []string
	lastEnd := 0
	for _, h := range hits {
		if h.start < lastEnd {
			continue
		}
		lastEnd = h.end
		if !seen[h.text] {
			seen[h.text] = true
			citations = append(citations, h.text)
		}
	}
	return citations
}

func hasCitation(text string) bool {
	for _, re := range citationPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
