package impl

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

// piiPattern pairs a compiled regex with the PII kind it detects. Patterns
// are ordered by specificity; when two matches overlap, the earlier table
// entry wins.
type piiPattern struct {
	re   *regexp.Regexp
	kind string
}

// PII kinds emitted by the default detector. Placeholders are built from
// these names, so they must never themselves look like PII.
const (
	PIIKindEmail   = "EMAIL"
	PIIKindIBAN    = "IBAN"
	PIIKindPhone   = "PHONE"
	PIIKindAddress = "ADDRESS"
	PIIKindPerson  = "PERSON"
)

var piiPatterns = []piiPattern{
	{regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`), PIIKindEmail},
	{regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{12,30}\b`), PIIKindIBAN},
	{regexp.MustCompile(`(?:\+\d{1,3}[ \-]?)?(?:\(0\)[ \-]?)?\d{3,5}[ /\-]\d{5,9}\b`), PIIKindPhone},
	{regexp.MustCompile(`\b[A-ZÄÖÜ][a-zäöüß]+(?:straße|strasse|weg|platz|allee|gasse)\s+\d+[a-z]?\b`), PIIKindAddress},
	{regexp.MustCompile(`\b[A-ZÄÖÜ][a-zäöüß]+\s+[A-ZÄÖÜ][a-zäöüß]+(?:-[A-ZÄÖÜ][a-zäöüß]+)?\b`), PIIKindPerson},
}

// German capitalizes every noun, so two adjacent capitalized words are often
// ordinary prose. Candidate person spans starting with one of these words are
// discarded.
var personStopwords = map[string]bool{
	"Der": true, "Die": true, "Das": true, "Den": true, "Dem": true, "Des": true,
	"Ein": true, "Eine": true, "Einer": true, "Eines": true, "Einem": true, "Einen": true,
	"Im": true, "Am": true, "Zum": true, "Zur": true, "Vom": true, "Beim": true,
	"Nach": true, "Gegen": true, "Diese": true, "Dieser": true, "Dieses": true,
	"Keine": true, "Jede": true, "Jeder": true, "Alle": true,
}

type regexPIIDetector struct{}

// NewPIIDetector creates the default regex-based PII detector. It is
// deliberately conservative; deployments with stricter requirements plug in
// an NER-backed implementation of the same interface.
func NewPIIDetector() services.PIIDetector {
	return &regexPIIDetector{}
}

// Detect returns all PII spans in document order. Overlapping candidates are
// resolved by pattern specificity, so spans never overlap.
func (d *regexPIIDetector) Detect(text string) []models.PIISpan {
	type candidate struct {
		span  models.PIISpan
		order int
	}
	var candidates []candidate

	for order, p := range piiPatterns {
		for _, loc := range p.re.FindAllStringIndex(text, -1) {
			if p.kind == PIIKindPerson {
				first, _, _ := strings.Cut(text[loc[0]:loc[1]], " ")
				if personStopwords[first] {
					continue
				}
			}
			candidates = append(candidates, candidate{
				span: models.PIISpan{
					Start: loc[0],
					End:   loc[1],
					Kind:  p.kind,
					Value: text[loc[0]:loc[1]],
				},
				order: order,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].span.Start != candidates[j].span.Start {
			return candidates[i].span.Start < candidates[j].span.Start
		}
		return candidates[i].order < candidates[j].order
	})

	var spans []models.PIISpan
	lastEnd := 0
	for _, c := range candidates {
		if c.span.Start < lastEnd {
			continue
		}
		spans = append(spans, c.span)
		lastEnd = c.span.End
	}
	return spans
}
