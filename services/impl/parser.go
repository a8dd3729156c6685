package impl

import (
	"regexp"
	"sort"
	"strings"

	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

// sectionMarker pairs a compiled marker regex with the structural level it
// introduces. The table is ordered; when two markers match at the same
// offset, the earlier table entry wins.
type sectionMarker struct {
	re        *regexp.Regexp
	chunkType models.ChunkType
	level     int
}

var markerTable = []sectionMarker{
	// Top level: paragraphs and articles.
	{regexp.MustCompile(`(?i)§\s*\d+(?:\.\d+)?[a-z]?`), models.ChunkTypeSection, 0},
	{regexp.MustCompile(`(?i)\bArtikel\s+\d+[a-z]?`), models.ChunkTypeSection, 0},
	{regexp.MustCompile(`(?i)\bArt\.\s*\d+[a-z]?`), models.ChunkTypeSection, 0},
	// Subsections.
	{regexp.MustCompile(`(?i)\bAbsatz\s+\d+`), models.ChunkTypeSubsection, 1},
	{regexp.MustCompile(`(?i)\bAbs\.\s*\d+`), models.ChunkTypeSubsection, 1},
	// Clauses.
	{regexp.MustCompile(`(?i)\bZiffer\s+\d+`), models.ChunkTypeClause, 2},
	{regexp.MustCompile(`(?i)\bZiff\.\s*\d+`), models.ChunkTypeClause, 2},
	{regexp.MustCompile(`(?i)\bNummer\s+\d+`), models.ChunkTypeClause, 2},
	{regexp.MustCompile(`(?i)\bNr\.\s*\d+`), models.ChunkTypeClause, 2},
	// Sub-clauses.
	{regexp.MustCompile(`(?i)\bBuchstabe\s+[a-z]\b`), models.ChunkTypeParagraph, 3},
	{regexp.MustCompile(`(?i)\blit\.\s*[a-z]\b`), models.ChunkTypeParagraph, 3},
	{regexp.MustCompile(`\([a-z]\)`), models.ChunkTypeParagraph, 3},
}

var (
	pageHeaderRe = regexp.MustCompile(`(?i)\bSeite\s+\d+\s+von\s+\d+\b`)
	pageOfRe     = regexp.MustCompile(`(?i)\bpage\s+\d+\s+of\s+\d+\b`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

type legalParser struct{}

// NewParser creates the hierarchical legal-text parser.
func NewParser() services.Parser {
	return &legalParser{}
}

// NormalizeText collapses whitespace runs, drops page-header artifacts and
// canonicalizes line endings. Exposed for the ingestion normalize stage.
func NormalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = pageHeaderRe.ReplaceAllString(text, " ")
	text = pageOfRe.ReplaceAllString(text, " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = blankLinesRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type markerMatch struct {
	start     int
	end       int
	id        string
	chunkType models.ChunkType
	level     int
	order     int // table index, used to break ties at the same offset
}

func findMarkers(text string) []markerMatch {
	var matches []markerMatch
	for order, m := range markerTable {
		for _, loc := range m.re.FindAllStringIndex(text, -1) {
			matches = append(matches, markerMatch{
				start:     loc[0],
				end:       loc[1],
				id:        normalizeMarkerID(text[loc[0]:loc[1]]),
				chunkType: m.chunkType,
				level:     m.level,
				order:     order,
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].start != matches[j].start {
			return matches[i].start < matches[j].start
		}
		return matches[i].order < matches[j].order
	})

	// Drop duplicate matches at the same offset (two patterns hitting the
	// same marker text).
	deduped := matches[:0]
	lastStart := -1
	for _, m := range matches {
		if m.start == lastStart {
			continue
		}
		deduped = append(deduped, m)
		lastStart = m.start
	}
	return deduped
}

func normalizeMarkerID(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// Parse converts raw text into an ordered section list with parent links.
// Malformed text never fails: when no markers are found the whole input
// becomes a single level-0 section.
func (p *legalParser) Parse(text string) []models.Section {
	text = NormalizeText(text)
	if text == "" {
		return []models.Section{}
	}

	markers := findMarkers(text)
	if len(markers) == 0 {
		return []models.Section{{
			ID:        "document",
			Content:   text,
			Level:     0,
			Position:  0,
			ChunkType: models.ChunkTypeSection,
		}}
	}

	var sections []models.Section
	position := 0
	for i, m := range markers {
		bodyEnd := len(text)
		if i+1 < len(markers) {
			bodyEnd = markers[i+1].start
		}
		body := strings.TrimSpace(text[m.end:bodyEnd])
		if body == "" {
			continue
		}
		sections = append(sections, models.Section{
			ID:        m.id,
			Content:   body,
			Level:     m.level,
			Position:  position,
			ChunkType: m.chunkType,
		})
		position++
	}

	if len(sections) == 0 {
		return []models.Section{{
			ID:        "document",
			Content:   text,
			Level:     0,
			Position:  0,
			ChunkType: models.ChunkTypeSection,
		}}
	}

	buildHierarchy(sections)
	return sections
}

// buildHierarchy links each section to the nearest earlier section with a
// strictly lower level. Level-0 sections and ties at the same level carry no
// parent link.
func buildHierarchy(sections []models.Section) {
	for i := range sections {
		for j := i - 1; j >= 0; j-- {
			if sections[j].Level < sections[i].Level {
				parent := sections[j].Position
				sections[i].ParentPosition = &parent
				break
			}
		}
	}
}

// ExtractSectionIDs returns the unique marker strings found in text, in
// order of first occurrence. Used by citation matching.
func (p *legalParser) ExtractSectionIDs(text string) []string {
	markers := findMarkers(NormalizeText(text))
	seen := make(map[string]bool, len(markers))
	var ids []string
	for _, m := range markers {
		if seen[m.id] {
			continue
		}
		seen[m.id] = true
		ids = append(ids, m.id)
	}
	return ids
}
