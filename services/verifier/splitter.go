package verifier

import (
	"regexp"
	"strings"
)

// Sentence is one split unit with its offsets in the normalized answer text.
type Sentence struct {
	Text        string
	Start       int
	End         int
	HasCitation bool
}

// SentenceSplitter produces sentences with offsets from an answer text.
// Implementations are registered per language and domain; callers fall back
// to the regex splitter when no registered splitter matches.
type SentenceSplitter interface {
	Split(text string) []Sentence
}

type splitterKey struct {
	language string
	domain   string
}

var splitterRegistry = map[splitterKey]SentenceSplitter{}

// RegisterSplitter installs a splitter for a language/domain pair. Later
// registrations replace earlier ones.
func RegisterSplitter(language, domain string, s SentenceSplitter) {
	splitterRegistry[splitterKey{language, domain}] = s
}

// SplitterFor returns the registered splitter for the pair, or the
// deterministic regex fallback.
func SplitterFor(language, domain string) SentenceSplitter {
	if s, ok := splitterRegistry[splitterKey{language, domain}]; ok {
		return s
	}
	return defaultSplitter
}

const minSentenceLen = 3

// Abbreviations that end with a period but do not terminate a sentence.
// They are masked before splitting and restored afterwards.
var abbreviations = []string{
	"Abs.", "Art.", "Nr.", "Ziff.", "lit.", "Buchst.", "bzw.", "ggf.",
	"i.V.m.", "u.a.", "z.B.", "vgl.", "etc.", "Dr.", "Prof.",
	"e.g.", "i.e.", "cf.", "No.", "para.",
}

var (
	sentenceEndRe = regexp.MustCompile(`[.!?]+\s+`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

type regexSplitter struct{}

var defaultSplitter SentenceSplitter = regexSplitter{}

// Split breaks text on sentence-terminal punctuation followed by whitespace.
// Abbreviation periods are protected, whitespace is collapsed first, and
// fragments shorter than three characters are dropped.
func (regexSplitter) Split(text string) []Sentence {
	normalized := whitespaceRe.ReplaceAllString(strings.TrimSpace(text), " ")
	if normalized == "" {
		return nil
	}

	masked := normalized
	for _, abbr := range abbreviations {
		safe := strings.ReplaceAll(abbr, ".", "\x00")
		masked = strings.ReplaceAll(masked, abbr, safe)
	}

	var sentences []Sentence
	start := 0
	for _, loc := range sentenceEndRe.FindAllStringIndex(masked, -1) {
		raw := masked[start:loc[0]] + strings.TrimRight(masked[loc[0]:loc[1]], " \t")
		appendSentence(&sentences, raw, start)
		start = loc[1]
	}
	if start < len(masked) {
		appendSentence(&sentences, masked[start:], start)
	}
	return sentences
}

func appendSentence(sentences *[]Sentence, masked string, start int) {
	text := strings.TrimSpace(strings.ReplaceAll(masked, "\x00", "."))
	if len(text) < minSentenceLen {
		return
	}
	*sentences = append(*sentences, Sentence{
		Text:        text,
		Start:       start,
		End:         start + len(masked),
		HasCitation: hasCitation(text),
	})
}
