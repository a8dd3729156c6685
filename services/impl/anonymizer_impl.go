package impl

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

const piiKeyPrefix = "pii:"

// placeholderRe matches the fixed placeholder scheme <KIND_n>.
var placeholderRe = regexp.MustCompile(`<[A-Z]+_\d+>`)

type anonymizerImpl struct {
	detector   services.PIIDetector
	kv         services.KVStore
	mappingTTL time.Duration
}

// NewAnonymizer creates the PII anonymization pipeline. Mappings live in the
// KV store under an ephemeral short-TTL key and are deleted after restore.
func NewAnonymizer(detector services.PIIDetector, kv services.KVStore, cfg *config.PIIConfig) services.Anonymizer {
	return &anonymizerImpl{
		detector:   detector,
		kv:         kv,
		mappingTTL: cfg.MappingTTL(),
	}
}

func piiKey(requestID string) string {
	return piiKeyPrefix + requestID
}

// Anonymize replaces detected PII spans left-to-right with placeholders of
// the form <KIND_n>. Identical values within a request share one placeholder;
// repeated calls with the same requestID (query, then context) extend the
// same mapping, so ordinals stay consistent across the whole request. A
// store failure is fatal for the request.
func (a *anonymizerImpl) Anonymize(ctx context.Context, text, requestID string) (string, map[string]string, error) {
	mapping, err := a.loadMapping(ctx, requestID)
	if err != nil {
		return "", nil, models.WrapError(models.KindInternal, "pii mapping store failure", err)
	}

	// Rebuild value→placeholder and per-kind counters from the existing
	// mapping so this call continues where the previous one stopped.
	valueToPlaceholder := make(map[string]string, len(mapping))
	kindCounters := make(map[string]int)
	for placeholder, value := range mapping {
		valueToPlaceholder[value] = placeholder
		kind, n := parsePlaceholder(placeholder)
		if n > kindCounters[kind] {
			kindCounters[kind] = n
		}
	}

	spans := a.detector.Detect(text)
	if len(spans) == 0 && len(mapping) == 0 {
		return text, map[string]string{}, nil
	}

	var b strings.Builder
	b.Grow(len(text))
	cursor := 0
	for _, span := range spans {
		b.WriteString(text[cursor:span.Start])

		placeholder, seen := valueToPlaceholder[span.Value]
		if !seen {
			kindCounters[span.Kind]++
			placeholder = fmt.Sprintf("<%s_%d>", span.Kind, kindCounters[span.Kind])
			valueToPlaceholder[span.Value] = placeholder
			mapping[placeholder] = span.Value
		}
		b.WriteString(placeholder)
		cursor = span.End
	}
	b.WriteString(text[cursor:])

	if err := a.storeMapping(ctx, requestID, mapping); err != nil {
		return "", nil, models.WrapError(models.KindInternal, "pii mapping store failure", err)
	}

	return b.String(), mapping, nil
}

// Deanonymize restores every placeholder from the stored mapping and deletes
// the mapping key. Placeholders without a mapping entry are left in place.
func (a *anonymizerImpl) Deanonymize(ctx context.Context, text, requestID string) (string, error) {
	data, ok, err := a.kv.Get(ctx, piiKey(requestID))
	if err != nil {
		return "", models.WrapError(models.KindInternal, "pii mapping store failure", err)
	}
	if !ok {
		return text, nil
	}

	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return "", fmt.Errorf("corrupt pii mapping for request %s: %w", requestID, err)
	}

	pairs := make([]string, 0, len(mapping)*2)
	for placeholder, value := range mapping {
		pairs = append(pairs, placeholder, value)
	}
	restored := strings.NewReplacer(pairs...).Replace(text)

	if err := a.kv.Del(ctx, piiKey(requestID)); err != nil {
		log.Printf("Warning: failed to delete pii mapping for request %s: %v", requestID, err)
	}

	return restored, nil
}

// VerifyNoLeakage re-runs detection on anonymized text. Placeholders are
// stripped first so their surroundings cannot produce false positives.
func (a *anonymizerImpl) VerifyNoLeakage(text string) bool {
	stripped := placeholderRe.ReplaceAllString(text, " ")
	return len(a.detector.Detect(stripped)) == 0
}

func (a *anonymizerImpl) loadMapping(ctx context.Context, requestID string) (map[string]string, error) {
	data, ok, err := a.kv.Get(ctx, piiKey(requestID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("corrupt pii mapping: %w", err)
	}
	return mapping, nil
}

func (a *anonymizerImpl) storeMapping(ctx context.Context, requestID string, mapping map[string]string) error {
	data, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal pii mapping: %w", err)
	}
	return a.kv.SetEx(ctx, piiKey(requestID), a.mappingTTL, data)
}

func parsePlaceholder(placeholder string) (string, int) {
	trimmed := strings.Trim(placeholder, "<>")
	idx := strings.LastIndex(trimmed, "_")
	if idx < 0 {
		return trimmed, 0
	}
	n, err := strconv.Atoi(trimmed[idx+1:])
	if err != nil {
		return trimmed[:idx], 0
	}
	return trimmed[:idx], n
}
