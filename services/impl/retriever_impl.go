package impl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/lexrag-backend/config"
	"github.com/lexrag-backend/metrics"
	"github.com/lexrag-backend/models"
	"github.com/lexrag-backend/services"
)

const siblingTruncateLen = 200

type retrieverImpl struct {
	embedder    services.Embedder
	vectorStore services.VectorStore
	kv          services.KVStore
	retrieval   *config.RetrievalConfig
	cache       *config.CacheConfig
}

// NewRetriever creates the context-enriched retriever with a KV-backed query
// result cache.
func NewRetriever(embedder services.Embedder, vectorStore services.VectorStore, kv services.KVStore,
	retrieval *config.RetrievalConfig, cache *config.CacheConfig) services.Retriever {
	return &retrieverImpl{
		embedder:    embedder,
		vectorStore: vectorStore,
		kv:          kv,
		retrieval:   retrieval,
		cache:       cache,
	}
}

// HashQuery normalizes a query (trim, lowercase, collapse whitespace) and
// returns the first 16 hex chars of its SHA-256, so equivalent phrasings of
// the same question share a cache entry.
func HashQuery(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// cacheKey scopes an entry to document, query, parameters, and the embedding
// model version. A model upgrade therefore invalidates old entries implicitly.
func (r *retrieverImpl) cacheKey(query, docID string, topK int, matchThreshold float64) string {
	return fmt.Sprintf("query:%s:%s:%d:%.2f:%s",
		docID, HashQuery(query), topK, matchThreshold, r.embedder.ModelVersion())
}

// Retrieve answers a query against one document: embed, similarity search,
// then one batched context lookup to attach parents and siblings. Results are
// cached; cache failures degrade to a normal retrieval, never to an error.
func (r *retrieverImpl) Retrieve(ctx context.Context, query, docID string, topK int, matchThreshold float64) ([]models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.NewError(models.KindValidation, "query must not be empty")
	}
	if topK <= 0 {
		topK = r.retrieval.DefaultTopK
	}
	if topK > r.retrieval.MaxTopK {
		topK = r.retrieval.MaxTopK
	}
	if matchThreshold <= 0 {
		matchThreshold = r.retrieval.DefaultThreshold
	}

	key := r.cacheKey(query, docID, topK, matchThreshold)
	if r.cache.Enabled {
		if cached, ok := r.getCached(ctx, key); ok {
			metrics.QueryCacheHits.Inc()
			return cached, nil
		}
		metrics.QueryCacheMisses.Inc()
	}

	vector, err := r.embedder.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}

	matches, err := r.vectorStore.Match(ctx, vector, docID, matchThreshold, topK)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		// Empty results are never cached: the document may simply not be
		// indexed yet.
		return []models.RetrievalResult{}, nil
	}

	chunkIDs := make([]string, len(matches))
	for i, m := range matches {
		chunkIDs[i] = m.ChunkID
	}
	contexts, err := r.vectorStore.BatchContext(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}

	results := make([]models.RetrievalResult, len(matches))
	for i, m := range matches {
		results[i] = r.enrich(m, contexts[m.ChunkID])
	}

	if r.cache.Enabled {
		r.putCached(ctx, key, results)
	}
	return results, nil
}

// enrich attaches parent and sibling content to a match. Siblings exclude the
// chunk itself and its parent, and are capped at the configured maximum.
func (r *retrieverImpl) enrich(m models.Match, cc models.ChunkContext) models.RetrievalResult {
	result := models.RetrievalResult{
		ChunkID:         m.ChunkID,
		SectionID:       m.SectionID,
		Content:         m.Content,
		Similarity:      m.Similarity,
		SiblingContents: []string{},
	}

	parentID := ""
	if cc.Parent != nil {
		parentID = cc.Parent.ChunkID
		content := cc.Parent.Content
		result.ParentContent = &content
	}

	for _, sib := range cc.Siblings {
		if sib.ChunkID == m.ChunkID || (parentID != "" && sib.ChunkID == parentID) {
			continue
		}
		result.SiblingContents = append(result.SiblingContents, sib.Content)
		if len(result.SiblingContents) >= r.retrieval.MaxSiblings {
			break
		}
	}
	return result
}

// FormatContext renders results into the deterministic prompt block sent to
// the generative model. Sibling excerpts are truncated to keep prompts
// bounded.
func (r *retrieverImpl) FormatContext(results []models.RetrievalResult) string {
	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] Section %s (similarity %.2f)\n", i+1, res.SectionID, res.Similarity)
		if res.ParentContent != nil {
			fmt.Fprintf(&b, "Parent: %s\n", *res.ParentContent)
		}
		b.WriteString(res.Content)
		for _, sib := range res.SiblingContents {
			fmt.Fprintf(&b, "\nRelated: %s", truncate(sib, siblingTruncateLen))
		}
	}
	return b.String()
}

// InvalidateDocument drops every cached query result for a document. Called
// on re-index and delete.
func (r *retrieverImpl) InvalidateDocument(ctx context.Context, docID string) error {
	pattern := fmt.Sprintf("query:%s:*", docID)
	keys, err := r.kv.Keys(ctx, pattern)
	if err != nil {
		return fmt.Errorf("failed to scan cache keys for document %s: %w", docID, err)
	}
	if len(keys) == 0 {
		return nil
	}
	deleted, err := r.kv.DeleteMany(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to invalidate cache for document %s: %w", docID, err)
	}
	log.Printf("Invalidated %d cached queries for document %s", deleted, docID)
	return nil
}

func (r *retrieverImpl) getCached(ctx context.Context, key string) ([]models.RetrievalResult, bool) {
	data, ok, err := r.kv.Get(ctx, key)
	if err != nil {
		log.Printf("Warning: query cache read failed for %s: %v", key, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var results []models.RetrievalResult
	if err := json.Unmarshal(data, &results); err != nil {
		log.Printf("Warning: corrupt query cache entry %s, dropping: %v", key, err)
		if delErr := r.kv.Del(ctx, key); delErr != nil {
			log.Printf("Warning: failed to drop corrupt cache entry %s: %v", key, delErr)
		}
		return nil, false
	}
	return results, true
}

func (r *retrieverImpl) putCached(ctx context.Context, key string, results []models.RetrievalResult) {
	data, err := json.Marshal(results)
	if err != nil {
		log.Printf("Warning: failed to marshal query results for cache: %v", err)
		return
	}
	if err := r.kv.SetEx(ctx, key, r.cache.QueryResultsTTL(), data); err != nil {
		log.Printf("Warning: query cache write failed for %s: %v", key, err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
