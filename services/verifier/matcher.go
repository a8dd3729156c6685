package verifier

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"math"
	"sync"

	"github.com/lexrag-backend/services"
)

// SemanticMatcher scores sentences against source snippets by embedding
// cosine similarity. Source embeddings are cached in a bounded LRU keyed by a
// 16-char text hash, so verifying N sentences against K sources costs N query
// embeds plus at most K source embeds per batch.
type SemanticMatcher struct {
	embedder services.Embedder

	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cacheEntry struct {
	key    string
	vector []float32
}

// NewSemanticMatcher creates a matcher with an embedding cache of the given
// capacity. Capacity below 1 disables caching.
func NewSemanticMatcher(embedder services.Embedder, cacheSize int) *SemanticMatcher {
	return &SemanticMatcher{
		embedder: embedder,
		capacity: cacheSize,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

func embedKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:16]
}

// SourceVectors embeds all source texts, serving repeats from the cache.
// Order follows the input.
func (m *SemanticMatcher) SourceVectors(ctx context.Context, sources []string) ([][]float32, error) {
	vectors := make([][]float32, len(sources))
	var missing []int
	for i, src := range sources {
		if v, ok := m.get(embedKey(src)); ok {
			vectors[i] = v
		} else {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	texts := make([]string, len(missing))
	for i, idx := range missing {
		texts[i] = sources[idx]
	}
	embedded, err := m.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i, idx := range missing {
		vectors[idx] = embedded[i]
		m.put(embedKey(sources[idx]), embedded[i])
	}
	return vectors, nil
}

// BestScore embeds the sentence and returns its highest cosine similarity
// against the pre-embedded sources.
func (m *SemanticMatcher) BestScore(ctx context.Context, sentence string, sourceVectors [][]float32) (float64, error) {
	key := embedKey(sentence)
	vector, ok := m.get(key)
	if !ok {
		var err error
		vector, err = m.embedder.EmbedOne(ctx, sentence)
		if err != nil {
			return 0, err
		}
		m.put(key, vector)
	}

	best := 0.0
	for _, sv := range sourceVectors {
		if score := cosineSimilarity(vector, sv); score > best {
			best = score
		}
	}
	return best, nil
}

func (m *SemanticMatcher) get(key string) ([]float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	elem, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).vector, true
}

func (m *SemanticMatcher) put(key string, vector []float32) {
	if m.capacity < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if elem, ok := m.entries[key]; ok {
		m.order.MoveToFront(elem)
		elem.Value.(*cacheEntry).vector = vector
		return
	}
	m.entries[key] = m.order.PushFront(&cacheEntry{key: key, vector: vector})
	for m.order.Len() > m.capacity {
		oldest := m.order.Back()
		m.order.Remove(oldest)
		delete(m.entries, oldest.Value.(*cacheEntry).key)
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
