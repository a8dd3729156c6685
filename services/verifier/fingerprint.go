package verifier

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lexrag-backend/models"
)

// FingerprintTracker records which source texts a verification was grounded
// on. When a source's text later changes, every verification that referenced
// the old text is invalidated. The source-hash index keeps invalidation
// proportional to the affected records.
type FingerprintTracker struct {
	mu           sync.Mutex
	records      map[uuid.UUID]*models.VerificationRecord
	sourceIndex  map[string][]uuid.UUID // source hash → verifications referencing it
	sourceHashes map[string]string      // source ID → current hash
}

func NewFingerprintTracker() *FingerprintTracker {
	return &FingerprintTracker{
		records:      make(map[uuid.UUID]*models.VerificationRecord),
		sourceIndex:  make(map[string][]uuid.UUID),
		sourceHashes: make(map[string]string),
	}
}

// HashText returns the hex SHA-256 of a text. Deterministic on the text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Record fingerprints a verification: the answer hash, each source's current
// hash, and the outcome. Returns the stored record.
func (t *FingerprintTracker) Record(answer string, sources map[string]string, confidence float64, label models.TrustLabel) *models.VerificationRecord {
	rec := &models.VerificationRecord{
		VerificationID: uuid.New(),
		AnswerHash:     HashText(answer),
		Confidence:     confidence,
		TrustLabel:     label,
		CreatedAt:      time.Now().UTC(),
		IsValid:        true,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for sourceID, text := range sources {
		hash := HashText(text)
		rec.SourceHashes = append(rec.SourceHashes, hash)
		t.sourceHashes[sourceID] = hash
		t.sourceIndex[hash] = append(t.sourceIndex[hash], rec.VerificationID)
	}
	t.records[rec.VerificationID] = rec
	return rec
}

// UpdateSource registers a new text for a source. If the hash changed, every
// verification grounded on the old hash is flipped invalid. Returns the
// number of invalidated records.
func (t *FingerprintTracker) UpdateSource(sourceID, newText string) int {
	newHash := HashText(newText)

	t.mu.Lock()
	defer t.mu.Unlock()

	oldHash, known := t.sourceHashes[sourceID]
	t.sourceHashes[sourceID] = newHash
	if !known || oldHash == newHash {
		return 0
	}

	invalidated := 0
	for _, id := range t.sourceIndex[oldHash] {
		if rec, ok := t.records[id]; ok && rec.IsValid {
			rec.IsValid = false
			invalidated++
		}
	}
	return invalidated
}

// Get returns a copy of the record, if present.
func (t *FingerprintTracker) Get(id uuid.UUID) (models.VerificationRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return models.VerificationRecord{}, false
	}
	return *rec, true
}
