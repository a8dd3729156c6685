package verifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/lexrag-backend/models"
)

func TestFingerprintTracker_RecordAndGet(t *testing.T) {
	tracker := NewFingerprintTracker()

	rec := tracker.Record("Antwort.", map[string]string{"s1": "Quelle eins.", "s2": "Quelle zwei."}, 0.91, models.TrustVerified)

	got, ok := tracker.Get(rec.VerificationID)
	require.True(t, ok)
	assert.True(t, got.IsValid)
	assert.Equal(t, HashText("Antwort."), got.AnswerHash)
	assert.Len(t, got.SourceHashes, 2)
	assert.Equal(t, models.TrustVerified, got.TrustLabel)
}

func TestFingerprintTracker_UpdateSourceInvalidates(t *testing.T) {
	tracker := NewFingerprintTracker()

	onShared := tracker.Record("Antwort A.", map[string]string{"s1": "Quelle eins.", "s2": "Quelle zwei."}, 0.9, models.TrustVerified)
	onOther := tracker.Record("Antwort B.", map[string]string{"s2": "Quelle zwei."}, 0.85, models.TrustVerified)

	invalidated := tracker.UpdateSource("s1", "Quelle eins, geändert.")
	assert.Equal(t, 1, invalidated)

	got, _ := tracker.Get(onShared.VerificationID)
	assert.False(t, got.IsValid)

	// Verifications grounded only on other sources are untouched.
	other, _ := tracker.Get(onOther.VerificationID)
	assert.True(t, other.IsValid)
}

func TestFingerprintTracker_UnchangedSourceIsNoOp(t *testing.T) {
	tracker := NewFingerprintTracker()

	rec := tracker.Record("Antwort.", map[string]string{"s1": "Quelle eins."}, 0.9, models.TrustVerified)

	assert.Zero(t, tracker.UpdateSource("s1", "Quelle eins."))
	got, _ := tracker.Get(rec.VerificationID)
	assert.True(t, got.IsValid)
}

func TestFingerprintTracker_UnknownSourceIsNoOp(t *testing.T) {
	tracker := NewFingerprintTracker()

	assert.Zero(t, tracker.UpdateSource("never-seen", "Neuer Text."))
}

func TestFingerprintTracker_GetReturnsCopy(t *testing.T) {
	tracker := NewFingerprintTracker()
	rec := tracker.Record("Antwort.", map[string]string{"s1": "Quelle."}, 0.9, models.TrustVerified)

	got, _ := tracker.Get(rec.VerificationID)
	got.IsValid = false

	again, _ := tracker.Get(rec.VerificationID)
	assert.True(t, again.IsValid)
}

func TestHashText_Deterministic(t *testing.T) {
	assert.Equal(t, HashText("abc"), HashText("abc"))
	assert.NotEqual(t, HashText("abc"), HashText("abd"))
	assert.Len(t, HashText(""), 64)
}
