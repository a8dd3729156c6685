package ingestion

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexrag-backend/models"
)

// Checkpoint artifact names inside a run directory.
const (
	stateFile      = "state.json"
	documentsFile  = "documents.jsonl"
	normalizedFile = "normalized.jsonl"
	chunksFile     = "chunks.jsonl"
	skippedFile    = "skipped_documents.json"
)

// CheckpointStore persists one ingestion run's state and stage artifacts
// under <root>/<runID>/. Every write goes through a temp file plus rename, so
// an aborted write never replaces a valid artifact with a partial one. The
// store is single-writer per run.
type CheckpointStore struct {
	dir string
}

// NewCheckpointStore opens (creating if needed) the checkpoint directory for
// a run.
func NewCheckpointStore(root, runID string) (*CheckpointStore, error) {
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory %s: %w", dir, err)
	}
	return &CheckpointStore{dir: dir}, nil
}

func (s *CheckpointStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// SaveState atomically rewrites state.json.
func (s *CheckpointStore) SaveState(state *models.IngestionState) error {
	state.LastUpdated = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ingestion state: %w", err)
	}
	return s.writeAtomic(stateFile, data)
}

// LoadState reads state.json; ok=false means no prior run exists. A present
// but unreadable state file is checkpoint corruption.
func (s *CheckpointStore) LoadState() (*models.IngestionState, bool, error) {
	data, err := os.ReadFile(s.path(stateFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, models.WrapError(models.KindCheckpoint, "failed to read checkpoint state", err)
	}
	var state models.IngestionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, false, models.WrapError(models.KindCheckpoint, "corrupt checkpoint state", err)
	}
	return &state, true, nil
}

// WriteJSONL atomically replaces an artifact with one JSON record per line.
func WriteJSONL[T any](s *CheckpointStore, name string, records []T) error {
	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode %s record: %w", name, err)
		}
	}
	return s.writeAtomic(name, []byte(b.String()))
}

// AppendJSONL appends records to an artifact for intra-stage batch progress.
// Appends are line-atomic on local filesystems; the stage counter in
// state.json is the source of truth for resume decisions.
func AppendJSONL[T any](s *CheckpointStore, name string, records []T) error {
	f, err := os.OpenFile(s.path(name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s for append: %w", name, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to append %s record: %w", name, err)
		}
	}
	return f.Sync()
}

// ReadJSONL loads every record of an artifact, tolerating blank lines. A
// missing artifact yields an empty slice.
func ReadJSONL[T any](s *CheckpointStore, name string) ([]T, error) {
	f, err := os.Open(s.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, models.WrapError(models.KindCheckpoint, "failed to open checkpoint artifact "+name, err)
	}
	defer f.Close()

	var records []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var rec T
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, models.WrapError(models.KindCheckpoint,
				fmt.Sprintf("corrupt record at %s:%d", name, line), err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, models.WrapError(models.KindCheckpoint, "failed to read checkpoint artifact "+name, err)
	}
	return records, nil
}

// ArtifactNonEmpty reports whether an artifact exists with content. Used by
// the resume contract together with the stage counters.
func (s *CheckpointStore) ArtifactNonEmpty(name string) bool {
	info, err := os.Stat(s.path(name))
	return err == nil && info.Size() > 0
}

// RecordSkipped appends a document to the skipped list, rewriting the file
// atomically.
func (s *CheckpointStore) RecordSkipped(skipped models.SkippedDocument) error {
	existing, err := s.LoadSkipped()
	if err != nil {
		return err
	}
	existing = append(existing, skipped)
	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal skipped documents: %w", err)
	}
	return s.writeAtomic(skippedFile, data)
}

// LoadSkipped returns the skip list; missing file means none.
func (s *CheckpointStore) LoadSkipped() ([]models.SkippedDocument, error) {
	data, err := os.ReadFile(s.path(skippedFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, models.WrapError(models.KindCheckpoint, "failed to read skipped documents", err)
	}
	var skipped []models.SkippedDocument
	if err := json.Unmarshal(data, &skipped); err != nil {
		return nil, models.WrapError(models.KindCheckpoint, "corrupt skipped documents file", err)
	}
	return skipped, nil
}

func (s *CheckpointStore) writeAtomic(name string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}
