package ingestion

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const updateTrackerFile = "last_update.json"

// UpdateTracker persists the timestamp of the last successful ingestion run,
// so incremental update runs only ask crawlers for newer records.
type UpdateTracker struct {
	path string
}

func NewUpdateTracker(root string) *UpdateTracker {
	return &UpdateTracker{path: filepath.Join(root, updateTrackerFile)}
}

type updateMark struct {
	LastUpdate time.Time `json:"last_update"`
}

// LastUpdate returns the recorded timestamp; ok=false means no run has ever
// completed.
func (t *UpdateTracker) LastUpdate() (time.Time, bool, error) {
	data, err := os.ReadFile(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to read update tracker: %w", err)
	}
	var mark updateMark
	if err := json.Unmarshal(data, &mark); err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt update tracker: %w", err)
	}
	return mark.LastUpdate, true, nil
}

// MarkCompleted records a successful run via temp-file-plus-rename.
func (t *UpdateTracker) MarkCompleted(at time.Time) error {
	data, err := json.Marshal(updateMark{LastUpdate: at.UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal update tracker: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(t.path), updateTrackerFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create update tracker temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write update tracker: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close update tracker: %w", err)
	}
	return os.Rename(tmpName, t.path)
}
