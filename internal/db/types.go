package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Run represents a generation_runs row
type Run struct {
	ID          uuid.UUID         `json:"id"`
	Preset      string            `json:"preset"`
	Model       string            `json:"model"`
	KeyCount    int               `json:"key_count"`
	Status      string            `json:"status"`
	Summary     *types.RunSummary `json:"summary,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// KeyHash returns the SHA256 hex digest of key, used to find the same key
// across runs.
func KeyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// recordSaver is the subset of DB used by RunMirror.
type recordSaver interface {
	SaveRecord(ctx context.Context, runID uuid.UUID, position int, record *types.KeyRecord) error
}

// RunMirror binds a run ID to the database so it can be handed to the
// result store as its mirror.
type RunMirror struct {
	db    recordSaver
	runID uuid.UUID
}

// NewRunMirror creates a mirror writing records of runID.
func NewRunMirror(db *DB, runID uuid.UUID) *RunMirror {
	return &RunMirror{db: db, runID: runID}
}

// SaveRecord implements store.Mirror.
func (m *RunMirror) SaveRecord(ctx context.Context, position int, record *types.KeyRecord) error {
	return m.db.SaveRecord(ctx, m.runID, position, record)
}
