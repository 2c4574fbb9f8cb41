package store

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/course-content-pipeline/internal/schemas"
	"github.com/jonathan/course-content-pipeline/internal/types"
)

// Mirror receives every accepted record in addition to the results file.
type Mirror interface {
	SaveRecord(ctx context.Context, position int, record *types.KeyRecord) error
}

// ResultStore holds the run's ordered records and rewrites the whole set to
// disk after every append, so the file always equals the records produced so
// far.
type ResultStore struct {
	path    string
	records []*types.KeyRecord
	mirror  Mirror
	logger  *zap.Logger

	failedWrites int
}

// NewResultStore creates a store writing to path. mirror may be nil.
func NewResultStore(path string, mirror Mirror, logger *zap.Logger) *ResultStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultStore{path: path, mirror: mirror, logger: logger}
}

// Append adds record and persists the full set. Persistence failures are
// logged and swallowed so the generation loop keeps running.
func (s *ResultStore) Append(ctx context.Context, record *types.KeyRecord) {
	s.records = append(s.records, record)

	if err := WriteJSON(s.path, s.records); err != nil {
		s.failedWrites++
		s.logger.Error("failed to persist results",
			zap.String("path", s.path),
			zap.Int("records", len(s.records)),
			zap.Error(err),
		)
	}

	if s.mirror != nil {
		if err := s.mirror.SaveRecord(ctx, len(s.records), record); err != nil {
			s.failedWrites++
			s.logger.Error("failed to mirror record",
				zap.String("key", record.Key),
				zap.Error(err),
			)
		}
	}
}

// Records returns the records appended so far.
func (s *ResultStore) Records() []*types.KeyRecord {
	return s.records
}

// Len returns the number of records.
func (s *ResultStore) Len() int {
	return len(s.records)
}

// FailedWrites returns how many persistence writes failed.
func (s *ResultStore) FailedWrites() int {
	return s.failedWrites
}

// Path returns the results file path.
func (s *ResultStore) Path() string {
	return s.path
}

// LoadResults reads a results file after validating it against the
// key-records schema.
func LoadResults(path string) ([]*types.KeyRecord, error) {
	if err := schemas.ValidateFile(schemas.KeyRecordsSchema, path); err != nil {
		return nil, err
	}
	var records []*types.KeyRecord
	if err := ReadJSON(path, &records); err != nil {
		return nil, err
	}
	return records, nil
}
