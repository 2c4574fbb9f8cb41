// Package db mirrors generation runs and their records into PostgreSQL.
// The results file stays authoritative; the mirror is optional.
package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jonathan/course-content-pipeline/internal/types"
)

//go:embed schema.sql
var schemaSQL string

// Run status values.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// EnsureSchema creates the mirror tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// CreateRun records the start of a generation run.
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, preset, model string, keyCount int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO generation_runs (id, preset, model, key_count, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		runID, preset, model, keyCount, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun marks a run finished and stores its summary.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status string, summary *types.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`UPDATE generation_runs SET status = $1, summary = $2, completed_at = NOW() WHERE id = $3`,
		status, summaryJSON, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID, or nil when it does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var summary []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, preset, model, key_count, status, summary, created_at, completed_at
		 FROM generation_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Preset, &run.Model, &run.KeyCount, &run.Status, &summary, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(summary) > 0 {
		run.Summary = &types.RunSummary{}
		if err := json.Unmarshal(summary, run.Summary); err != nil {
			return nil, fmt.Errorf("failed to parse run summary: %w", err)
		}
	}
	return &run, nil
}

// SaveRecord upserts the record at its 1-based position in the run.
func (db *DB) SaveRecord(ctx context.Context, runID uuid.UUID, position int, record *types.KeyRecord) error {
	content, err := json.Marshal(record.Content())
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = db.pool.Exec(ctx,
		`INSERT INTO run_records (run_id, position, key, key_hash, content)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id, position) DO UPDATE SET key = $3, key_hash = $4, content = $5, created_at = NOW()`,
		runID, position, record.Key, KeyHash(record.Key), content,
	)
	if err != nil {
		return fmt.Errorf("failed to save record %d: %w", position, err)
	}
	return nil
}

// ListRecords returns a run's records in position order.
func (db *DB) ListRecords(ctx context.Context, runID uuid.UUID) ([]*types.KeyRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT key, content FROM run_records WHERE run_id = $1 ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*types.KeyRecord
	for rows.Next() {
		var key string
		var content []byte
		if err := rows.Scan(&key, &content); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record := types.NewKeyRecord(key)
		if err := json.Unmarshal(content, &record.Results); err != nil {
			return nil, fmt.Errorf("failed to parse record %q: %w", key, err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return records, nil
}
