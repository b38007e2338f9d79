package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// RunRepo stores the artifacts of completed valuation runs, one row per
// ticker. Re-running a ticker replaces the previous row; the run id keeps
// the lineage visible.
type RunRepo struct{}

func NewRunRepo() *RunRepo {
	return &RunRepo{}
}

// Save upserts the artifacts of one run as a single JSONB blob. Separate
// columns per stage would be cleaner relationally, but the artifact shape
// is still moving; the blob keeps migrations out of the loop.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS valuation_runs (
//   ticker TEXT PRIMARY KEY,
//   run_id UUID,
//   artifacts_json JSONB,
//   updated_at TIMESTAMPTZ
// );
func (r *RunRepo) Save(ctx context.Context, ticker, runID string, artifacts any) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(artifacts)
	if err != nil {
		return fmt.Errorf("failed to marshal run artifacts: %w", err)
	}

	query := `
		INSERT INTO valuation_runs (ticker, run_id, artifacts_json, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (ticker)
		DO UPDATE SET
			run_id = EXCLUDED.run_id,
			artifacts_json = EXCLUDED.artifacts_json,
			updated_at = EXCLUDED.updated_at;
	`

	if _, err := pool.Exec(ctx, query, ticker, runID, jsonData, time.Now()); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load reads the stored artifacts for a ticker into dst and returns the
// run id they came from.
func (r *RunRepo) Load(ctx context.Context, ticker string, dst any) (string, error) {
	pool := GetPool()
	if pool == nil {
		return "", fmt.Errorf("database pool not initialized")
	}

	query := `SELECT run_id, artifacts_json FROM valuation_runs WHERE ticker = $1`

	var runID string
	var jsonData []byte
	err := pool.QueryRow(ctx, query, ticker).Scan(&runID, &jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", fmt.Errorf("no run found for ticker %s", ticker)
		}
		return "", fmt.Errorf("failed to load run: %w", err)
	}

	if err := json.Unmarshal(jsonData, dst); err != nil {
		return "", fmt.Errorf("failed to unmarshal run artifacts: %w", err)
	}
	return runID, nil
}
