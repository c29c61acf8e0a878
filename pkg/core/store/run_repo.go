package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/higaso4186/ir-articles/pkg/core/schema"
)

// RunRepo archives pipeline run results, keyed by document id. Upserts keep
// the latest run per document.
type RunRepo struct{}

// NewRunRepo creates a new repository instance.
func NewRunRepo() *RunRepo {
	return &RunRepo{}
}

// Save persists a run result as a JSONB blob.
//
// Schema assumption:
// CREATE TABLE IF NOT EXISTS ir_runs (
//   doc_id TEXT PRIMARY KEY,
//   company TEXT,
//   run JSONB,
//   updated_at TIMESTAMPTZ
// );
func (r *RunRepo) Save(ctx context.Context, result *schema.PipelineResult) error {
	pool := GetPool()
	if pool == nil {
		return fmt.Errorf("database pool not initialized")
	}

	jsonData, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal run result: %w", err)
	}

	query := `
		INSERT INTO ir_runs (doc_id, company, run, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (doc_id)
		DO UPDATE SET
			company = EXCLUDED.company,
			run = EXCLUDED.run,
			updated_at = EXCLUDED.updated_at;
	`

	_, err = pool.Exec(ctx, query, result.DocID, result.CompanyName, jsonData, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Load retrieves the archived run for a document id.
func (r *RunRepo) Load(ctx context.Context, docID string) (*schema.PipelineResult, error) {
	pool := GetPool()
	if pool == nil {
		return nil, fmt.Errorf("database pool not initialized")
	}

	var jsonData []byte
	query := `SELECT run FROM ir_runs WHERE doc_id = $1`
	err := pool.QueryRow(ctx, query, docID).Scan(&jsonData)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	var result schema.PipelineResult
	if err := json.Unmarshal(jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run: %w", err)
	}
	return &result, nil
}
