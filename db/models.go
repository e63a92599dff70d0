package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"caixa-imoveis/models"
)

// SyncRun represents one batch run over the configured regions
type SyncRun struct {
	ID               string
	Status           string // "in_progress", "done", "failed"
	StartedAt        time.Time
	FinishedAt       sql.NullTime
	RegionsDone      int
	RegionsSkipped   int
	RegionsFailed    int
	ListingsAdded    int
	ListingsArchived int
}

// StartRun records a run as in progress
func (db *DB) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_runs (id, status, started_at)
		VALUES ($1, 'in_progress', $2)
	`, runID, startedAt)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", runID, err)
	}
	return nil
}

// RecordRegion stores the outcome of one region inside a run
func (db *DB) RecordRegion(ctx context.Context, runID string, res models.RegionResult) error {
	var lastError sql.NullString
	if res.Err != nil {
		lastError = sql.NullString{String: res.Err.Error(), Valid: true}
	}

	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sync_regions (run_id, region, status, plan, incoming_count, persisted_count,
			new_count, archived_count, duplicate_count, geocoded_count, duration_ms, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, runID, string(res.Region), string(res.Status), res.Plan, res.Incoming, res.Persisted,
		res.New, res.Archived, res.Duplicates, res.Geocoded, res.Duration.Milliseconds(), lastError)
	if err != nil {
		return fmt.Errorf("failed to record region %s of run %s: %w", res.Region, runID, err)
	}
	return nil
}

// FinishRun closes a run with its totals
func (db *DB) FinishRun(ctx context.Context, report *models.RunReport) error {
	counts := report.Counts()
	added, archived := report.Totals()

	_, err := db.conn.ExecContext(ctx, `
		UPDATE sync_runs
		SET status = $1, finished_at = $2, regions_done = $3, regions_skipped = $4, regions_failed = $5,
			listings_added = $6, listings_archived = $7
		WHERE id = $8
	`, RunStatus(report), report.FinishedAt, counts[models.RegionDone], counts[models.RegionSkipped],
		counts[models.RegionFailed], added, archived, report.ID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", report.ID, err)
	}
	return nil
}

// RecentRuns returns the latest runs, newest first
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, status, started_at, finished_at, regions_done, regions_skipped, regions_failed,
			listings_added, listings_archived
		FROM sync_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		err := rows.Scan(
			&run.ID, &run.Status, &run.StartedAt, &run.FinishedAt, &run.RegionsDone, &run.RegionsSkipped,
			&run.RegionsFailed, &run.ListingsAdded, &run.ListingsArchived,
		)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// RunStatus is "failed" when no region completed, "done" otherwise
func RunStatus(report *models.RunReport) string {
	if len(report.Regions) > 0 && report.Counts()[models.RegionDone] == 0 {
		return "failed"
	}
	return "done"
}
