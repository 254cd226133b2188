package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aptscan/aptscan/internal/model"
)

// InsertScrapeRun appends one audit row. Runs against any execer so the
// runner can write inside its transaction.
func InsertScrapeRun(ctx context.Context, q execer, run model.ScrapeRun) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO scrape_runs (id, building_id, run_at_ns, status, unit_count, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.BuildingID, run.RunAt.UnixNano(), string(run.Status), run.UnitCount, run.ErrorMessage)
	if err != nil {
		return fmt.Errorf("insert scrape run for building %d: %w", run.BuildingID, err)
	}
	return nil
}

// ListScrapeRuns returns the audit rows for a building, newest first.
func (s *Store) ListScrapeRuns(ctx context.Context, buildingID int64) ([]model.ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, building_id, run_at_ns, status, unit_count, error_message
		FROM scrape_runs WHERE building_id = ? ORDER BY run_at_ns DESC
	`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list scrape runs for building %d: %w", buildingID, err)
	}
	defer rows.Close()

	var out []model.ScrapeRun
	for rows.Next() {
		var r model.ScrapeRun
		var runAtNs int64
		var status string
		if err := rows.Scan(&r.ID, &r.BuildingID, &runAtNs, &status, &r.UnitCount, &r.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scan scrape run: %w", err)
		}
		r.RunAt = time.Unix(0, runAtNs).UTC()
		r.Status = model.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// PruneScrapeRuns deletes audit rows older than the cutoff and returns the
// number removed. Called at the end of each batch cycle.
func (s *Store) PruneScrapeRuns(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM scrape_runs WHERE run_at_ns < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune scrape runs: %w", err)
	}
	return res.RowsAffected()
}

// LatestRunAt returns the run_at of the most recent scrape run, or the zero
// time when no runs exist. The scheduler uses it for misfire catch-up.
func (s *Store) LatestRunAt(ctx context.Context) (time.Time, error) {
	row := s.db.QueryRowContext(ctx, "SELECT MAX(run_at_ns) FROM scrape_runs")
	var ns sql.NullInt64
	if err := row.Scan(&ns); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("latest run at: %w", err)
	}
	if !ns.Valid || ns.Int64 == 0 {
		return time.Time{}, nil
	}
	return time.Unix(0, ns.Int64).UTC(), nil
}
