package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aptscan/aptscan/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// ErrAmbiguousName is returned when a partial building-name match hits more
// than one building.
var ErrAmbiguousName = errors.New("store: ambiguous building name")

const buildingCols = `id, name, url, neighborhood, management_company, platform,
	credential_a, credential_b, last_scrape_status, last_scraped_at_ns, consecutive_zero_count`

func scanBuilding(row interface{ Scan(...any) error }) (model.Building, error) {
	var b model.Building
	var status string
	var lastNs int64
	err := row.Scan(&b.ID, &b.Name, &b.URL, &b.Neighborhood, &b.ManagementCompany,
		&b.Platform, &b.CredentialA, &b.CredentialB, &status, &lastNs, &b.ConsecutiveZeroCount)
	if err != nil {
		return model.Building{}, err
	}
	b.LastScrapeStatus = model.ScrapeStatus(status)
	if lastNs > 0 {
		b.LastScrapedAt = time.Unix(0, lastNs).UTC()
	}
	return b, nil
}

// UpsertBuildingByURL inserts or updates a building keyed on URL. Identity
// and registry-owned attributes are overwritten; scrape state
// (last_scrape_status, last_scraped_at, consecutive_zero_count) is preserved
// on update. Only the registry sync creates buildings.
func (s *Store) UpsertBuildingByURL(ctx context.Context, b model.Building) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO buildings (name, url, neighborhood, management_company, platform, credential_a, credential_b)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			name               = excluded.name,
			neighborhood       = excluded.neighborhood,
			management_company = excluded.management_company,
			platform           = excluded.platform,
			credential_a       = excluded.credential_a,
			credential_b       = excluded.credential_b
	`, b.Name, b.URL, b.Neighborhood, b.ManagementCompany, b.Platform, b.CredentialA, b.CredentialB)
	if err != nil {
		return fmt.Errorf("upsert building %s: %w", b.URL, err)
	}
	return nil
}

// DeleteBuildingsNotIn removes buildings whose URL is absent from the given
// registry snapshot. Units and scrape runs cascade. An empty snapshot is a
// no-op rather than a full wipe.
func (s *Store) DeleteBuildingsNotIn(ctx context.Context, urls []string) (int64, error) {
	if len(urls) == 0 {
		return 0, nil
	}
	placeholders := strings.Repeat("?,", len(urls)-1) + "?"
	args := make([]any, len(urls))
	for i, u := range urls {
		args[i] = u
	}
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM buildings WHERE url NOT IN ("+placeholders+")", args...)
	if err != nil {
		return 0, fmt.Errorf("delete absent buildings: %w", err)
	}
	return res.RowsAffected()
}

// GetBuilding loads one building by id. Runs against any execer so the
// runner can read inside its own session.
func GetBuilding(ctx context.Context, q execer, id int64) (model.Building, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+buildingCols+" FROM buildings WHERE id = ?", id)
	b, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Building{}, ErrNotFound
	}
	if err != nil {
		return model.Building{}, fmt.Errorf("get building %d: %w", id, err)
	}
	return b, nil
}

// ListBuildingsWithPlatform returns every building with a non-empty platform
// tag, ordered by id. Skip-set filtering happens in the orchestrator, which
// owns the snapshot.
func (s *Store) ListBuildingsWithPlatform(ctx context.Context) ([]model.Building, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+buildingCols+" FROM buildings WHERE platform != '' ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list scrapeable buildings: %w", err)
	}
	defer rows.Close()

	var out []model.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListBuildings returns all buildings ordered by id.
func (s *Store) ListBuildings(ctx context.Context) ([]model.Building, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+buildingCols+" FROM buildings ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list buildings: %w", err)
	}
	defer rows.Close()

	var out []model.Building
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, fmt.Errorf("scan building: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindBuildingByName resolves a partial, case-insensitive name match.
// An exact (case-insensitive) match wins outright; otherwise a single
// substring match wins and multiple matches return ErrAmbiguousName with
// the candidate names.
func (s *Store) FindBuildingByName(ctx context.Context, name string) (model.Building, error) {
	all, err := s.ListBuildings(ctx)
	if err != nil {
		return model.Building{}, err
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	var matches []model.Building
	for _, b := range all {
		lower := strings.ToLower(b.Name)
		if lower == needle {
			return b, nil
		}
		if strings.Contains(lower, needle) {
			matches = append(matches, b)
		}
	}

	switch len(matches) {
	case 0:
		return model.Building{}, fmt.Errorf("building %q: %w", name, ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		names := make([]string, len(matches))
		for i, b := range matches {
			names[i] = b.Name
		}
		return model.Building{}, fmt.Errorf("%w: %q matches %s",
			ErrAmbiguousName, name, strings.Join(names, ", "))
	}
}

// UpdateBuildingScrapeState writes the post-scrape state machine fields.
// Called only from the runner's save helper, inside its transaction.
func UpdateBuildingScrapeState(ctx context.Context, q execer, id int64,
	status model.ScrapeStatus, lastScrapedAt time.Time, zeroCount int) error {
	res, err := q.ExecContext(ctx, `
		UPDATE buildings
		SET last_scrape_status = ?, last_scraped_at_ns = ?, consecutive_zero_count = ?
		WHERE id = ?
	`, string(status), lastScrapedAt.UnixNano(), zeroCount, id)
	if err != nil {
		return fmt.Errorf("update building %d scrape state: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update building %d scrape state: %w", id, ErrNotFound)
	}
	return nil
}
