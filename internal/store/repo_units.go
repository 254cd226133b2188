package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aptscan/aptscan/internal/model"
)

// ReplaceUnits atomically swaps the unit set for a building: delete all
// existing rows, then insert the new canonical set. Must run inside the
// caller's transaction so no reader ever observes a partial set.
func ReplaceUnits(ctx context.Context, tx *sql.Tx, buildingID int64, units []model.Unit) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM units WHERE building_id = ?", buildingID); err != nil {
		return fmt.Errorf("delete units for building %d: %w", buildingID, err)
	}

	if len(units) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO units (building_id, unit_number, bed_type, rent_cents, availability_date,
		                   floor_plan_name, floor_plan_url, baths, sqft, non_canonical, scrape_run_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare unit insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range units {
		_, err := stmt.ExecContext(ctx, buildingID, u.UnitNumber, u.BedType, u.RentCents,
			u.AvailabilityDate, nullStr(u.FloorPlanName), nullStr(u.FloorPlanURL),
			nullStr(u.Baths), nullInt(u.Sqft), u.NonCanonical, u.ScrapeRunAt.UnixNano())
		if err != nil {
			return fmt.Errorf("insert unit %s for building %d: %w", u.UnitNumber, buildingID, err)
		}
	}
	return nil
}

// ListUnits returns the current unit set for a building, ordered by unit number.
func (s *Store) ListUnits(ctx context.Context, buildingID int64) ([]model.Unit, error) {
	return listUnits(ctx, s.db, buildingID)
}

func listUnits(ctx context.Context, q execer, buildingID int64) ([]model.Unit, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT building_id, unit_number, bed_type, rent_cents, availability_date,
		       floor_plan_name, floor_plan_url, baths, sqft, non_canonical, scrape_run_at_ns
		FROM units WHERE building_id = ? ORDER BY unit_number
	`, buildingID)
	if err != nil {
		return nil, fmt.Errorf("list units for building %d: %w", buildingID, err)
	}
	defer rows.Close()

	var out []model.Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ListAllUnits returns every unit joined with its building name, for the
// availability push. Ordered by building id then unit number.
func (s *Store) ListAllUnits(ctx context.Context) ([]UnitWithBuilding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.building_id, u.unit_number, u.bed_type, u.rent_cents, u.availability_date,
		       u.floor_plan_name, u.floor_plan_url, u.baths, u.sqft, u.non_canonical, u.scrape_run_at_ns,
		       b.name, b.neighborhood
		FROM units u JOIN buildings b ON b.id = u.building_id
		ORDER BY u.building_id, u.unit_number
	`)
	if err != nil {
		return nil, fmt.Errorf("list all units: %w", err)
	}
	defer rows.Close()

	var out []UnitWithBuilding
	for rows.Next() {
		var u model.Unit
		var fpName, fpURL, baths sql.NullString
		var sqft sql.NullInt64
		var runAtNs int64
		var uw UnitWithBuilding
		err := rows.Scan(&u.BuildingID, &u.UnitNumber, &u.BedType, &u.RentCents,
			&u.AvailabilityDate, &fpName, &fpURL, &baths, &sqft, &u.NonCanonical, &runAtNs,
			&uw.BuildingName, &uw.Neighborhood)
		if err != nil {
			return nil, fmt.Errorf("scan unit row: %w", err)
		}
		u.FloorPlanName, u.FloorPlanURL, u.Baths = fpName.String, fpURL.String, baths.String
		u.Sqft = sqft.Int64
		u.ScrapeRunAt = time.Unix(0, runAtNs).UTC()
		uw.Unit = u
		out = append(out, uw)
	}
	return out, rows.Err()
}

// UnitWithBuilding decorates a unit with registry attributes of its building.
type UnitWithBuilding struct {
	model.Unit
	BuildingName string
	Neighborhood string
}

func scanUnit(rows *sql.Rows) (model.Unit, error) {
	var u model.Unit
	var fpName, fpURL, baths sql.NullString
	var sqft sql.NullInt64
	var runAtNs int64
	err := rows.Scan(&u.BuildingID, &u.UnitNumber, &u.BedType, &u.RentCents,
		&u.AvailabilityDate, &fpName, &fpURL, &baths, &sqft, &u.NonCanonical, &runAtNs)
	if err != nil {
		return model.Unit{}, fmt.Errorf("scan unit: %w", err)
	}
	u.FloorPlanName, u.FloorPlanURL, u.Baths = fpName.String, fpURL.String, baths.String
	u.Sqft = sqft.Int64
	u.ScrapeRunAt = time.Unix(0, runAtNs).UTC()
	return u, nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
