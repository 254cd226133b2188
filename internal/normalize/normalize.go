// Package normalize converts raw scraper records to the canonical unit
// schema. It is pure: no I/O, no persistence, no global state beyond the
// frozen alias tables.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/aptscan/aptscan/internal/model"
)

// ErrInvalidRecord marks a raw record that cannot be normalized: a required
// field is missing, or a value is unparseable. Rejection is local — callers
// drop the record and continue with the rest of the scrape.
var ErrInvalidRecord = errors.New("normalize: invalid record")

// timeNow is injectable for date tests ("available now" resolves to today).
var timeNow = time.Now

// rentPlaceholders are advertised non-prices rejected outright.
var rentPlaceholders = map[string]struct{}{
	"call": {}, "n/a": {}, "contact": {}, "tbd": {}, "inquire": {}, "": {}, "0": {},
}

// Record normalizes one raw scraper record for the given building. Every
// output field is populated (optional fields default to their zero value);
// ScrapeRunAt is stamped with the current UTC time.
func Record(buildingID int64, raw model.RawRecord) (model.Unit, error) {
	unitNumber := fieldString(raw, "unit_number")
	if unitNumber == "" {
		return model.Unit{}, fmt.Errorf("%w: missing unit_number", ErrInvalidRecord)
	}

	rawBed := fieldString(raw, "bed_type")
	if rawBed == "" {
		return model.Unit{}, fmt.Errorf("%w: unit %s: missing bed_type", ErrInvalidRecord, unitNumber)
	}
	bedType, canonical := canonicalBedType(rawBed)

	rentCents, err := parseRentCents(fieldString(raw, "rent"))
	if err != nil {
		return model.Unit{}, fmt.Errorf("%w: unit %s: %v", ErrInvalidRecord, unitNumber, err)
	}

	date, err := parseAvailabilityDate(fieldString(raw, "availability_date"))
	if err != nil {
		return model.Unit{}, fmt.Errorf("%w: unit %s: %v", ErrInvalidRecord, unitNumber, err)
	}

	return model.Unit{
		BuildingID:       buildingID,
		UnitNumber:       unitNumber,
		BedType:          bedType,
		RentCents:        rentCents,
		AvailabilityDate: date,
		FloorPlanName:    fieldString(raw, "floor_plan_name"),
		FloorPlanURL:     fieldString(raw, "floor_plan_url"),
		Baths:            fieldString(raw, "baths"),
		Sqft:             parseSqft(fieldString(raw, "sqft")),
		NonCanonical:     !canonical,
		ScrapeRunAt:      timeNow().UTC(),
	}, nil
}

// parseRentCents strips price decoration, rejects placeholder values, and
// converts to positive integer cents.
func parseRentCents(raw string) (int64, error) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.TrimSuffix(cleaned, "/mo")
	for _, junk := range []string{"$", ",", " "} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}

	if _, placeholder := rentPlaceholders[cleaned]; placeholder {
		return 0, fmt.Errorf("rent placeholder %q", raw)
	}

	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable rent %q", raw)
	}
	cents := int64(math.Round(val * 100))
	if cents <= 0 {
		return 0, fmt.Errorf("non-positive rent %q", raw)
	}
	return cents, nil
}

// parseAvailabilityDate maps "available now"/"now" to today (UTC) and parses
// anything else with a format-agnostic parser, returning ISO YYYY-MM-DD.
func parseAvailabilityDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("missing availability_date")
	}
	switch strings.ToLower(trimmed) {
	case "available now", "now":
		return timeNow().UTC().Format("2006-01-02"), nil
	}
	t, err := dateparse.ParseAny(trimmed)
	if err != nil {
		return "", fmt.Errorf("unparseable availability_date %q", raw)
	}
	return t.Format("2006-01-02"), nil
}

// parseSqft extracts an integer square footage from strings like "1,024" or
// "950 sq ft". Returns 0 when absent or unparseable (sqft is optional).
func parseSqft(raw string) int64 {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	for _, junk := range []string{",", "sqft", "sq ft", "sq. ft.", "ft²"} {
		cleaned = strings.ReplaceAll(cleaned, junk, "")
	}
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0
	}
	val, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || val <= 0 {
		return 0
	}
	return int64(math.Round(val))
}

// fieldString reads raw[key] as a trimmed string, converting numeric values.
// Scrapers disagree on types (rent as number vs string, sqft as either), so
// everything funnels through here.
func fieldString(raw model.RawRecord, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	default:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
}
