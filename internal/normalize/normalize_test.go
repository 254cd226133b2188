package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/aptscan/aptscan/internal/model"
)

func fixedNow(t *testing.T, at time.Time) {
	t.Helper()
	old := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = old })
}

func TestRecord_HappyPath(t *testing.T) {
	now := time.Date(2026, 8, 24, 15, 0, 0, 0, time.UTC)
	fixedNow(t, now)

	u, err := Record(1, model.RawRecord{
		"unit_number":       "615",
		"bed_type":          "1br",
		"rent":              "$2,695",
		"availability_date": "Available Now",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if u.BuildingID != 1 || u.UnitNumber != "615" {
		t.Errorf("identity: %+v", u)
	}
	if u.BedType != "1BR" || u.NonCanonical {
		t.Errorf("bed type: got %q non_canonical=%v", u.BedType, u.NonCanonical)
	}
	if u.RentCents != 269500 {
		t.Errorf("rent: got %d, want 269500", u.RentCents)
	}
	if u.AvailabilityDate != "2026-08-24" {
		t.Errorf("date: got %q", u.AvailabilityDate)
	}
	if !u.ScrapeRunAt.Equal(now) {
		t.Errorf("scrape_run_at: got %s", u.ScrapeRunAt)
	}
}

func TestRecord_MissingRequiredFields(t *testing.T) {
	base := model.RawRecord{
		"unit_number":       "101",
		"bed_type":          "2br",
		"rent":              "1800",
		"availability_date": "2026-09-01",
	}
	for _, field := range []string{"unit_number", "bed_type", "rent", "availability_date"} {
		raw := model.RawRecord{}
		for k, v := range base {
			raw[k] = v
		}
		delete(raw, field)
		if _, err := Record(1, raw); !errors.Is(err, ErrInvalidRecord) {
			t.Errorf("missing %s: got %v, want ErrInvalidRecord", field, err)
		}
	}
}

func TestParseRentCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"$2,695", 269500, false},
		{"2695", 269500, false},
		{"$1,850/mo", 185000, false},
		{" 1999.50 ", 199950, false},
		{"1825.005", 182501, false}, // rounds to nearest cent
		{"Call", 0, true},
		{"N/A", 0, true},
		{"Contact", 0, true},
		{"TBD", 0, true},
		{"Inquire", 0, true},
		{"", 0, true},
		{"0", 0, true},
		{"$0.00", 0, true},
		{"-500", 0, true},
		{"two thousand", 0, true},
	}
	for _, tc := range tests {
		got, err := parseRentCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseRentCents(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseRentCents(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseRentCents(%q): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalBedType(t *testing.T) {
	tests := []struct {
		in        string
		want      string
		canonical bool
	}{
		{"studio", "Studio", true},
		{"STUDIO", "Studio", true},
		{"Efficiency", "Studio", true},
		{"convertible", "Convertible", true},
		{"Junior 1BR", "Convertible", true},
		{"1br", "1BR", true},
		{"One Bedroom", "1BR", true},
		{" 1 bed ", "1BR", true},
		{"1BR+Den", "1BR+Den", true},
		{"2 bedroom", "2BR", true},
		{"3br", "3BR+", true},
		{"4BR", "3BR+", true},
		{"5 bedroom", "3BR+", true},
		{"Loft Deluxe", "Loft Deluxe", false}, // passthrough keeps casing
	}
	for _, tc := range tests {
		got, canonical := canonicalBedType(tc.in)
		if got != tc.want || canonical != tc.canonical {
			t.Errorf("canonicalBedType(%q): got (%q, %v), want (%q, %v)",
				tc.in, got, canonical, tc.want, tc.canonical)
		}
	}
}

func TestCanonicalBedType_IdentityOnCanonical(t *testing.T) {
	for _, c := range []string{Studio, Convertible, OneBR, OneBRDen, TwoBR, ThreePlusBR} {
		got, canonical := canonicalBedType(c)
		if got != c || !canonical {
			t.Errorf("canonical %q did not round-trip: got (%q, %v)", c, got, canonical)
		}
	}
}

func TestParseAvailabilityDate(t *testing.T) {
	fixedNow(t, time.Date(2026, 8, 24, 23, 30, 0, 0, time.UTC))

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"Available Now", "2026-08-24", false},
		{"NOW", "2026-08-24", false},
		{"2026-09-01", "2026-09-01", false},
		{"09/01/2026", "2026-09-01", false},
		{"September 1, 2026", "2026-09-01", false},
		{"Sep 1 2026", "2026-09-01", false},
		{"", "", true},
		{"whenever", "", true},
	}
	for _, tc := range tests {
		got, err := parseAvailabilityDate(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseAvailabilityDate(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseAvailabilityDate(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseAvailabilityDate(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRecord_OptionalFields(t *testing.T) {
	u, err := Record(7, model.RawRecord{
		"unit_number":       "PH-2",
		"bed_type":          "3br",
		"rent":              4500.0, // numeric rent from a JSON API
		"availability_date": "2026-10-01",
		"floor_plan_name":   "Penthouse B",
		"floor_plan_url":    "https://example.com/fp/b.pdf",
		"baths":             2.5, // numeric baths stored as string
		"sqft":              "1,250 sq ft",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if u.RentCents != 450000 {
		t.Errorf("numeric rent: got %d", u.RentCents)
	}
	if u.Baths != "2.5" {
		t.Errorf("baths: got %q", u.Baths)
	}
	if u.Sqft != 1250 {
		t.Errorf("sqft: got %d", u.Sqft)
	}
	if u.FloorPlanName != "Penthouse B" || u.FloorPlanURL == "" {
		t.Errorf("floor plan: %+v", u)
	}
}

func TestRecord_OptionalFieldsAbsent(t *testing.T) {
	u, err := Record(7, model.RawRecord{
		"unit_number":       "301",
		"bed_type":          "studio",
		"rent":              "1500",
		"availability_date": "2026-09-15",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if u.FloorPlanName != "" || u.FloorPlanURL != "" || u.Baths != "" || u.Sqft != 0 {
		t.Errorf("optional fields should be zero: %+v", u)
	}
}
