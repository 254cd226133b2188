// Package model defines domain structs shared across the persistence layer.
package model

import "time"

// ScrapeStatus is the building-level staleness state.
type ScrapeStatus string

const (
	// StatusNever marks a building that has not been scraped yet.
	StatusNever ScrapeStatus = "never"
	// StatusSuccess marks a building whose last scrape committed a unit set.
	StatusSuccess ScrapeStatus = "success"
	// StatusFailed marks a building whose last scrape failed; the previous
	// unit set is retained as last known data.
	StatusFailed ScrapeStatus = "failed"
	// StatusNeedsAttention marks a building that returned zero units on
	// ZeroUnitThreshold consecutive successful scrapes.
	StatusNeedsAttention ScrapeStatus = "needs_attention"
)

// ZeroUnitThreshold is the number of consecutive zero-unit successes after
// which a building flips to needs_attention.
const ZeroUnitThreshold = 5

// RunStatus is the per-attempt outcome recorded in scrape_runs.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Building is one scrape target. Rows are created and deleted only by the
// registry sync, keyed on URL; scrapers never create buildings.
type Building struct {
	ID                   int64
	Name                 string
	URL                  string
	Neighborhood         string
	ManagementCompany    string
	Platform             string // empty means skip
	CredentialA          string // opaque, interpreted by the adapter
	CredentialB          string
	LastScrapeStatus     ScrapeStatus
	LastScrapedAt        time.Time // zero value when never scraped
	ConsecutiveZeroCount int
}

// Unit is one rentable apartment, current state only. The full unit set of a
// building is replaced atomically on every successful scrape.
type Unit struct {
	BuildingID       int64
	UnitNumber       string
	BedType          string
	RentCents        int64
	AvailabilityDate string // ISO YYYY-MM-DD
	FloorPlanName    string
	FloorPlanURL     string
	Baths            string
	Sqft             int64 // 0 means unknown
	NonCanonical     bool
	ScrapeRunAt      time.Time
}

// ScrapeRun is the append-only audit row for one scrape attempt.
type ScrapeRun struct {
	ID           string // uuid
	BuildingID   int64
	RunAt        time.Time
	Status       RunStatus
	UnitCount    int
	ErrorMessage string
}

// BuildingResult is the per-building aggregate entry returned by a batch
// cycle and pushed to the status tab.
type BuildingResult struct {
	BuildingID int64
	Name       string
	Platform   string
	Status     string // "success", "failed" or "skipped"
	UnitCount  int
	ScrapedAt  time.Time
	Error      string
}

// RawRecord is one unit record as emitted by a scraper adapter, before
// normalization. Values may be strings or numbers; interpretation belongs
// to the normalizer.
type RawRecord map[string]any
