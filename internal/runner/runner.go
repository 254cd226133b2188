// Package runner executes one scrape for one building: adapter invocation,
// normalization, and the atomic DB commit. It is the unit of isolation —
// nothing that goes wrong inside a run escapes to the caller.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/aptscan/aptscan/internal/gate"
	"github.com/aptscan/aptscan/internal/model"
	"github.com/aptscan/aptscan/internal/normalize"
	"github.com/aptscan/aptscan/internal/scraper"
	"github.com/aptscan/aptscan/internal/store"
)

// Outcome classifies one runner invocation.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Result is what one invocation reports back to the orchestrator.
type Result struct {
	BuildingID int64
	Name       string
	Platform   string
	Outcome    Outcome
	UnitCount  int
	ScrapedAt  time.Time
	Error      string
}

// AdapterResolver resolves a platform tag to its adapter. Satisfied by
// *scraper.Registry; tests inject fakes.
type AdapterResolver interface {
	Adapter(tag string) (scraper.Adapter, bool)
}

// Config wires a Runner.
type Config struct {
	Store    *store.Store
	Registry AdapterResolver
	Gate     *gate.Gate

	// Pacing returns the courtesy delay applied after the gate slot is
	// released. Nil uses scraper.DefaultPacing.
	Pacing func(tag string) time.Duration
	// PacingOverrides (from the tuning file) win over Pacing.
	PacingOverrides map[string]time.Duration

	// DryRun invokes the adapter and normalizer but skips the DB
	// transaction, returning a simulated result.
	DryRun bool

	// ClearOnFailure deletes the building's units on a failed scrape
	// instead of retaining them as last known data. Deliberately not
	// exposed as a CLI flag; retention is the default behavior.
	ClearOnFailure bool

	// Sleep is injectable for tests. Nil uses time.Sleep.
	Sleep func(time.Duration)
}

// Runner executes scrapes. Safe for concurrent use by multiple workers;
// each invocation owns its own DB session.
type Runner struct {
	cfg Config
}

// New creates a Runner.
func New(cfg Config) *Runner {
	if cfg.Pacing == nil {
		cfg.Pacing = scraper.DefaultPacing
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Runner{cfg: cfg}
}

// errUnknownPlatform is recorded when a tag resolves to no adapter.
var errUnknownPlatform = errors.New("unknown platform")

// Run executes one scrape for the building. platformOverride, when
// non-empty, replaces the stored tag for this invocation only (the row is
// not modified). Run never panics and never returns an error: every failure
// is absorbed into the Result and the ScrapeRun audit row.
func (r *Runner) Run(ctx context.Context, buildingID int64, platformOverride string) (res Result) {
	res = Result{BuildingID: buildingID, Outcome: OutcomeSkipped}
	defer func() {
		if rec := recover(); rec != nil {
			res.Outcome = OutcomeFailed
			res.Error = truncateErr(fmt.Sprintf("panic: %v", rec))
			log.Printf("[runner] building %d: recovered panic: %v", buildingID, rec)
		}
		log.Printf("[runner] building=%d name=%q platform=%s outcome=%s units=%d err=%q",
			res.BuildingID, res.Name, res.Platform, res.Outcome, res.UnitCount, res.Error)
	}()

	// Fresh session scoped to this invocation, closed on all exit paths.
	conn, err := r.cfg.Store.Session(ctx)
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = truncateErr(err.Error())
		return res
	}
	defer conn.Close()

	b, err := store.GetBuilding(ctx, conn, buildingID)
	if errors.Is(err, store.ErrNotFound) {
		res.Error = "building not found"
		return res
	}
	if err != nil {
		res.Outcome = OutcomeFailed
		res.Error = truncateErr(err.Error())
		return res
	}
	res.Name = b.Name

	platform := b.Platform
	if platformOverride != "" {
		platform = platformOverride
	}
	res.Platform = platform

	if scraper.Skippable(platform) {
		return res
	}

	adapter, ok := r.cfg.Registry.Adapter(platform)
	if !ok {
		// No gate slot was ever held for an unresolvable tag.
		return r.finish(ctx, conn, b, nil, errUnknownPlatform, &res)
	}

	if err := r.cfg.Gate.Acquire(ctx, platform); err != nil {
		// Cancelled before any DB write: return promptly without writes.
		res.Error = "cancelled: " + err.Error()
		return res
	}

	units, scrapeErr := r.scrape(ctx, adapter, b, platform)
	res = *r.withPacing(platform, func() *Result {
		out := r.finish(ctx, conn, b, units, scrapeErr, &res)
		r.cfg.Gate.Release(platform)
		return &out
	})
	return res
}

// withPacing runs fn (which must release the gate slot itself) and then
// sleeps the platform's courtesy interval. Pacing happens after release so
// it never extends semaphore hold time.
func (r *Runner) withPacing(platform string, fn func() *Result) *Result {
	out := fn()
	delay := r.cfg.Pacing(platform)
	if d, ok := r.cfg.PacingOverrides[platform]; ok {
		delay = d
	}
	if delay > 0 {
		r.cfg.Sleep(delay)
	}
	return out
}

// scrape invokes the adapter and pipes every raw record through the
// normalizer. Records that fail normalization are dropped individually and
// logged; they never fail the whole scrape. Adapter panics surface as
// scrape errors.
func (r *Runner) scrape(ctx context.Context, adapter scraper.Adapter, b model.Building, platform string) (units []model.Unit, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			units, err = nil, fmt.Errorf("adapter panic: %v", rec)
		}
	}()

	raws, err := adapter.Scrape(ctx, scraper.Target{
		BuildingID:  b.ID,
		Name:        b.Name,
		URL:         b.URL,
		CredentialA: b.CredentialA,
		CredentialB: b.CredentialB,
	})
	if err != nil {
		return nil, err
	}

	units = make([]model.Unit, 0, len(raws))
	for _, raw := range raws {
		u, err := normalize.Record(b.ID, raw)
		if err != nil {
			log.Printf("[runner] building %d (%s): dropping record: %v", b.ID, platform, err)
			continue
		}
		units = append(units, u)
	}
	return units, nil
}

// finish routes both branches through saveScrapeResult and shapes the
// Result. In dry-run mode the DB transaction is skipped entirely.
func (r *Runner) finish(ctx context.Context, conn *sql.Conn, b model.Building, units []model.Unit, scrapeErr error, res *Result) Result {
	out := *res
	now := time.Now().UTC()
	out.ScrapedAt = now

	if r.cfg.DryRun {
		if scrapeErr != nil {
			out.Outcome = OutcomeFailed
			out.Error = truncateErr(scrapeErr.Error())
			return out
		}
		out.Outcome = OutcomeSuccess
		out.UnitCount = len(units)
		return out
	}

	scrapeSucceeded := scrapeErr == nil
	if err := r.saveScrapeResult(ctx, conn, b, units, scrapeSucceeded, scrapeErr, now); err != nil {
		// Persistence failure: the building stays whatever it was.
		out.Outcome = OutcomeFailed
		out.Error = truncateErr(err.Error())
		return out
	}

	if scrapeSucceeded {
		out.Outcome = OutcomeSuccess
		out.UnitCount = len(units)
	} else {
		out.Outcome = OutcomeFailed
		out.Error = truncateErr(scrapeErr.Error())
	}
	return out
}

// saveScrapeResult is the single DB-write path for both the batch and the
// one-off entry points. The scrapeSucceeded switch is the only branch, so
// the two entry points cannot drift.
func (r *Runner) saveScrapeResult(ctx context.Context, conn *sql.Conn, b model.Building, units []model.Unit, scrapeSucceeded bool, scrapeErr error, now time.Time) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin scrape tx for building %d: %w", b.ID, err)
	}
	defer tx.Rollback() //nolint:errcheck

	run := model.ScrapeRun{
		ID:         uuid.NewString(),
		BuildingID: b.ID,
		RunAt:      now,
	}

	if scrapeSucceeded {
		if err := store.ReplaceUnits(ctx, tx, b.ID, units); err != nil {
			return err
		}
		status, zeroCount := nextState(b, len(units))
		if err := store.UpdateBuildingScrapeState(ctx, tx, b.ID, status, now, zeroCount); err != nil {
			return err
		}
		run.Status = model.RunSuccess
		run.UnitCount = len(units)
	} else {
		if r.cfg.ClearOnFailure {
			if err := store.ReplaceUnits(ctx, tx, b.ID, nil); err != nil {
				return err
			}
		}
		// Units retained as last known data; the zero counter is untouched.
		if err := store.UpdateBuildingScrapeState(ctx, tx, b.ID, model.StatusFailed, now, b.ConsecutiveZeroCount); err != nil {
			return err
		}
		run.Status = model.RunFailed
		run.ErrorMessage = truncateErr(scrapeErr.Error())
	}

	if err := store.InsertScrapeRun(ctx, tx, run); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit scrape tx for building %d: %w", b.ID, err)
	}
	return nil
}

// truncateErr caps stored error messages at 500 characters.
func truncateErr(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
