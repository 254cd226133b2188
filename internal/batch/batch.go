// Package batch runs one full scrape cycle: registry sync, fan-out of
// per-building runs across a bounded worker pool, result aggregation,
// spreadsheet publishing and audit-row retention.
package batch

import (
	"context"
	"log"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aptscan/aptscan/internal/model"
	"github.com/aptscan/aptscan/internal/runner"
	"github.com/aptscan/aptscan/internal/scraper"
	"github.com/aptscan/aptscan/internal/store"
)

// RunRetention is how long scrape_runs audit rows are kept.
const RunRetention = 30 * 24 * time.Hour

// DefaultWorkers is the fan-out width when the config does not override it.
const DefaultWorkers = 8

// RegistrySyncer pulls the building registry from the spreadsheet into the
// DB before a cycle. Implementations upsert by URL and delete absent rows.
type RegistrySyncer interface {
	SyncRegistry(ctx context.Context) error
}

// StatusPublisher pushes the per-building results of a cycle.
type StatusPublisher interface {
	PublishStatus(ctx context.Context, results []model.BuildingResult) error
}

// AvailabilityPublisher pushes the full current unit inventory.
type AvailabilityPublisher interface {
	PublishAvailability(ctx context.Context) error
}

// Config wires an Orchestrator. Syncer and the publishers are optional;
// nil collaborators are skipped.
type Config struct {
	Store        *store.Store
	Runner       *runner.Runner
	Syncer       RegistrySyncer
	Status       StatusPublisher
	Availability AvailabilityPublisher

	// Workers bounds the per-building fan-out. Zero means DefaultWorkers.
	Workers int
	// SkipSync runs the cycle against the DB as-is.
	SkipSync bool
	// DryRun suppresses sync, publishing and pruning; the runner itself is
	// expected to carry its own dry-run flag.
	DryRun bool
}

// Orchestrator executes scrape cycles. One cycle at a time; overlap
// suppression is the scheduler's job.
type Orchestrator struct {
	cfg Config
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	return &Orchestrator{cfg: cfg}
}

// RunCycle executes one full cycle and returns the per-building aggregate.
// The error return is reserved for orchestrator-level failures (snapshot
// enumeration, cancellation); individual building failures are absorbed
// into the aggregate.
func (o *Orchestrator) RunCycle(ctx context.Context) ([]model.BuildingResult, error) {
	started := time.Now()

	if o.cfg.Syncer != nil && !o.cfg.SkipSync && !o.cfg.DryRun {
		if err := o.cfg.Syncer.SyncRegistry(ctx); err != nil {
			// The cycle proceeds on the last synced registry.
			log.Printf("[batch] registry sync failed, continuing with stored registry: %v", err)
		}
	}

	// Snapshot the scrapeable set once; buildings added mid-cycle wait for
	// the next one.
	buildings, err := o.cfg.Store.ListBuildingsWithPlatform(ctx)
	if err != nil {
		return nil, err
	}
	targets := buildings[:0:0]
	for _, b := range buildings {
		if !scraper.Skippable(b.Platform) {
			targets = append(targets, b)
		}
	}
	log.Printf("[batch] cycle start: %d buildings, %d workers, dry_run=%t",
		len(targets), o.cfg.Workers, o.cfg.DryRun)

	results := make([]model.BuildingResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for i, b := range targets {
		if gctx.Err() != nil {
			// Cancelled: stop dispatching; buildings never started are
			// reported as skipped.
			for j := i; j < len(targets); j++ {
				results[j] = skippedResult(targets[j], "cancelled before start")
			}
			break
		}
		g.Go(func() error {
			res := o.cfg.Runner.Run(gctx, b.ID, "")
			results[i] = model.BuildingResult{
				BuildingID: res.BuildingID,
				Name:       b.Name,
				Platform:   res.Platform,
				Status:     string(res.Outcome),
				UnitCount:  res.UnitCount,
				ScrapedAt:  res.ScrapedAt,
				Error:      res.Error,
			}
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers never return errors

	if err := ctx.Err(); err != nil {
		log.Printf("[batch] cycle cancelled after %s", time.Since(started).Round(time.Millisecond))
		return results, err
	}

	if !o.cfg.DryRun {
		o.publish(ctx, results)
		o.prune(ctx)
	}

	ok, failed, skipped, units := tally(results)
	log.Printf("[batch] cycle done in %s: %d ok, %d failed, %d skipped, %d units",
		time.Since(started).Round(time.Millisecond), ok, failed, skipped, units)
	return results, nil
}

// publish pushes status and availability. Both are best-effort: a
// publishing failure never fails the cycle.
func (o *Orchestrator) publish(ctx context.Context, results []model.BuildingResult) {
	if o.cfg.Status != nil {
		sorted := make([]model.BuildingResult, len(results))
		copy(sorted, results)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		if err := o.cfg.Status.PublishStatus(ctx, sorted); err != nil {
			log.Printf("[batch] status publish failed: %v", err)
		}
	}
	if o.cfg.Availability != nil {
		if err := o.cfg.Availability.PublishAvailability(ctx); err != nil {
			log.Printf("[batch] availability publish failed: %v", err)
		}
	}
}

func (o *Orchestrator) prune(ctx context.Context) {
	n, err := o.cfg.Store.PruneScrapeRuns(ctx, time.Now().UTC().Add(-RunRetention))
	if err != nil {
		log.Printf("[batch] prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("[batch] pruned %d scrape runs older than %s", n, RunRetention)
	}
}

func skippedResult(b model.Building, reason string) model.BuildingResult {
	return model.BuildingResult{
		BuildingID: b.ID,
		Name:       b.Name,
		Platform:   b.Platform,
		Status:     string(runner.OutcomeSkipped),
		Error:      reason,
	}
}

func tally(results []model.BuildingResult) (ok, failed, skipped, units int) {
	for _, r := range results {
		switch r.Status {
		case string(runner.OutcomeSuccess):
			ok++
			units += r.UnitCount
		case string(runner.OutcomeFailed):
			failed++
		default:
			skipped++
		}
	}
	return ok, failed, skipped, units
}
