// Package sched runs the daily scrape cycle on a cron schedule with overlap
// suppression and startup misfire catch-up.
package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aptscan/aptscan/internal/model"
)

// DefaultTimezone anchors the schedule; the buildings are all in Chicago.
const DefaultTimezone = "America/Chicago"

// CycleRunner is the orchestrator surface the scheduler drives.
type CycleRunner interface {
	RunCycle(ctx context.Context) ([]model.BuildingResult, error)
}

// LastRunSource reports when the most recent scrape attempt ran. Zero time
// means never. Satisfied by *store.Store.
type LastRunSource interface {
	LatestRunAt(ctx context.Context) (time.Time, error)
}

// Config wires a Scheduler.
type Config struct {
	Runner  CycleRunner
	LastRun LastRunSource

	// Schedule is a standard 5-field cron expression, default "0 2 * * *".
	Schedule string
	// Timezone names the schedule's location, default DefaultTimezone.
	Timezone string
	// MisfireGrace is how far past a missed fire a startup catch-up cycle
	// still runs. Default 1h.
	MisfireGrace time.Duration

	// now is injectable for tests.
	now func() time.Time
}

// Scheduler owns the cron loop. A single cycle runs at a time; fires that
// land while one is still running are skipped, not queued.
type Scheduler struct {
	cfg      Config
	cron     *cron.Cron
	entryID  cron.EntryID
	lifeCtx  context.Context
	lifeStop context.CancelFunc

	wg    sync.WaitGroup
	runMu sync.Mutex // held for the duration of a cycle
}

// New creates a Scheduler. The cron expression is validated here so a bad
// schedule fails startup instead of silently never firing.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = "0 2 * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}
	if cfg.MisfireGrace <= 0 {
		cfg.MisfireGrace = time.Hour
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("sched: load timezone %q: %w", cfg.Timezone, err)
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	lifeCtx, lifeStop := context.WithCancel(context.Background())
	s := &Scheduler{cfg: cfg, cron: c, lifeCtx: lifeCtx, lifeStop: lifeStop}

	s.entryID, err = c.AddFunc(cfg.Schedule, s.runCycle)
	if err != nil {
		lifeStop()
		return nil, fmt.Errorf("sched: invalid cron expression %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start launches the cron loop. If the previous scheduled fire was missed
// and still falls inside the misfire grace window, a catch-up cycle runs
// immediately in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	entry := s.cron.Entry(s.entryID)
	now := s.cfg.now()

	lastRun, err := s.cfg.LastRun.LatestRunAt(ctx)
	if err != nil {
		return fmt.Errorf("sched: read latest run: %w", err)
	}
	if fire, missed := missedFire(entry.Schedule, lastRun, now, s.cfg.MisfireGrace); missed {
		log.Printf("[sched] missed fire at %s (last run %s), running catch-up cycle",
			fire.Format(time.RFC3339), formatLastRun(lastRun))
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runCycle()
		}()
	}

	s.cron.Start()
	log.Printf("[sched] schedule %q (%s), next fire %s",
		s.cfg.Schedule, s.cfg.Timezone, entry.Schedule.Next(now).Format(time.RFC3339))
	return nil
}

// Stop cancels the in-flight cycle's context, halts the cron loop, and
// blocks until the cycle has finished its current transactions and
// returned.
func (s *Scheduler) Stop() {
	s.lifeStop()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// runCycle is the single job body for cron fires and the catch-up path.
// TryLock gives both the same overlap suppression: a fire that lands while
// a cycle is running is dropped, not queued.
func (s *Scheduler) runCycle() {
	if !s.runMu.TryLock() {
		log.Print("[sched] cycle still running, skipping fire")
		return
	}
	defer s.runMu.Unlock()

	started := s.cfg.now()
	if _, err := s.cfg.Runner.RunCycle(s.lifeCtx); err != nil {
		log.Printf("[sched] cycle failed after %s: %v", time.Since(started).Round(time.Second), err)
	}
}

// missedFire reports whether the schedule's most recent fire before now was
// never served (no run at or after it) and is still within grace. The cron
// API only exposes Next, so the previous fire is reconstructed from the gap
// between the next two fires.
func missedFire(schedule cron.Schedule, lastRun, now time.Time, grace time.Duration) (time.Time, bool) {
	if schedule == nil {
		return time.Time{}, false
	}
	next := schedule.Next(now)
	interval := schedule.Next(next).Sub(next)
	if interval <= 0 {
		return time.Time{}, false
	}
	prev := next.Add(-interval)
	if prev.After(now) || now.Sub(prev) > grace {
		return time.Time{}, false
	}
	if !lastRun.Before(prev) {
		return time.Time{}, false
	}
	return prev, true
}

func formatLastRun(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Format(time.RFC3339)
}
