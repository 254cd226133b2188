package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aptscan/aptscan/internal/model"
)

type fakeRunner struct {
	calls atomic.Int32
	block chan struct{} // when non-nil, RunCycle waits on it
	done  atomic.Int32
}

func (f *fakeRunner) RunCycle(ctx context.Context) ([]model.BuildingResult, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.done.Add(1)
	return nil, nil
}

type fakeLastRun struct{ t time.Time }

func (f fakeLastRun) LatestRunAt(context.Context) (time.Time, error) { return f.t, nil }

func mustSchedule(t *testing.T, expr string) cron.Schedule {
	t.Helper()
	s, err := cron.ParseStandard(expr)
	if err != nil {
		t.Fatalf("ParseStandard(%q): %v", expr, err)
	}
	return s
}

func TestMissedFire(t *testing.T) {
	sched := mustSchedule(t, "0 2 * * *")
	day := func(hour, min int) time.Time {
		return time.Date(2026, 8, 24, hour, min, 0, 0, time.UTC)
	}

	tests := []struct {
		name    string
		lastRun time.Time
		now     time.Time
		grace   time.Duration
		want    bool
	}{
		{"never ran, inside grace", time.Time{}, day(2, 30), time.Hour, true},
		{"stale run, inside grace", day(2, 0).Add(-24 * time.Hour), day(2, 30), time.Hour, true},
		{"fire already served", day(2, 10), day(2, 30), time.Hour, false},
		{"outside grace", time.Time{}, day(4, 0), time.Hour, false},
		{"exactly at fire", time.Time{}, day(2, 0), time.Hour, true},
	}
	for _, tc := range tests {
		fire, missed := missedFire(sched, tc.lastRun, tc.now, tc.grace)
		if missed != tc.want {
			t.Errorf("%s: missed = %t, want %t", tc.name, missed, tc.want)
			continue
		}
		if missed && !fire.Equal(day(2, 0)) {
			t.Errorf("%s: fire = %s, want %s", tc.name, fire, day(2, 0))
		}
	}

	if _, missed := missedFire(nil, time.Time{}, day(2, 30), time.Hour); missed {
		t.Error("nil schedule must never report a missed fire")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	_, err := New(Config{
		Runner:   &fakeRunner{},
		LastRun:  fakeLastRun{},
		Schedule: "not a cron line",
	})
	if err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestNewRejectsBadTimezone(t *testing.T) {
	_, err := New(Config{
		Runner:   &fakeRunner{},
		LastRun:  fakeLastRun{},
		Timezone: "Mars/Olympus_Mons",
	})
	if err == nil {
		t.Fatal("expected error for unknown timezone")
	}
}

func TestStartRunsCatchUpCycle(t *testing.T) {
	runner := &fakeRunner{}
	// Fix "now" to 02:30 Chicago time so the 02:00 fire was missed half an
	// hour ago, inside the default 1h grace.
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2026, 8, 24, 2, 30, 0, 0, loc)

	s, err := New(Config{
		Runner:  runner,
		LastRun: fakeLastRun{},
		now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)

	deadline := time.After(time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("catch-up cycle never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartSkipsCatchUpWhenServed(t *testing.T) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2026, 8, 24, 2, 30, 0, 0, loc)

	runner := &fakeRunner{}
	s, err := New(Config{
		Runner:  runner,
		LastRun: fakeLastRun{t: now.Add(-20 * time.Minute)}, // ran at 02:10
		now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()

	if runner.calls.Load() != 0 {
		t.Errorf("catch-up ran despite the fire being served: %d calls", runner.calls.Load())
	}
}

func TestStopWaitsForInFlightCycle(t *testing.T) {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	now := time.Date(2026, 8, 24, 2, 30, 0, 0, loc)

	runner := &fakeRunner{block: make(chan struct{})}
	s, err := New(Config{
		Runner:  runner,
		LastRun: fakeLastRun{},
		now:     func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.After(time.Second)
	for runner.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("catch-up cycle never started")
		case <-time.After(5 * time.Millisecond):
		}
	}

	close(runner.block)
	s.Stop()
	if runner.done.Load() != 1 {
		t.Error("Stop returned before the in-flight cycle finished")
	}
}
