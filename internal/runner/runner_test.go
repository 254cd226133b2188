package runner

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/aptscan/aptscan/internal/gate"
	"github.com/aptscan/aptscan/internal/model"
	"github.com/aptscan/aptscan/internal/scraper"
	"github.com/aptscan/aptscan/internal/store"
)

type fakeResolver map[string]scraper.Adapter

func (f fakeResolver) Adapter(tag string) (scraper.Adapter, bool) {
	a, ok := f[tag]
	return a, ok
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "aptscan.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedBuilding(t *testing.T, st *store.Store, name, url, platform string) model.Building {
	t.Helper()
	ctx := context.Background()
	if err := st.UpsertBuildingByURL(ctx, model.Building{
		Name: name, URL: url, Platform: platform,
	}); err != nil {
		t.Fatalf("UpsertBuildingByURL: %v", err)
	}
	all, err := st.ListBuildings(ctx)
	if err != nil {
		t.Fatalf("ListBuildings: %v", err)
	}
	for _, b := range all {
		if b.URL == url {
			return b
		}
	}
	t.Fatalf("seeded building %q not found", url)
	return model.Building{}
}

func seedUnits(t *testing.T, st *store.Store, buildingID int64, units []model.Unit) {
	t.Helper()
	ctx := context.Background()
	conn, err := st.Session(ctx)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	defer conn.Close()
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := store.ReplaceUnits(ctx, tx, buildingID, units); err != nil {
		t.Fatalf("ReplaceUnits: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func newTestRunner(st *store.Store, resolver fakeResolver) *Runner {
	return New(Config{
		Store:    st,
		Registry: resolver,
		Gate:     gate.New(nil, scraper.DefaultPermits, nil),
		Sleep:    func(time.Duration) {},
	})
}

func staticAdapter(records []model.RawRecord, err error) scraper.Adapter {
	return scraper.AdapterFunc(func(context.Context, scraper.Target) ([]model.RawRecord, error) {
		return records, err
	})
}

func TestRunHappyPath(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "The Hugo", "https://hugo.example", "sightmap")

	r := newTestRunner(st, fakeResolver{"sightmap": staticAdapter([]model.RawRecord{
		{"unit_number": "615", "bed_type": "1br", "rent": "$2,695", "availability_date": "Available Now"},
		{"unit_number": "802", "bed_type": "2br", "rent": "3400", "availability_date": "2026-10-01"},
	}, nil)})

	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: got %s (%s)", res.Outcome, res.Error)
	}
	if res.UnitCount != 2 {
		t.Errorf("unit count: got %d, want 2", res.UnitCount)
	}

	ctx := context.Background()
	units, err := st.ListUnits(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListUnits: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("stored units: got %d, want 2", len(units))
	}
	if units[0].BedType != "1BR" || units[0].RentCents != 269500 {
		t.Errorf("first unit: %+v", units[0])
	}

	got, err := store.GetBuilding(ctx, stConn(t, st), b.ID)
	if err != nil {
		t.Fatalf("GetBuilding: %v", err)
	}
	if got.LastScrapeStatus != model.StatusSuccess || got.ConsecutiveZeroCount != 0 {
		t.Errorf("building state: status=%s zero=%d", got.LastScrapeStatus, got.ConsecutiveZeroCount)
	}
	if got.LastScrapedAt.IsZero() {
		t.Error("last scraped at not set")
	}

	runs, err := st.ListScrapeRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListScrapeRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunSuccess || runs[0].UnitCount != 2 {
		t.Errorf("runs: %+v", runs)
	}
}

func TestRunFailureRetainsUnits(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Lakeview Tower", "https://lakeview.example", "rentcafe")
	seedUnits(t, st, b.ID, []model.Unit{
		{BuildingID: b.ID, UnitNumber: "101", BedType: "Studio", RentCents: 180000, AvailabilityDate: "2026-09-01", ScrapeRunAt: time.Now()},
	})

	r := newTestRunner(st, fakeResolver{"rentcafe": staticAdapter(nil, errors.New("upstream returned 500"))})

	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s", res.Outcome)
	}

	ctx := context.Background()
	units, err := st.ListUnits(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListUnits: %v", err)
	}
	if len(units) != 1 {
		t.Fatalf("units after failure: got %d, want 1 retained", len(units))
	}

	got, err := store.GetBuilding(ctx, stConn(t, st), b.ID)
	if err != nil {
		t.Fatalf("GetBuilding: %v", err)
	}
	if got.LastScrapeStatus != model.StatusFailed {
		t.Errorf("status: got %s, want failed", got.LastScrapeStatus)
	}

	runs, err := st.ListScrapeRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListScrapeRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunFailed || runs[0].ErrorMessage != "upstream returned 500" {
		t.Errorf("runs: %+v", runs)
	}
}

func TestRunZeroUnitEscalation(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Empty Arms", "https://empty.example", "ppm")

	r := newTestRunner(st, fakeResolver{"ppm": staticAdapter([]model.RawRecord{}, nil)})
	ctx := context.Background()

	for i := 1; i <= model.ZeroUnitThreshold; i++ {
		res := r.Run(ctx, b.ID, "")
		if res.Outcome != OutcomeSuccess {
			t.Fatalf("scrape %d: outcome %s (%s)", i, res.Outcome, res.Error)
		}
		got, err := store.GetBuilding(ctx, stConn(t, st), b.ID)
		if err != nil {
			t.Fatalf("GetBuilding: %v", err)
		}
		if got.ConsecutiveZeroCount != i {
			t.Fatalf("scrape %d: zero count %d", i, got.ConsecutiveZeroCount)
		}
		wantStatus := model.StatusSuccess
		if i >= model.ZeroUnitThreshold {
			wantStatus = model.StatusNeedsAttention
		}
		if got.LastScrapeStatus != wantStatus {
			t.Fatalf("scrape %d: status %s, want %s", i, got.LastScrapeStatus, wantStatus)
		}
	}

	// A non-empty scrape clears the flag and the counter.
	r = newTestRunner(st, fakeResolver{"ppm": staticAdapter([]model.RawRecord{
		{"unit_number": "301", "bed_type": "studio", "rent": "1500", "availability_date": "now"},
	}, nil)})
	if res := r.Run(ctx, b.ID, ""); res.Outcome != OutcomeSuccess {
		t.Fatalf("recovery scrape: %s (%s)", res.Outcome, res.Error)
	}
	got, err := store.GetBuilding(ctx, stConn(t, st), b.ID)
	if err != nil {
		t.Fatalf("GetBuilding: %v", err)
	}
	if got.LastScrapeStatus != model.StatusSuccess || got.ConsecutiveZeroCount != 0 {
		t.Errorf("after recovery: status=%s zero=%d", got.LastScrapeStatus, got.ConsecutiveZeroCount)
	}
}

func TestRunDropsInvalidRecordsOnly(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Mixed Bag", "https://mixed.example", "funnel")

	r := newTestRunner(st, fakeResolver{"funnel": staticAdapter([]model.RawRecord{
		{"unit_number": "1A", "bed_type": "1br", "rent": "Call", "availability_date": "2026-09-01"},
		{"unit_number": "1B", "bed_type": "1br", "rent": "$2,100", "availability_date": "2026-09-01"},
	}, nil)})

	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: %s (%s)", res.Outcome, res.Error)
	}
	if res.UnitCount != 1 {
		t.Errorf("unit count: got %d, want 1 (placeholder rent dropped)", res.UnitCount)
	}

	units, err := st.ListUnits(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ListUnits: %v", err)
	}
	if len(units) != 1 || units[0].UnitNumber != "1B" {
		t.Errorf("stored units: %+v", units)
	}
}

func TestRunSkipPaths(t *testing.T) {
	st := openTestStore(t)
	r := newTestRunner(st, fakeResolver{})
	ctx := context.Background()

	// Absent building.
	if res := r.Run(ctx, 9999, ""); res.Outcome != OutcomeSkipped {
		t.Errorf("absent building: got %s", res.Outcome)
	}

	// Empty and classifier-pending platforms.
	for _, platform := range []string{"", "needs_classification", "dead"} {
		b := seedBuilding(t, st, "skip "+platform, "https://skip.example/"+platform, platform)
		res := r.Run(ctx, b.ID, "")
		if res.Outcome != OutcomeSkipped {
			t.Errorf("platform %q: got %s", platform, res.Outcome)
		}
		runs, err := st.ListScrapeRuns(ctx, b.ID)
		if err != nil {
			t.Fatalf("ListScrapeRuns: %v", err)
		}
		if len(runs) != 0 {
			t.Errorf("platform %q: skipped building must not get audit rows", platform)
		}
	}
}

func TestRunUnknownPlatformIsFailure(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Oddball", "https://oddball.example", "telepathy")

	r := newTestRunner(st, fakeResolver{})
	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s, want failed", res.Outcome)
	}

	ctx := context.Background()
	runs, err := st.ListScrapeRuns(ctx, b.ID)
	if err != nil {
		t.Fatalf("ListScrapeRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunFailed {
		t.Fatalf("runs: %+v", runs)
	}
	if runs[0].ErrorMessage != "unknown platform" {
		t.Errorf("error message: %q", runs[0].ErrorMessage)
	}
}

func TestRunPlatformOverride(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Override Court", "https://override.example", "needs_classification")

	r := newTestRunner(st, fakeResolver{"ppm": staticAdapter([]model.RawRecord{
		{"unit_number": "7C", "bed_type": "2br", "rent": "2900", "availability_date": "2026-11-15"},
	}, nil)})

	res := r.Run(context.Background(), b.ID, "ppm")
	if res.Outcome != OutcomeSuccess {
		t.Fatalf("outcome: %s (%s)", res.Outcome, res.Error)
	}

	// The stored tag is untouched by the override.
	got, err := store.GetBuilding(context.Background(), stConn(t, st), b.ID)
	if err != nil {
		t.Fatalf("GetBuilding: %v", err)
	}
	if got.Platform != "needs_classification" {
		t.Errorf("stored platform changed: %q", got.Platform)
	}
}

func TestRunAdapterPanicIsFailure(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Panic Place", "https://panic.example", "mri")

	r := newTestRunner(st, fakeResolver{"mri": scraper.AdapterFunc(
		func(context.Context, scraper.Target) ([]model.RawRecord, error) {
			panic("selector vanished")
		})})

	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s, want failed", res.Outcome)
	}

	runs, err := st.ListScrapeRuns(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("ListScrapeRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != model.RunFailed {
		t.Fatalf("runs: %+v", runs)
	}
}

func TestRunDryRunWritesNothing(t *testing.T) {
	st := openTestStore(t)
	b := seedBuilding(t, st, "Dry Dock", "https://dry.example", "entrata")

	r := New(Config{
		Store:    st,
		Registry: fakeResolver{"entrata": staticAdapter([]model.RawRecord{{"unit_number": "9F", "bed_type": "1br", "rent": "2000", "availability_date": "now"}}, nil)},
		Gate:     gate.New(nil, scraper.DefaultPermits, nil),
		Sleep:    func(time.Duration) {},
		DryRun:   true,
	})

	res := r.Run(context.Background(), b.ID, "")
	if res.Outcome != OutcomeSuccess || res.UnitCount != 1 {
		t.Fatalf("dry-run result: %+v", res)
	}

	ctx := context.Background()
	if units, _ := st.ListUnits(ctx, b.ID); len(units) != 0 {
		t.Errorf("dry run wrote units: %+v", units)
	}
	if runs, _ := st.ListScrapeRuns(ctx, b.ID); len(runs) != 0 {
		t.Errorf("dry run wrote audit rows: %+v", runs)
	}
	got, err := store.GetBuilding(ctx, stConn(t, st), b.ID)
	if err != nil {
		t.Fatalf("GetBuilding: %v", err)
	}
	if got.LastScrapeStatus != model.StatusNever {
		t.Errorf("dry run changed status: %s", got.LastScrapeStatus)
	}
}

func TestNextState(t *testing.T) {
	tests := []struct {
		name       string
		prior      model.Building
		unitCount  int
		wantStatus model.ScrapeStatus
		wantZero   int
	}{
		{"nonzero resets", model.Building{ConsecutiveZeroCount: 3}, 4, model.StatusSuccess, 0},
		{"first zero", model.Building{}, 0, model.StatusSuccess, 1},
		{"below threshold", model.Building{ConsecutiveZeroCount: 3}, 0, model.StatusSuccess, 4},
		{"hits threshold", model.Building{ConsecutiveZeroCount: 4}, 0, model.StatusNeedsAttention, 5},
		{"past threshold stays flagged", model.Building{ConsecutiveZeroCount: 7, LastScrapeStatus: model.StatusNeedsAttention}, 0, model.StatusNeedsAttention, 8},
		{"recovery from flagged", model.Building{ConsecutiveZeroCount: 6, LastScrapeStatus: model.StatusNeedsAttention}, 2, model.StatusSuccess, 0},
	}
	for _, tc := range tests {
		status, zero := nextState(tc.prior, tc.unitCount)
		if status != tc.wantStatus || zero != tc.wantZero {
			t.Errorf("%s: got (%s, %d), want (%s, %d)", tc.name, status, zero, tc.wantStatus, tc.wantZero)
		}
	}
}

func TestTruncateErr(t *testing.T) {
	long := make([]byte, 600)
	for i := range long {
		long[i] = 'x'
	}
	if got := truncateErr(string(long)); len(got) != 500 {
		t.Errorf("truncated length: %d", len(got))
	}
	if got := truncateErr("short"); got != "short" {
		t.Errorf("short message altered: %q", got)
	}
}

// stConn checks out a session for read-back assertions.
func stConn(t *testing.T, st *store.Store) *sql.Conn {
	t.Helper()
	conn, err := st.Session(context.Background())
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}
