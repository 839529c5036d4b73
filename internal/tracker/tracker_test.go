package tracker_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"cleanflow/internal/db"
	"cleanflow/internal/domain"
	"cleanflow/internal/engine"
	"cleanflow/internal/engine/access"
	"cleanflow/internal/migrate"
	"cleanflow/internal/tracker"
)

func newTestTracker(t *testing.T) (tracker.Tracker, engine.Engine, access.Identity, string) {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, nil)
	ctx := context.Background()

	adminProfile, err := eng.SignupResident(ctx, engine.SignupOptions{FullName: "Admin", Email: "admin@test"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.ExecContext(ctx, `UPDATE roles SET role='admin' WHERE account_id=?`, adminProfile.ID); err != nil {
		t.Fatal(err)
	}
	admin, err := eng.Gate.Authorize(ctx, adminProfile.ID)
	if err != nil {
		t.Fatal(err)
	}
	agent, err := eng.CreateCollector(ctx, admin, engine.CollectorCreateOptions{
		FullName:      "Collector",
		Email:         "collector@test",
		VehicleNumber: "BJL-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	collector, err := eng.Gate.Authorize(ctx, agent.AccountID)
	if err != nil {
		t.Fatal(err)
	}
	tr := tracker.Tracker{
		Repo: eng.Repo,
		Now:  func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
	return tr, eng, collector, agent.ID
}

func TestReportStoresPosition(t *testing.T) {
	tr, eng, collector, agentID := newTestTracker(t)
	ctx := context.Background()

	c, err := tr.Report(ctx, collector, 13.4432, -16.6915)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if c.CurrentLat == nil || *c.CurrentLat != 13.4432 {
		t.Fatalf("lat = %v", c.CurrentLat)
	}
	if c.LastLocationUpdate == nil || *c.LastLocationUpdate != "2025-06-01T12:00:00Z" {
		t.Fatalf("last_location_update = %v", c.LastLocationUpdate)
	}

	got, err := eng.Repo.GetCollector(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentLng == nil || *got.CurrentLng != -16.6915 {
		t.Fatalf("stored lng = %v", got.CurrentLng)
	}
}

func TestReportLastWriteWins(t *testing.T) {
	tr, eng, collector, agentID := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.Report(ctx, collector, 10, 10); err != nil {
		t.Fatal(err)
	}
	if _, err := tr.Report(ctx, collector, 20, 20); err != nil {
		t.Fatal(err)
	}
	got, err := eng.Repo.GetCollector(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if *got.CurrentLat != 20 || *got.CurrentLng != 20 {
		t.Fatalf("position = (%v, %v), want (20, 20)", *got.CurrentLat, *got.CurrentLng)
	}
}

func TestReportRejectsBadSamples(t *testing.T) {
	tr, eng, collector, agentID := newTestTracker(t)
	ctx := context.Background()

	if _, err := tr.Report(ctx, collector, 13, -16); err != nil {
		t.Fatal(err)
	}
	samples := [][2]float64{
		{91, 0},
		{-91, 0},
		{0, 181},
		{0, -181},
		{math.NaN(), 0},
		{0, math.Inf(1)},
	}
	for _, s := range samples {
		_, err := tr.Report(ctx, collector, s[0], s[1])
		var re tracker.RangeError
		if !errors.As(err, &re) {
			t.Fatalf("sample (%v, %v): expected RangeError, got %v", s[0], s[1], err)
		}
	}

	// Rejected samples must not clobber the stored position.
	got, err := eng.Repo.GetCollector(ctx, agentID)
	if err != nil {
		t.Fatal(err)
	}
	if *got.CurrentLat != 13 || *got.CurrentLng != -16 {
		t.Fatalf("position mutated: (%v, %v)", *got.CurrentLat, *got.CurrentLng)
	}
}

func TestReportRequiresCollectorRole(t *testing.T) {
	tr, _, _, _ := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Report(ctx, access.Identity{AccountID: "x", Role: domain.RoleResident, Approved: true}, 13, -16)
	var fe access.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

type countingSource struct {
	mu    sync.Mutex
	calls int
}

func (s *countingSource) Sample(ctx context.Context) (float64, float64, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return 13.2, -16.7, nil
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestSamplerStopIsSynchronous(t *testing.T) {
	tr, eng, collector, agentID := newTestTracker(t)
	src := &countingSource{}
	s := &tracker.Sampler{
		Tracker:  tr,
		Source:   src,
		Identity: collector,
		Interval: 10 * time.Millisecond,
	}
	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	got, err := eng.Repo.GetCollector(context.Background(), agentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CurrentLat == nil || *got.CurrentLat != 13.2 {
		t.Fatalf("sampler wrote nothing: %v", got.CurrentLat)
	}

	// After Stop returns no further samples may be taken.
	n := src.count()
	if n == 0 {
		t.Fatal("source never sampled")
	}
	time.Sleep(30 * time.Millisecond)
	if src.count() != n {
		t.Fatal("sample taken after Stop")
	}
}
