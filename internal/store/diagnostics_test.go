package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
)

func setupDiagnostics(t *testing.T, opts MaintenanceOptions) (*Diagnostics, *CacheStore, *ProgressStore, *testClock) {
	t.Helper()
	db, clock := setupTestDB(t)
	cache := NewCacheStore(db, false)
	progress := NewProgressStore(db)
	return NewDiagnostics(db, cache, progress, opts), cache, progress, clock
}

func TestDiagnostics_Stats(t *testing.T) {
	ctx := context.Background()
	diag, cache, _, clock := setupDiagnostics(t, MaintenanceOptions{})

	stats, err := diag.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 0 || stats.ExpiredCount != 0 || stats.TotalSizeEstimate != 0 {
		t.Errorf("Expected empty stats, got %+v", stats)
	}

	_ = cache.Put(ctx, "ab", json.RawMessage(`{"x":1}`), []string{"t"}, time.Second)
	_ = cache.Put(ctx, "cd", json.RawMessage(`[]`), nil, time.Hour)
	clock.Advance(time.Second)

	stats, err = diag.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalEntries != 2 {
		t.Errorf("Expected 2 entries, got %d", stats.TotalEntries)
	}
	if stats.ExpiredCount != 1 {
		t.Errorf("Expected 1 expired, got %d", stats.ExpiredCount)
	}
	// ids 2+2, payloads 7+2, tags `["t"]` 5 + `[]` 2
	if stats.TotalSizeEstimate != 20 {
		t.Errorf("Expected size estimate 20, got %d", stats.TotalSizeEstimate)
	}

	// stats never sweep
	again, _ := diag.Stats(ctx)
	if again.TotalEntries != 2 {
		t.Errorf("Expected Stats to be read-only, got %d entries", again.TotalEntries)
	}
}

func TestDiagnostics_RunMaintenance(t *testing.T) {
	ctx := context.Background()
	diag, cache, progress, clock := setupDiagnostics(t, MaintenanceOptions{
		StaleProgressAfter: 24 * time.Hour,
		Vacuum:             true,
	})

	_ = cache.Put(ctx, "old", json.RawMessage(`{}`), nil, time.Minute)
	_ = progress.Save(ctx, &domain.Progress{ClaimID: "p", Quality: domain.QualityAuto})
	clock.Advance(48 * time.Hour)

	report, err := diag.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}

	wantSteps := []string{constants.StepSweepExpired, constants.StepPruneStaleProgress, constants.StepOptimize, constants.StepVacuum}
	if len(report.Steps) != len(wantSteps) {
		t.Fatalf("Expected %d steps, got %d", len(wantSteps), len(report.Steps))
	}
	for i, name := range wantSteps {
		step := report.Steps[i]
		if step.Name != name {
			t.Errorf("Step %d: expected %s, got %s", i, name, step.Name)
		}
		if step.Err != nil || step.Skipped {
			t.Errorf("Step %s: unexpected err=%v skipped=%v", name, step.Err, step.Skipped)
		}
	}
	if report.Step(constants.StepSweepExpired).Affected != 1 {
		t.Errorf("Expected 1 swept entry, got %d", report.Step(constants.StepSweepExpired).Affected)
	}
	if report.Step(constants.StepPruneStaleProgress).Affected != 1 {
		t.Errorf("Expected 1 pruned progress record, got %d", report.Step(constants.StepPruneStaleProgress).Affected)
	}
	if len(report.Failed()) != 0 {
		t.Errorf("Expected no failures, got %+v", report.Failed())
	}
}

func TestDiagnostics_SkipsDisabledSteps(t *testing.T) {
	diag, _, _, _ := setupDiagnostics(t, MaintenanceOptions{})

	report, err := diag.RunMaintenance(context.Background())
	if err != nil {
		t.Fatalf("RunMaintenance failed: %v", err)
	}
	if !report.Step(constants.StepVacuum).Skipped {
		t.Error("Expected vacuum to be skipped")
	}
	if !report.Step(constants.StepPruneStaleProgress).Skipped {
		t.Error("Expected progress pruning to be skipped")
	}
	if report.Step(constants.StepOptimize).Skipped {
		t.Error("Expected optimize to run")
	}
}

func TestDiagnostics_FailedStepDoesNotAbort(t *testing.T) {
	ctx := context.Background()
	diag, cache, _, clock := setupDiagnostics(t, MaintenanceOptions{})

	_ = cache.Put(ctx, "old", json.RawMessage(`{}`), nil, time.Second)
	clock.Advance(time.Minute)

	boom := errors.New("disk on fire")
	diag.steps = append([]maintenanceStep{{
		name:    "broken",
		enabled: true,
		run:     func(context.Context) (int, error) { return 0, boom },
	}}, diag.steps...)

	report, err := diag.RunMaintenance(ctx)
	if err != nil {
		t.Fatalf("RunMaintenance returned error: %v", err)
	}
	if !errors.Is(report.Step("broken").Err, boom) {
		t.Errorf("Expected broken step to record error, got %v", report.Step("broken").Err)
	}
	if report.Step(constants.StepSweepExpired).Affected != 1 {
		t.Error("Expected sweep to run after failed step")
	}
	if len(report.Failed()) != 1 {
		t.Errorf("Expected exactly one failed step, got %d", len(report.Failed()))
	}

	b, err := json.Marshal(report.Step("broken"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(b), "disk on fire") {
		t.Errorf("Expected error in JSON, got %s", b)
	}
}

func TestDiagnostics_NotReady(t *testing.T) {
	db := connectTestDB(t)
	diag := NewDiagnostics(db, NewCacheStore(db, false), NewProgressStore(db), MaintenanceOptions{})

	if _, err := diag.RunMaintenance(context.Background()); !errors.Is(err, ErrNotReady) {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestDiagnostics_DatabaseInfo(t *testing.T) {
	ctx := context.Background()
	diag, cache, _, _ := setupDiagnostics(t, MaintenanceOptions{})
	_ = cache.Put(ctx, "a", json.RawMessage(`{}`), []string{"x", "y"}, time.Minute)

	info, err := diag.DatabaseInfo(ctx)
	if err != nil {
		t.Fatalf("DatabaseInfo failed: %v", err)
	}
	if info.SchemaVersion != LatestVersion() {
		t.Errorf("Expected version %d, got %d", LatestVersion(), info.SchemaVersion)
	}
	if info.SizeBytes <= 0 || info.SizeBytes != info.PageCount*info.PageSize {
		t.Errorf("Unexpected size: %+v", info)
	}
	if info.RowCounts[constants.CacheTable] != 1 || info.RowCounts[constants.CacheTagsTable] != 2 {
		t.Errorf("Unexpected row counts: %v", info.RowCounts)
	}
	if info.RowCounts[constants.SettingsTable] != len(constants.DefaultSettings) {
		t.Errorf("Expected seeded settings counted, got %d", info.RowCounts[constants.SettingsTable])
	}
}
