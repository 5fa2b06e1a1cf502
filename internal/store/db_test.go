package store

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.UnixMilli(1_700_000_000_000).UTC()}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testOptions(t *testing.T, clock *testClock) Options {
	t.Helper()
	return Options{
		Path:           filepath.Join(t.TempDir(), "test.db"),
		AcquireTimeout: 2 * time.Second,
		MaxReaders:     4,
		Now:            clock.Now,
	}
}

// setupTestDB opens a migrated database in a temp dir.
func setupTestDB(t *testing.T) (*DB, *testClock) {
	t.Helper()
	clock := newTestClock()
	db, err := Open(context.Background(), testOptions(t, clock))
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	t.Cleanup(func() {
		if cErr := db.Close(); cErr != nil {
			t.Logf("db.Close error: %v", cErr)
		}
	})
	return db, clock
}

// connectTestDB opens an unmigrated database.
func connectTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Connect(testOptions(t, newTestClock()))
	if err != nil {
		t.Fatalf("Failed to connect db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func countRows(t *testing.T, db *DB, query string, args ...any) int {
	t.Helper()
	var n int
	err := db.view(context.Background(), func(q Queryer) error {
		return q.Get(&n, query, args...)
	})
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	return n
}

func TestDSN(t *testing.T) {
	got := dsn("/tmp/x.db", 5*time.Second)
	for _, want := range []string{"journal_mode%28WAL%29", "busy_timeout%285000%29", "foreign_keys%281%29", "_txlock=immediate"} {
		if !strings.Contains(got, want) {
			t.Errorf("dsn %q missing %q", got, want)
		}
	}
}

func TestOpenPragmas(t *testing.T) {
	db, _ := setupTestDB(t)

	var mode string
	var fk int
	err := db.View(context.Background(), func(q Queryer) error {
		if err := q.Get(&mode, `PRAGMA journal_mode`); err != nil {
			return err
		}
		return q.Get(&fk, `PRAGMA foreign_keys`)
	})
	if err != nil {
		t.Fatalf("pragma query failed: %v", err)
	}
	if mode != "wal" {
		t.Errorf("Expected journal_mode wal, got %s", mode)
	}
	if fk != 1 {
		t.Errorf("Expected foreign_keys on, got %d", fk)
	}
}

func TestConnectRequiresPath(t *testing.T) {
	if _, err := Connect(Options{}); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestReopenIsNoop(t *testing.T) {
	clock := newTestClock()
	opts := testOptions(t, clock)

	db, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer db.Close()

	history, err := NewMigrator(db).History(context.Background())
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 || history[0].Version != LatestVersion() {
		t.Errorf("Expected a single fresh-schema history row, got %+v", history)
	}
}
