package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func insertSetting(tx *Tx, key, value string) error {
	_, err := tx.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, 0)`, key, value)
	return err
}

func TestStoresRejectUntilReady(t *testing.T) {
	ctx := context.Background()
	db := connectTestDB(t)
	_, err := NewMigrator(db).Run(ctx)
	require.NoError(t, err)

	_, err = NewCacheStore(db, false).Get(ctx, "x")
	require.ErrorIs(t, err, ErrNotReady)

	err = db.WithTx(ctx, func(tx *Tx) error { return nil })
	require.ErrorIs(t, err, ErrNotReady)

	_, err = db.Acquire(ctx)
	require.ErrorIs(t, err, ErrNotReady)

	db.MarkReady()
	entry, err := NewCacheStore(db, false).Get(ctx, "x")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	err := db.WithTx(ctx, func(tx *Tx) error {
		return insertSetting(tx, "k1", "v1")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key = 'k1'`))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	boom := errors.New("boom")

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := insertSetting(tx, "k1", "v1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key = 'k1'`))
}

func TestWithTxPartialFailureIsAtomic(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	err := db.WithTx(ctx, func(tx *Tx) error {
		if err := insertSetting(tx, "k1", "v1"); err != nil {
			return err
		}
		if err := insertSetting(tx, "k2", "v2"); err != nil {
			return err
		}
		// duplicate key violates ux_settings_key
		return insertSetting(tx, "k1", "again")
	})
	require.Error(t, err)
	assert.True(t, IsConstraint(err), "expected constraint error, got %v", err)
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key IN ('k1', 'k2')`))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	require.PanicsWithValue(t, "kaboom", func() {
		_ = db.WithTx(ctx, func(tx *Tx) error {
			if err := insertSetting(tx, "k1", "v1"); err != nil {
				return err
			}
			panic("kaboom")
		})
	})
	assert.Equal(t, 0, countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key = 'k1'`))

	// the writer slot was released
	err := db.WithTx(ctx, func(tx *Tx) error {
		return insertSetting(tx, "k2", "v2")
	})
	require.NoError(t, err)
}

func TestWithTxIgnoresCancellationOnceStarted(t *testing.T) {
	db, _ := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := db.WithTx(ctx, func(tx *Tx) error {
		cancel()
		if err := insertSetting(tx, "k1", "v1"); err != nil {
			return err
		}
		return insertSetting(tx, "k2", "v2")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key IN ('k1', 'k2')`))
}

func holdWriter(t *testing.T, db *DB) (release func()) {
	t.Helper()
	started := make(chan struct{})
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = db.WithTx(context.Background(), func(tx *Tx) error {
			close(started)
			<-done
			return nil
		})
	}()
	<-started
	return func() {
		close(done)
		wg.Wait()
	}
}

func TestWithTxAcquireTimeout(t *testing.T) {
	clock := newTestClock()
	opts := testOptions(t, clock)
	opts.AcquireTimeout = 50 * time.Millisecond
	db, err := Open(context.Background(), opts)
	require.NoError(t, err)
	defer db.Close()

	release := holdWriter(t, db)
	defer release()

	start := time.Now()
	err = db.WithTx(context.Background(), func(tx *Tx) error { return nil })
	require.ErrorIs(t, err, ErrAcquireTimeout)
	assert.Less(t, time.Since(start), time.Second)

	err = NewSettingsStore(db).Save(context.Background(), "theme", "light")
	require.ErrorIs(t, err, ErrAcquireTimeout)
	var dbErr *DBError
	require.ErrorAs(t, err, &dbErr)
	assert.Equal(t, "settings.save", dbErr.Op)
}

func TestWithTxCancelledWhileWaiting(t *testing.T) {
	db, _ := setupTestDB(t)
	release := holdWriter(t, db)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := db.WithTx(ctx, func(tx *Tx) error {
		t.Error("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadsProceedDuringWrite(t *testing.T) {
	db, _ := setupTestDB(t)
	release := holdWriter(t, db)
	defer release()

	entry, err := NewCacheStore(db, false).Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestTrackedHitDoesNotWaitForWriter(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	cache := NewCacheStore(db, true)
	require.NoError(t, cache.Put(ctx, "movie-123", payload("Movie"), nil, time.Minute))

	release := holdWriter(t, db)
	start := time.Now()
	entry, err := cache.Get(ctx, "movie-123")
	elapsed := time.Since(start)
	release()

	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Less(t, elapsed, 500*time.Millisecond, "tracked hit waited for the writer")
	assert.Zero(t, entry.HitCount, "hit should be skipped while the writer is busy")

	entry, err = cache.Get(ctx, "movie-123")
	require.NoError(t, err)
	assert.EqualValues(t, 1, entry.HitCount)
}

func TestAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)

	conn, err := db.Acquire(ctx)
	require.NoError(t, err)

	var n int
	require.NoError(t, conn.GetContext(ctx, &n, `SELECT COUNT(*) FROM settings`))
	assert.Positive(t, n)

	conn.Release()
	conn.Release()

	conn2, err := db.Acquire(ctx)
	require.NoError(t, err)
	conn2.Release()
}

func TestExclusiveWaitsForReaders(t *testing.T) {
	clock := newTestClock()
	opts := testOptions(t, clock)
	opts.AcquireTimeout = 50 * time.Millisecond
	db, err := Open(context.Background(), opts)
	require.NoError(t, err)
	defer db.Close()

	conn, err := db.Acquire(context.Background())
	require.NoError(t, err)

	err = db.exclusive(context.Background(), func(ctx context.Context, _ *sqlx.DB) error {
		t.Error("exclusive must not run while a reader holds a connection")
		return nil
	})
	require.ErrorIs(t, err, ErrAcquireTimeout)

	conn.Release()
	ran := false
	err = db.exclusive(context.Background(), func(ctx context.Context, _ *sqlx.DB) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestClosedDatabase(t *testing.T) {
	db, _ := setupTestDB(t)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close())

	_, err := NewFavoriteStore(db).ListAll(context.Background())
	require.ErrorIs(t, err, ErrClosed)
	assert.False(t, db.Ready())
}
