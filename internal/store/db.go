package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jmoiron/sqlx"
	"golang.org/x/sync/semaphore"
	_ "modernc.org/sqlite"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/logger"
)

// Options configures a database handle.
type Options struct {
	Path           string
	BusyTimeout    time.Duration
	AcquireTimeout time.Duration
	MaxReaders     int
	Logger         *logger.Logger
	// Now is the clock used for every timestamp. Defaults to time.Now.
	Now func() time.Time
}

func (o *Options) setDefaults() {
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = constants.DefaultBusyTimeout
	}
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = constants.DefaultAcquireTimeout
	}
	if o.MaxReaders <= 0 {
		o.MaxReaders = constants.DefaultMaxReaders
	}
	if o.Logger == nil {
		o.Logger = logger.Discard()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// DB owns the SQLite connection pool. Writes are serialized through a single
// writer slot; reads share a gate that exclusive operations drain completely.
type DB struct {
	pool *sqlx.DB
	log  *logger.Logger
	now  func() time.Time

	acquireTimeout time.Duration
	maxReaders     int64
	writer         *semaphore.Weighted
	gate           *semaphore.Weighted

	ready  atomic.Bool
	closed atomic.Bool
}

func dsn(path string, busy time.Duration) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return path + "?" + q.Encode()
}

// Connect opens the database file without migrating it. The returned handle
// rejects store operations until MarkReady is called.
func Connect(opts Options) (*DB, error) {
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	opts.setDefaults()

	pool, err := sqlx.Open("sqlite", dsn(opts.Path, opts.BusyTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	pool.SetMaxOpenConns(opts.MaxReaders + 1)
	pool.SetMaxIdleConns(opts.MaxReaders + 1)

	if err := pool.Ping(); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &DB{
		pool:           pool,
		log:            opts.Logger.WithComponent("store"),
		now:            opts.Now,
		acquireTimeout: opts.AcquireTimeout,
		maxReaders:     int64(opts.MaxReaders),
		writer:         semaphore.NewWeighted(1),
		gate:           semaphore.NewWeighted(int64(opts.MaxReaders)),
	}, nil
}

// Open connects, runs all pending migrations and marks the handle ready.
// A migration failure closes the pool and returns the *MigrationError.
func Open(ctx context.Context, opts Options) (*DB, error) {
	db, err := Connect(opts)
	if err != nil {
		return nil, err
	}

	applied, err := NewMigrator(db).Run(ctx)
	if err != nil {
		if cErr := db.Close(); cErr != nil {
			db.log.Warn("close after failed migration", "error", cErr)
		}
		return nil, err
	}

	db.MarkReady()
	db.log.Info("database ready", "path", opts.Path, "applied_migrations", applied)
	return db, nil
}

// MarkReady lifts the startup barrier.
func (db *DB) MarkReady() {
	db.ready.Store(true)
}

func (db *DB) Ready() bool {
	return db.ready.Load() && !db.closed.Load()
}

// Now returns the current time from the configured clock.
func (db *DB) Now() time.Time {
	return db.now()
}

func (db *DB) Logger() *logger.Logger {
	return db.log
}

func (db *DB) Close() error {
	if !db.closed.CompareAndSwap(false, true) {
		return nil
	}
	return db.pool.Close()
}

func (db *DB) checkReady() error {
	if db.closed.Load() {
		return ErrClosed
	}
	if !db.ready.Load() {
		return ErrNotReady
	}
	return nil
}

// acquireSlot waits for n units of sem, bounded by the acquire timeout.
// Caller cancellation is reported as the context error.
func (db *DB) acquireSlot(ctx context.Context, sem *semaphore.Weighted, n int64) error {
	if db.closed.Load() {
		return ErrClosed
	}
	waitCtx, cancel := context.WithTimeout(ctx, db.acquireTimeout)
	defer cancel()

	if err := sem.Acquire(waitCtx, n); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrAcquireTimeout
	}
	return nil
}

// lockWrite takes the writer slot plus one gate unit.
func (db *DB) lockWrite(ctx context.Context) (func(), error) {
	if err := db.acquireSlot(ctx, db.writer, 1); err != nil {
		return nil, err
	}
	if err := db.acquireSlot(ctx, db.gate, 1); err != nil {
		db.writer.Release(1)
		return nil, err
	}
	return func() {
		db.gate.Release(1)
		db.writer.Release(1)
	}, nil
}

func (db *DB) lockRead(ctx context.Context) (func(), error) {
	if err := db.acquireSlot(ctx, db.gate, 1); err != nil {
		return nil, err
	}
	return func() { db.gate.Release(1) }, nil
}

// lockExclusive drains every reader and the writer.
func (db *DB) lockExclusive(ctx context.Context) (func(), error) {
	if err := db.acquireSlot(ctx, db.writer, 1); err != nil {
		return nil, err
	}
	if err := db.acquireSlot(ctx, db.gate, db.maxReaders); err != nil {
		db.writer.Release(1)
		return nil, err
	}
	return func() {
		db.gate.Release(db.maxReaders)
		db.writer.Release(1)
	}, nil
}

// Conn is a pooled connection checked out with Acquire.
type Conn struct {
	*sqlx.Conn
	release func()
	once    sync.Once
}

// Release returns the connection to the pool. Safe to call more than once.
func (c *Conn) Release() {
	c.once.Do(func() {
		_ = c.Conn.Close()
		c.release()
	})
}

// Acquire checks out a read connection. It waits while the database is in
// exclusive use, up to the acquire timeout.
func (db *DB) Acquire(ctx context.Context) (*Conn, error) {
	if err := db.checkReady(); err != nil {
		return nil, &DBError{Op: "acquire", Err: err}
	}
	unlock, err := db.lockRead(ctx)
	if err != nil {
		return nil, &DBError{Op: "acquire", Err: err}
	}
	conn, err := db.pool.Connx(ctx)
	if err != nil {
		unlock()
		return nil, &DBError{Op: "acquire", Err: err}
	}
	return &Conn{Conn: conn, release: unlock}, nil
}

// Queryer is the read surface shared by View and Tx.
type Queryer interface {
	Get(dest any, query string, args ...any) error
	Select(dest any, query string, args ...any) error
}

type reader struct {
	pool *sqlx.DB
	ctx  context.Context
}

func (r reader) Get(dest any, query string, args ...any) error {
	return r.pool.GetContext(r.ctx, dest, query, args...)
}

func (r reader) Select(dest any, query string, args ...any) error {
	return r.pool.SelectContext(r.ctx, dest, query, args...)
}

// View runs fn on the shared read path.
func (db *DB) View(ctx context.Context, fn func(q Queryer) error) error {
	if err := db.checkReady(); err != nil {
		return err
	}
	return db.view(ctx, fn)
}

func (db *DB) view(ctx context.Context, fn func(q Queryer) error) error {
	unlock, err := db.lockRead(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(reader{pool: db.pool, ctx: ctx})
}

// exclusive runs fn with every other reader and writer drained. The
// statement itself is detached from caller cancellation.
func (db *DB) exclusive(ctx context.Context, fn func(ctx context.Context, pool *sqlx.DB) error) error {
	if err := db.checkReady(); err != nil {
		return err
	}
	unlock, err := db.lockExclusive(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return fn(context.WithoutCancel(ctx), db.pool)
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
