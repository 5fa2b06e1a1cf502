package store

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Tx is a write transaction bound to a context detached from the caller.
type Tx struct {
	tx  *sqlx.Tx
	ctx context.Context
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(t.ctx, query, args...)
}

func (t *Tx) NamedExec(query string, arg any) (sql.Result, error) {
	return t.tx.NamedExecContext(t.ctx, query, arg)
}

func (t *Tx) Get(dest any, query string, args ...any) error {
	return t.tx.GetContext(t.ctx, dest, query, args...)
}

func (t *Tx) Select(dest any, query string, args ...any) error {
	return t.tx.SelectContext(t.ctx, dest, query, args...)
}

// WithTx runs fn inside a write transaction. It commits when fn returns nil
// and rolls back when fn returns an error or panics; a panic is re-raised
// after the rollback.
//
// Only waiting for the writer slot honours ctx. Once the slot is held the
// transaction runs to completion even if ctx is cancelled.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	if err := db.checkReady(); err != nil {
		return err
	}
	return db.withTx(ctx, fn)
}

func (db *DB) withTx(ctx context.Context, fn func(tx *Tx) error) error {
	unlock, err := db.lockWrite(ctx)
	if err != nil {
		return err
	}
	defer unlock()
	return db.runTx(context.WithoutCancel(ctx), fn)
}

// tryWithTx runs fn in a write transaction only if the writer slot is free
// right now. It reports false without running fn when the slot is busy.
func (db *DB) tryWithTx(ctx context.Context, fn func(tx *Tx) error) (bool, error) {
	if err := db.checkReady(); err != nil {
		return false, err
	}
	if !db.writer.TryAcquire(1) {
		return false, nil
	}
	defer db.writer.Release(1)
	if !db.gate.TryAcquire(1) {
		return false, nil
	}
	defer db.gate.Release(1)
	return true, db.runTx(context.WithoutCancel(ctx), fn)
}

func (db *DB) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.pool.BeginTxx(ctx, nil)
	if err != nil {
		return &DBError{Op: "begin", Err: err}
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				db.log.Error("rollback after panic failed", "error", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx, ctx: ctx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			db.log.Error("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &DBError{Op: "commit", Err: err}
	}
	return nil
}

// execCount runs one write statement in its own transaction and returns the
// number of rows it affected.
func (db *DB) execCount(ctx context.Context, query string, args ...any) (int, error) {
	var n int64
	err := db.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.Exec(query, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return int(n), err
}
