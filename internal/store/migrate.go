package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/logger"
)

// AppliedMigration is a row of the migration history.
type AppliedMigration struct {
	Version     int    `db:"version" json:"version"`
	Description string `db:"description" json:"description"`
	AppliedAt   int64  `db:"applied_at" json:"-"`
}

func (a AppliedMigration) AppliedTime() time.Time {
	return fromMillis(a.AppliedAt)
}

// Migrator brings a database to LatestVersion. A fresh database is created
// directly at the latest schema; an existing one is migrated step by step.
type Migrator struct {
	db         *DB
	log        *logger.Logger
	migrations []Migration
	fresh      []string
}

func NewMigrator(db *DB) *Migrator {
	return &Migrator{
		db:         db,
		log:        db.log.WithComponent("migrator"),
		migrations: migrations,
		fresh:      freshSchema,
	}
}

type schemaState struct {
	hasHistory bool
	version    int
	appTables  []string
}

func (s schemaState) fresh() bool {
	return s.version == 0
}

func (m *Migrator) latest() int {
	return m.migrations[len(m.migrations)-1].Version
}

func (m *Migrator) inspect(ctx context.Context) (schemaState, error) {
	var st schemaState
	err := m.db.view(ctx, func(q Queryer) error {
		var n int
		if err := q.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, constants.MigrationsTable); err != nil {
			return err
		}
		st.hasHistory = n > 0

		if st.hasHistory {
			if err := q.Get(&st.version, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`); err != nil {
				return err
			}
		}

		return q.Select(&st.appTables, `
			SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name <> ?
			ORDER BY name`, constants.MigrationsTable)
	})
	if err != nil {
		return st, &DBError{Op: "inspect schema", Err: err}
	}
	return st, nil
}

// Version returns the current schema version, 0 for a fresh database.
func (m *Migrator) Version(ctx context.Context) (int, error) {
	st, err := m.inspect(ctx)
	if err != nil {
		return 0, err
	}
	return st.version, nil
}

// History lists applied migrations in ascending order.
func (m *Migrator) History(ctx context.Context) ([]AppliedMigration, error) {
	st, err := m.inspect(ctx)
	if err != nil {
		return nil, err
	}
	if !st.hasHistory {
		return nil, nil
	}

	var rows []AppliedMigration
	err = m.db.view(ctx, func(q Queryer) error {
		return q.Select(&rows, `SELECT version, description, applied_at FROM schema_migrations ORDER BY version`)
	})
	if err != nil {
		return nil, &DBError{Op: "migration history", Err: err}
	}
	return rows, nil
}

// Run applies whatever the database needs to reach the latest version and
// returns how many versions that covered. A fresh database reports the
// latest version number; an up-to-date one reports 0.
func (m *Migrator) Run(ctx context.Context) (int, error) {
	if err := validateMigrations(m.migrations); err != nil {
		return 0, err
	}
	st, err := m.inspect(ctx)
	if err != nil {
		return 0, err
	}
	latest := m.latest()

	switch {
	case st.fresh():
		if len(st.appTables) > 0 {
			return 0, &MigrationError{
				Description: fmt.Sprintf("found tables %v", st.appTables),
				Err:         ErrUnexpectedSchema,
			}
		}
		if err := m.createFresh(ctx, st.hasHistory); err != nil {
			return 0, err
		}
		return latest, nil
	case st.version == latest:
		m.log.Debug("schema up to date", "version", st.version)
		return 0, nil
	case st.version > latest:
		return 0, &MigrationError{Version: st.version, Description: fmt.Sprintf("latest known is %d", latest), Err: ErrSchemaTooNew}
	default:
		return m.applyRange(ctx, st.version, latest)
	}
}

// RunTo migrates step by step up to target, never using the fresh path.
// A database without history is bootstrapped at version 0 first.
func (m *Migrator) RunTo(ctx context.Context, target int) (int, error) {
	if err := validateMigrations(m.migrations); err != nil {
		return 0, err
	}
	latest := m.latest()
	if target < 0 || target > latest {
		return 0, fmt.Errorf("%w: target version %d outside 0..%d", ErrInvalidMigrations, target, latest)
	}

	st, err := m.inspect(ctx)
	if err != nil {
		return 0, err
	}
	if st.version > latest {
		return 0, &MigrationError{Version: st.version, Description: fmt.Sprintf("latest known is %d", latest), Err: ErrSchemaTooNew}
	}
	if st.fresh() && len(st.appTables) > 0 {
		return 0, &MigrationError{Description: fmt.Sprintf("found tables %v", st.appTables), Err: ErrUnexpectedSchema}
	}
	if !st.hasHistory {
		err := m.db.withTx(ctx, func(tx *Tx) error {
			_, err := tx.Exec(historyTableDDL)
			return err
		})
		if err != nil {
			return 0, &MigrationError{Description: "create migration history", Statement: historyTableDDL, Err: err}
		}
	}
	if st.version >= target {
		return 0, nil
	}
	return m.applyRange(ctx, st.version, target)
}

// DryRun reports how many migrations Run would apply without executing any.
func (m *Migrator) DryRun(ctx context.Context) (int, error) {
	if err := validateMigrations(m.migrations); err != nil {
		return 0, err
	}
	st, err := m.inspect(ctx)
	if err != nil {
		return 0, err
	}
	latest := m.latest()

	switch {
	case st.fresh():
		if len(st.appTables) > 0 {
			return 0, &MigrationError{Description: fmt.Sprintf("found tables %v", st.appTables), Err: ErrUnexpectedSchema}
		}
		return latest, nil
	case st.version > latest:
		return 0, &MigrationError{Version: st.version, Description: fmt.Sprintf("latest known is %d", latest), Err: ErrSchemaTooNew}
	default:
		return latest - st.version, nil
	}
}

// createFresh builds the latest schema in a single transaction and records
// one history row for the latest version.
func (m *Migrator) createFresh(ctx context.Context, hasHistory bool) error {
	latest := m.migrations[len(m.migrations)-1]
	log := m.log.WithMigration(latest.Version, "fresh schema")

	err := m.db.withTx(ctx, func(tx *Tx) error {
		if !hasHistory {
			if _, err := tx.Exec(historyTableDDL); err != nil {
				return &MigrationError{Version: latest.Version, Description: "create migration history", Statement: historyTableDDL, Err: err}
			}
		}
		for _, stmt := range m.fresh {
			if err := m.exec(tx, stmt); err != nil {
				return &MigrationError{Version: latest.Version, Description: "fresh schema", Statement: stmt, Err: err}
			}
		}
		return m.record(tx, latest.Version, "fresh schema at "+latest.Description)
	})
	if err != nil {
		return asMigrationError(err, latest)
	}

	log.Info("created fresh schema")
	return nil
}

func (m *Migrator) applyRange(ctx context.Context, from, to int) (int, error) {
	applied := 0
	for _, mig := range m.migrations {
		if mig.Version <= from || mig.Version > to {
			continue
		}
		if err := m.apply(ctx, mig); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (m *Migrator) apply(ctx context.Context, mig Migration) error {
	log := m.log.WithMigration(mig.Version, mig.Description)

	start := time.Now()
	err := m.db.withTx(ctx, func(tx *Tx) error {
		for _, stmt := range mig.Statements {
			if err := m.exec(tx, stmt); err != nil {
				return &MigrationError{Version: mig.Version, Description: mig.Description, Statement: stmt, Err: err}
			}
		}
		return m.record(tx, mig.Version, mig.Description)
	})
	if err != nil {
		log.Error("migration failed", "error", err)
		return asMigrationError(err, mig)
	}

	log.Info("applied migration", "duration", time.Since(start))
	return nil
}

// exec runs one migration statement, binding @now when it appears.
func (m *Migrator) exec(tx *Tx, stmt string) error {
	var args []any
	if strings.Contains(stmt, "@now") {
		args = append(args, sql.Named("now", toMillis(m.db.Now())))
	}
	_, err := tx.Exec(stmt, args...)
	return err
}

func (m *Migrator) record(tx *Tx, version int, description string) error {
	_, err := tx.Exec(`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		version, description, toMillis(m.db.Now()))
	if err != nil {
		return &MigrationError{Version: version, Description: description, Statement: "record history", Err: err}
	}
	return nil
}

func asMigrationError(err error, mig Migration) error {
	var me *MigrationError
	if errors.As(err, &me) {
		return me
	}
	return &MigrationError{Version: mig.Version, Description: mig.Description, Err: err}
}
