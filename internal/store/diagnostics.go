package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/logger"
)

type CacheStats struct {
	TotalEntries      int   `db:"total_entries" json:"total_entries"`
	ExpiredCount      int   `db:"expired_count" json:"expired_count"`
	TotalSizeEstimate int64 `db:"total_size_estimate" json:"total_size_estimate"`
}

type DatabaseInfo struct {
	SchemaVersion int            `json:"schema_version"`
	PageCount     int64          `json:"page_count"`
	PageSize      int64          `json:"page_size"`
	SizeBytes     int64          `json:"size_bytes"`
	RowCounts     map[string]int `json:"row_counts"`
}

// MaintenanceStep is the outcome of one maintenance action.
type MaintenanceStep struct {
	Name     string        `json:"name"`
	Affected int           `json:"affected"`
	Skipped  bool          `json:"skipped,omitempty"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

func (s MaintenanceStep) MarshalJSON() ([]byte, error) {
	type alias MaintenanceStep
	out := struct {
		alias
		Error string `json:"error,omitempty"`
	}{alias: alias(s)}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

type MaintenanceReport struct {
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Steps     []MaintenanceStep `json:"steps"`
}

// Step returns the named step, or nil.
func (r *MaintenanceReport) Step(name string) *MaintenanceStep {
	for i := range r.Steps {
		if r.Steps[i].Name == name {
			return &r.Steps[i]
		}
	}
	return nil
}

// Failed returns the steps that recorded an error.
func (r *MaintenanceReport) Failed() []MaintenanceStep {
	var failed []MaintenanceStep
	for _, s := range r.Steps {
		if s.Err != nil {
			failed = append(failed, s)
		}
	}
	return failed
}

type MaintenanceOptions struct {
	// StaleProgressAfter prunes progress not updated for this long. Zero skips the step.
	StaleProgressAfter time.Duration
	Vacuum             bool
}

type maintenanceStep struct {
	name    string
	enabled bool
	run     func(ctx context.Context) (int, error)
}

// Diagnostics reports on and maintains the database.
type Diagnostics struct {
	db    *DB
	log   *logger.Logger
	steps []maintenanceStep
}

func NewDiagnostics(db *DB, cache *CacheStore, progress *ProgressStore, opts MaintenanceOptions) *Diagnostics {
	d := &Diagnostics{db: db, log: db.log.WithComponent("diagnostics")}
	d.steps = []maintenanceStep{
		{name: constants.StepSweepExpired, enabled: true, run: cache.SweepExpired},
		{name: constants.StepPruneStaleProgress, enabled: opts.StaleProgressAfter > 0, run: func(ctx context.Context) (int, error) {
			return progress.DeleteStale(ctx, opts.StaleProgressAfter)
		}},
		{name: constants.StepOptimize, enabled: true, run: d.optimize},
		{name: constants.StepVacuum, enabled: opts.Vacuum, run: d.vacuum},
	}
	return d
}

// Stats summarizes the content cache without modifying it.
func (d *Diagnostics) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}
	err := d.db.View(ctx, func(q Queryer) error {
		return q.Get(stats, `
			SELECT
				COUNT(*) AS total_entries,
				COALESCE(SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END), 0) AS expired_count,
				COALESCE(SUM(LENGTH(CAST(claim_id AS BLOB)) + LENGTH(payload) + LENGTH(CAST(tags AS BLOB))), 0) AS total_size_estimate
			FROM content_cache`, toMillis(d.db.Now()))
	})
	if err != nil {
		return nil, wrapErr("diagnostics.stats", err)
	}
	return stats, nil
}

var countedTables = []string{
	constants.CacheTable,
	constants.CacheTagsTable,
	constants.FavoritesTable,
	constants.ProgressTable,
	constants.PlaylistsTable,
	constants.PlaylistItemsTable,
	constants.SettingsTable,
}

func (d *Diagnostics) DatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	if err := d.db.checkReady(); err != nil {
		return nil, wrapErr("diagnostics.database_info", err)
	}
	version, err := NewMigrator(d.db).Version(ctx)
	if err != nil {
		return nil, err
	}

	info := &DatabaseInfo{SchemaVersion: version, RowCounts: make(map[string]int, len(countedTables))}
	err = d.db.View(ctx, func(q Queryer) error {
		if err := q.Get(&info.PageCount, `SELECT page_count FROM pragma_page_count()`); err != nil {
			return err
		}
		if err := q.Get(&info.PageSize, `SELECT page_size FROM pragma_page_size()`); err != nil {
			return err
		}
		for _, table := range countedTables {
			var n int
			if err := q.Get(&n, `SELECT COUNT(*) FROM `+table); err != nil {
				return err
			}
			info.RowCounts[table] = n
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("diagnostics.database_info", err)
	}
	info.SizeBytes = info.PageCount * info.PageSize
	return info, nil
}

// RunMaintenance runs every step in order. A failing step is recorded in
// the report and the remaining steps still run. The returned error is
// non-nil only when the database is not usable at all.
func (d *Diagnostics) RunMaintenance(ctx context.Context) (*MaintenanceReport, error) {
	if err := d.db.checkReady(); err != nil {
		return nil, wrapErr("diagnostics.maintenance", err)
	}

	start := time.Now()
	report := &MaintenanceReport{StartedAt: d.db.Now()}
	for _, step := range d.steps {
		result := MaintenanceStep{Name: step.name}
		if !step.enabled {
			result.Skipped = true
			report.Steps = append(report.Steps, result)
			continue
		}

		stepStart := time.Now()
		result.Affected, result.Err = step.run(ctx)
		result.Duration = time.Since(stepStart)
		if result.Err != nil {
			d.log.Warn("maintenance step failed", "step", step.name, "error", result.Err)
		} else {
			d.log.Debug("maintenance step done", "step", step.name, "affected", result.Affected, "duration", result.Duration)
		}
		report.Steps = append(report.Steps, result)
	}
	report.Duration = time.Since(start)
	return report, nil
}

func (d *Diagnostics) optimize(ctx context.Context) (int, error) {
	err := d.db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.Exec(`PRAGMA optimize`)
		return err
	})
	return 0, wrapErr("diagnostics.optimize", err)
}

// vacuum cannot run inside a transaction, so it takes the database
// exclusively instead.
func (d *Diagnostics) vacuum(ctx context.Context) (int, error) {
	err := d.db.exclusive(ctx, func(ctx context.Context, pool *sqlx.DB) error {
		_, err := pool.ExecContext(ctx, `VACUUM`)
		return err
	})
	return 0, wrapErr("diagnostics.vacuum", err)
}
