package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type progressRow struct {
	ClaimID         string `db:"claim_id"`
	PositionSeconds int64  `db:"position_seconds"`
	DurationSeconds int64  `db:"duration_seconds"`
	Quality         string `db:"quality"`
	UpdatedAt       int64  `db:"updated_at"`
}

func (r *progressRow) toProgress() *domain.Progress {
	return &domain.Progress{
		ClaimID:         r.ClaimID,
		PositionSeconds: r.PositionSeconds,
		DurationSeconds: r.DurationSeconds,
		Quality:         domain.Quality(r.Quality),
		UpdatedAt:       fromMillis(r.UpdatedAt),
	}
}

const progressColumns = `claim_id, position_seconds, duration_seconds, quality, updated_at`

type ProgressStore struct {
	db *DB
}

func NewProgressStore(db *DB) *ProgressStore {
	return &ProgressStore{db: db}
}

// Save validates and upserts the playback position for a claim. Invalid
// input is rejected before the database is touched.
func (s *ProgressStore) Save(ctx context.Context, p *domain.Progress) error {
	if err := p.Validate(); err != nil {
		return err
	}

	row := progressRow{
		ClaimID:         p.ClaimID,
		PositionSeconds: p.PositionSeconds,
		DurationSeconds: p.DurationSeconds,
		Quality:         string(p.Quality),
		UpdatedAt:       toMillis(s.db.Now()),
	}

	err := s.db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.NamedExec(`
			INSERT INTO progress (claim_id, position_seconds, duration_seconds, quality, updated_at)
			VALUES (:claim_id, :position_seconds, :duration_seconds, :quality, :updated_at)
			ON CONFLICT(claim_id) DO UPDATE SET
				position_seconds = excluded.position_seconds,
				duration_seconds = excluded.duration_seconds,
				quality = excluded.quality,
				updated_at = excluded.updated_at
		`, row)
		return err
	})
	return wrapErr("progress.save", err)
}

func (s *ProgressStore) Get(ctx context.Context, claimID string) (*domain.Progress, error) {
	var row progressRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Get(&row, `SELECT `+progressColumns+` FROM progress WHERE claim_id = ?`, claimID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("progress.get", err)
	}
	return row.toProgress(), nil
}

func (s *ProgressStore) Remove(ctx context.Context, claimID string) (bool, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM progress WHERE claim_id = ?`, claimID)
	if err != nil {
		return false, wrapErr("progress.remove", err)
	}
	return n > 0, nil
}

// ListAll returns progress records, most recently updated first.
func (s *ProgressStore) ListAll(ctx context.Context) ([]*domain.Progress, error) {
	var rows []progressRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Select(&rows, `SELECT `+progressColumns+` FROM progress ORDER BY updated_at DESC, claim_id`)
	})
	if err != nil {
		return nil, wrapErr("progress.list", err)
	}

	out := make([]*domain.Progress, len(rows))
	for i := range rows {
		out[i] = rows[i].toProgress()
	}
	return out, nil
}

// DeleteStale removes records not updated within olderThan.
func (s *ProgressStore) DeleteStale(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, &domain.ValidationError{Field: "older_than", Message: "must be positive"}
	}
	cutoff := toMillis(s.db.Now().Add(-olderThan))
	n, err := s.db.execCount(ctx, `DELETE FROM progress WHERE updated_at < ?`, cutoff)
	return n, wrapErr("progress.delete_stale", err)
}
