package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/logger"
)

type cacheRow struct {
	ClaimID        string             `db:"claim_id"`
	Payload        []byte             `db:"payload"`
	Tags           domain.StringSlice `db:"tags"`
	InsertedAt     int64              `db:"inserted_at"`
	ExpiresAt      int64              `db:"expires_at"`
	HitCount       int64              `db:"hit_count"`
	LastAccessedAt sql.NullInt64      `db:"last_accessed_at"`
}

func (r *cacheRow) toEntry() *domain.CacheEntry {
	e := &domain.CacheEntry{
		ClaimID:    r.ClaimID,
		Payload:    json.RawMessage(r.Payload),
		Tags:       r.Tags,
		InsertedAt: fromMillis(r.InsertedAt),
		ExpiresAt:  fromMillis(r.ExpiresAt),
		HitCount:   r.HitCount,
	}
	if r.LastAccessedAt.Valid {
		t := fromMillis(r.LastAccessedAt.Int64)
		e.LastAccessedAt = &t
	}
	return e
}

const cacheColumns = `claim_id, payload, tags, inserted_at, expires_at, hit_count, last_accessed_at`

// CacheStore persists fetched remote content with a TTL and tags.
type CacheStore struct {
	db          *DB
	log         *logger.Logger
	trackAccess bool
}

// NewCacheStore creates a cache store. When trackAccess is set a hit bumps
// the entry's counter, unless a write is in flight; the bump is then skipped
// so reads never wait on the writer.
func NewCacheStore(db *DB, trackAccess bool) *CacheStore {
	return &CacheStore{
		db:          db,
		log:         db.log.WithComponent("cache"),
		trackAccess: trackAccess,
	}
}

func (s *CacheStore) newRow(id string, payload json.RawMessage, tags []string, ttl time.Duration, now time.Time) (*cacheRow, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &domain.ValidationError{Field: "claim_id", Message: "is required"}
	}
	if ttl <= 0 {
		return nil, &domain.ValidationError{Field: "ttl", Message: "must be positive"}
	}
	if len(payload) == 0 || !json.Valid(payload) {
		return nil, &domain.ValidationError{Field: "payload", Message: "must be valid JSON"}
	}
	for _, t := range tags {
		if domain.NormalizeTag(t) == "" {
			return nil, &domain.ValidationError{Field: "tags", Message: "must not contain empty tags"}
		}
	}

	return &cacheRow{
		ClaimID:    id,
		Payload:    []byte(payload),
		Tags:       domain.NormalizeTags(tags),
		InsertedAt: toMillis(now),
		ExpiresAt:  toMillis(now.Add(ttl)),
	}, nil
}

// Put upserts an entry. An existing entry gets the new payload and tags and
// a fresh expiry; its access counters are kept.
func (s *CacheStore) Put(ctx context.Context, id string, payload json.RawMessage, tags []string, ttl time.Duration) error {
	row, err := s.newRow(id, payload, tags, ttl, s.db.Now())
	if err != nil {
		return err
	}
	return wrapErr("cache.put", s.db.WithTx(ctx, func(tx *Tx) error {
		return putRow(tx, row)
	}))
}

// PutMany stores every item in one transaction. Nothing is written if any
// item is invalid.
func (s *CacheStore) PutMany(ctx context.Context, items []domain.RemoteItem, ttl time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	now := s.db.Now()
	rows := make([]*cacheRow, 0, len(items))
	for _, it := range items {
		row, err := s.newRow(it.ClaimID, it.Metadata, it.Tags, ttl, now)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return wrapErr("cache.put_many", s.db.WithTx(ctx, func(tx *Tx) error {
		for _, row := range rows {
			if err := putRow(tx, row); err != nil {
				return err
			}
		}
		return nil
	}))
}

func putRow(tx *Tx, row *cacheRow) error {
	_, err := tx.NamedExec(`
		INSERT INTO content_cache (claim_id, payload, tags, inserted_at, expires_at)
		VALUES (:claim_id, :payload, :tags, :inserted_at, :expires_at)
		ON CONFLICT(claim_id) DO UPDATE SET
			payload = excluded.payload,
			tags = excluded.tags,
			inserted_at = excluded.inserted_at,
			expires_at = excluded.expires_at
	`, row)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", row.ClaimID, err)
	}

	if _, err := tx.Exec(`DELETE FROM content_cache_tags WHERE claim_id = ?`, row.ClaimID); err != nil {
		return fmt.Errorf("clear tags of %s: %w", row.ClaimID, err)
	}
	for _, tag := range row.Tags {
		if _, err := tx.Exec(`INSERT INTO content_cache_tags (claim_id, tag) VALUES (?, ?)`, row.ClaimID, tag); err != nil {
			return fmt.Errorf("tag %s with %q: %w", row.ClaimID, tag, err)
		}
	}
	return nil
}

// Get returns the live entry for id, or nil when it is absent or expired.
func (s *CacheStore) Get(ctx context.Context, id string) (*domain.CacheEntry, error) {
	now := s.db.Now()

	var row cacheRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Get(&row, `SELECT `+cacheColumns+` FROM content_cache WHERE claim_id = ? AND expires_at > ?`,
			id, toMillis(now))
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("cache.get", err)
	}

	entry := row.toEntry()
	if s.trackAccess {
		recorded, err := s.touch(ctx, id, now)
		switch {
		case err != nil:
			s.log.WithClaim(id).Warn("failed to record cache hit", "error", err)
		case !recorded:
			s.log.WithClaim(id).Debug("cache hit not recorded, writer busy")
		default:
			entry.HitCount++
			entry.LastAccessedAt = &now
		}
	}
	return entry, nil
}

func (s *CacheStore) touch(ctx context.Context, id string, now time.Time) (bool, error) {
	return s.db.tryWithTx(ctx, func(tx *Tx) error {
		_, err := tx.Exec(`UPDATE content_cache SET hit_count = hit_count + 1, last_accessed_at = ? WHERE claim_id = ?`,
			toMillis(now), id)
		return err
	})
}

// InvalidateByTag deletes every entry carrying tag, expired or not, and
// returns how many were removed.
func (s *CacheStore) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tag = domain.NormalizeTag(tag)
	if tag == "" {
		return 0, &domain.ValidationError{Field: "tag", Message: "is required"}
	}

	removed, err := s.db.execCount(ctx, `
		DELETE FROM content_cache
		WHERE claim_id IN (SELECT claim_id FROM content_cache_tags WHERE tag = ?)`, tag)
	if err != nil {
		return 0, wrapErr("cache.invalidate_by_tag", err)
	}

	s.log.Debug("invalidated tag", "tag", tag, "removed", removed)
	return removed, nil
}

// SweepExpired deletes every entry whose expiry has passed.
func (s *CacheStore) SweepExpired(ctx context.Context) (int, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM content_cache WHERE expires_at <= ?`, toMillis(s.db.Now()))
	return n, wrapErr("cache.sweep_expired", err)
}

// InvalidateOne deletes a single entry and reports whether it existed.
func (s *CacheStore) InvalidateOne(ctx context.Context, id string) (bool, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM content_cache WHERE claim_id = ?`, id)
	if err != nil {
		return false, wrapErr("cache.invalidate_one", err)
	}
	return n > 0, nil
}

// Clear drops every cache entry.
func (s *CacheStore) Clear(ctx context.Context) (int, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM content_cache`)
	return n, wrapErr("cache.clear", err)
}

// ListByTag returns the live entries carrying tag, ordered by claim id.
func (s *CacheStore) ListByTag(ctx context.Context, tag string) ([]*domain.CacheEntry, error) {
	tag = domain.NormalizeTag(tag)
	if tag == "" {
		return nil, &domain.ValidationError{Field: "tag", Message: "is required"}
	}

	var rows []cacheRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Select(&rows, `
			SELECT c.claim_id, c.payload, c.tags, c.inserted_at, c.expires_at, c.hit_count, c.last_accessed_at
			FROM content_cache c
			JOIN content_cache_tags t ON t.claim_id = c.claim_id
			WHERE t.tag = ? AND c.expires_at > ?
			ORDER BY c.claim_id`, tag, toMillis(s.db.Now()))
	})
	if err != nil {
		return nil, wrapErr("cache.list_by_tag", err)
	}

	entries := make([]*domain.CacheEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].toEntry()
	}
	return entries, nil
}

// GetValue reads a cached entry and decodes its payload into a T.
func GetValue[T any](ctx context.Context, s *CacheStore, id string) (*T, error) {
	entry, err := s.Get(ctx, id)
	if err != nil || entry == nil {
		return nil, err
	}
	var v T
	if err := entry.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}

// PutValue encodes v as JSON and caches it.
func PutValue[T any](ctx context.Context, s *CacheStore, id string, v T, tags []string, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", id, err)
	}
	return s.Put(ctx, id, payload, tags, ttl)
}
