package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type playlistRow struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	CreatedAt int64  `db:"created_at"`
	UpdatedAt int64  `db:"updated_at"`
}

type playlistItemRow struct {
	PlaylistID string `db:"playlist_id"`
	ClaimID    string `db:"claim_id"`
	Position   int    `db:"position"`
	AddedAt    int64  `db:"added_at"`
}

func (r *playlistRow) toPlaylist(items []playlistItemRow) *domain.Playlist {
	p := &domain.Playlist{
		ID:        r.ID,
		Name:      r.Name,
		Items:     make([]domain.PlaylistItem, 0, len(items)),
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
	for _, it := range items {
		p.Items = append(p.Items, domain.PlaylistItem{
			ClaimID:  it.ClaimID,
			Position: it.Position,
			AddedAt:  fromMillis(it.AddedAt),
		})
	}
	return p
}

type PlaylistStore struct {
	db *DB
}

func NewPlaylistStore(db *DB) *PlaylistStore {
	return &PlaylistStore{db: db}
}

// Save upserts the playlist and replaces its items. Positions are taken
// from slice order. An empty ID is filled with a new UUID.
func (s *PlaylistStore) Save(ctx context.Context, p *domain.Playlist) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	now := s.db.Now()
	nowMs := toMillis(now)
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.Exec(`
			INSERT INTO playlists (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at
		`, p.ID, strings.TrimSpace(p.Name), nowMs, nowMs)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ?`, p.ID); err != nil {
			return err
		}
		for i := range p.Items {
			it := &p.Items[i]
			it.Position = i
			if it.AddedAt.IsZero() {
				it.AddedAt = now
			}
			_, err := tx.Exec(`INSERT INTO playlist_items (playlist_id, claim_id, position, added_at) VALUES (?, ?, ?, ?)`,
				p.ID, it.ClaimID, it.Position, toMillis(it.AddedAt))
			if err != nil {
				return err
			}
		}

		var row playlistRow
		if err := tx.Get(&row, `SELECT id, name, created_at, updated_at FROM playlists WHERE id = ?`, p.ID); err != nil {
			return err
		}
		p.Name = row.Name
		p.CreatedAt = fromMillis(row.CreatedAt)
		p.UpdatedAt = fromMillis(row.UpdatedAt)
		return nil
	})
	return wrapErr("playlists.save", err)
}

// Create makes an empty playlist with a generated ID.
func (s *PlaylistStore) Create(ctx context.Context, name string) (*domain.Playlist, error) {
	p := &domain.Playlist{Name: name, Items: []domain.PlaylistItem{}}
	if err := s.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlaylistStore) Get(ctx context.Context, id string) (*domain.Playlist, error) {
	var (
		row   playlistRow
		items []playlistItemRow
	)
	err := s.db.View(ctx, func(q Queryer) error {
		if err := q.Get(&row, `SELECT id, name, created_at, updated_at FROM playlists WHERE id = ?`, id); err != nil {
			return err
		}
		return q.Select(&items, `
			SELECT playlist_id, claim_id, position, added_at FROM playlist_items
			WHERE playlist_id = ? ORDER BY position`, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("playlists.get", err)
	}
	return row.toPlaylist(items), nil
}

// Remove deletes the playlist; its items cascade.
func (s *PlaylistStore) Remove(ctx context.Context, id string) (bool, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM playlists WHERE id = ?`, id)
	if err != nil {
		return false, wrapErr("playlists.remove", err)
	}
	return n > 0, nil
}

// ListAll returns every playlist with its items, oldest first.
func (s *PlaylistStore) ListAll(ctx context.Context) ([]*domain.Playlist, error) {
	var (
		rows  []playlistRow
		items []playlistItemRow
	)
	err := s.db.View(ctx, func(q Queryer) error {
		if err := q.Select(&rows, `SELECT id, name, created_at, updated_at FROM playlists ORDER BY created_at, name, id`); err != nil {
			return err
		}
		return q.Select(&items, `SELECT playlist_id, claim_id, position, added_at FROM playlist_items ORDER BY playlist_id, position`)
	})
	if err != nil {
		return nil, wrapErr("playlists.list", err)
	}

	byPlaylist := make(map[string][]playlistItemRow, len(rows))
	for _, it := range items {
		byPlaylist[it.PlaylistID] = append(byPlaylist[it.PlaylistID], it)
	}

	out := make([]*domain.Playlist, len(rows))
	for i := range rows {
		out[i] = rows[i].toPlaylist(byPlaylist[rows[i].ID])
	}
	return out, nil
}

func (s *PlaylistStore) Rename(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &domain.ValidationError{Field: "name", Message: "is required"}
	}
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		res, err := tx.Exec(`UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?`, name, toMillis(s.db.Now()), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	return wrapErr("playlists.rename", err)
}

// AddItem appends claimID to the playlist. Adding an existing member is a no-op.
func (s *PlaylistStore) AddItem(ctx context.Context, id, claimID string) error {
	if strings.TrimSpace(claimID) == "" {
		return &domain.ValidationError{Field: "claim_id", Message: "is required"}
	}
	now := toMillis(s.db.Now())
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		if err := s.ensurePlaylist(tx, id); err != nil {
			return err
		}
		res, err := tx.Exec(`
			INSERT INTO playlist_items (playlist_id, claim_id, position, added_at)
			SELECT ?, ?, COALESCE(MAX(position) + 1, 0), ? FROM playlist_items WHERE playlist_id = ?
			ON CONFLICT(playlist_id, claim_id) DO NOTHING
		`, id, claimID, now, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return s.touch(tx, id, now)
		}
		return nil
	})
	return wrapErr("playlists.add_item", err)
}

// RemoveItem drops claimID and closes the gap in positions.
func (s *PlaylistStore) RemoveItem(ctx context.Context, id, claimID string) (bool, error) {
	removed := false
	now := toMillis(s.db.Now())
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		if err := s.ensurePlaylist(tx, id); err != nil {
			return err
		}
		var pos int
		err := tx.Get(&pos, `SELECT position FROM playlist_items WHERE playlist_id = ? AND claim_id = ?`, id, claimID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM playlist_items WHERE playlist_id = ? AND claim_id = ?`, id, claimID); err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE playlist_items SET position = position - 1 WHERE playlist_id = ? AND position > ?`, id, pos); err != nil {
			return err
		}
		removed = true
		return s.touch(tx, id, now)
	})
	if err != nil {
		return false, wrapErr("playlists.remove_item", err)
	}
	return removed, nil
}

// MoveItem places claimID at position, shifting the items in between.
// Positions past either end are clamped.
func (s *PlaylistStore) MoveItem(ctx context.Context, id, claimID string, position int) error {
	now := toMillis(s.db.Now())
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		if err := s.ensurePlaylist(tx, id); err != nil {
			return err
		}
		var cur int
		err := tx.Get(&cur, `SELECT position FROM playlist_items WHERE playlist_id = ? AND claim_id = ?`, id, claimID)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}

		var count int
		if err := tx.Get(&count, `SELECT COUNT(*) FROM playlist_items WHERE playlist_id = ?`, id); err != nil {
			return err
		}
		if position < 0 {
			position = 0
		}
		if position > count-1 {
			position = count - 1
		}
		if position == cur {
			return nil
		}

		if position < cur {
			_, err = tx.Exec(`UPDATE playlist_items SET position = position + 1
				WHERE playlist_id = ? AND position >= ? AND position < ?`, id, position, cur)
		} else {
			_, err = tx.Exec(`UPDATE playlist_items SET position = position - 1
				WHERE playlist_id = ? AND position > ? AND position <= ?`, id, cur, position)
		}
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE playlist_items SET position = ? WHERE playlist_id = ? AND claim_id = ?`, position, id, claimID); err != nil {
			return err
		}
		return s.touch(tx, id, now)
	})
	return wrapErr("playlists.move_item", err)
}

func (s *PlaylistStore) ensurePlaylist(tx *Tx, id string) error {
	var n int
	if err := tx.Get(&n, `SELECT COUNT(*) FROM playlists WHERE id = ?`, id); err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *PlaylistStore) touch(tx *Tx, id string, now int64) error {
	_, err := tx.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, now, id)
	return err
}
