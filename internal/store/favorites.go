package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type favoriteRow struct {
	ClaimID      string `db:"claim_id"`
	Title        string `db:"title"`
	ThumbnailURL string `db:"thumbnail_url"`
	Metadata     string `db:"metadata"`
	CreatedAt    int64  `db:"created_at"`
	UpdatedAt    int64  `db:"updated_at"`
}

func (r *favoriteRow) toFavorite() *domain.Favorite {
	return &domain.Favorite{
		ClaimID:      r.ClaimID,
		Title:        r.Title,
		ThumbnailURL: r.ThumbnailURL,
		Metadata:     json.RawMessage(r.Metadata),
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
}

const favoriteColumns = `claim_id, title, thumbnail_url, metadata, created_at, updated_at`

type FavoriteStore struct {
	db *DB
}

func NewFavoriteStore(db *DB) *FavoriteStore {
	return &FavoriteStore{db: db}
}

// Save upserts a favorite. The first save sets created_at; later saves
// replace the metadata and bump updated_at.
func (s *FavoriteStore) Save(ctx context.Context, f *domain.Favorite) error {
	if err := f.Validate(); err != nil {
		return err
	}

	now := toMillis(s.db.Now())
	metadata := "{}"
	if len(f.Metadata) > 0 {
		metadata = string(f.Metadata)
	}
	row := favoriteRow{
		ClaimID:      f.ClaimID,
		Title:        f.Title,
		ThumbnailURL: f.ThumbnailURL,
		Metadata:     metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.db.WithTx(ctx, func(tx *Tx) error {
		_, err := tx.NamedExec(`
			INSERT INTO favorites (claim_id, title, thumbnail_url, metadata, created_at, updated_at)
			VALUES (:claim_id, :title, :thumbnail_url, :metadata, :created_at, :updated_at)
			ON CONFLICT(claim_id) DO UPDATE SET
				title = excluded.title,
				thumbnail_url = excluded.thumbnail_url,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at
		`, row)
		return err
	})
	return wrapErr("favorites.save", err)
}

func (s *FavoriteStore) Get(ctx context.Context, claimID string) (*domain.Favorite, error) {
	var row favoriteRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Get(&row, `SELECT `+favoriteColumns+` FROM favorites WHERE claim_id = ?`, claimID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("favorites.get", err)
	}
	return row.toFavorite(), nil
}

func (s *FavoriteStore) Remove(ctx context.Context, claimID string) (bool, error) {
	n, err := s.db.execCount(ctx, `DELETE FROM favorites WHERE claim_id = ?`, claimID)
	if err != nil {
		return false, wrapErr("favorites.remove", err)
	}
	return n > 0, nil
}

// ListAll returns favorites newest first.
func (s *FavoriteStore) ListAll(ctx context.Context) ([]*domain.Favorite, error) {
	var rows []favoriteRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Select(&rows, `SELECT `+favoriteColumns+` FROM favorites ORDER BY created_at DESC, claim_id`)
	})
	if err != nil {
		return nil, wrapErr("favorites.list", err)
	}

	favs := make([]*domain.Favorite, len(rows))
	for i := range rows {
		favs[i] = rows[i].toFavorite()
	}
	return favs, nil
}

// Search ranks favorites whose title fuzzily matches query, closest first.
// An empty query returns every favorite.
func (s *FavoriteStore) Search(ctx context.Context, query string) ([]*domain.Favorite, error) {
	favs, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return favs, nil
	}

	titles := make([]string, len(favs))
	for i, f := range favs {
		titles[i] = f.Title
	}

	ranks := fuzzy.RankFindNormalizedFold(query, titles)
	sort.Stable(ranks)

	out := make([]*domain.Favorite, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, favs[r.OriginalIndex])
	}
	return out, nil
}
