package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
)

type settingRow struct {
	Key       string `db:"key"`
	Value     string `db:"value"`
	UpdatedAt int64  `db:"updated_at"`
}

func (r *settingRow) toSetting() *domain.Setting {
	return &domain.Setting{Key: r.Key, Value: r.Value, UpdatedAt: fromMillis(r.UpdatedAt)}
}

type SettingsStore struct {
	db *DB
}

func NewSettingsStore(db *DB) *SettingsStore {
	return &SettingsStore{db: db}
}

// ValidateSetting checks values of the known keys. Unknown keys accept any value.
func ValidateSetting(key, value string) error {
	switch key {
	case constants.SettingDefaultQuality:
		if !domain.Quality(value).Valid() {
			return &domain.ValidationError{Field: key, Message: fmt.Sprintf("must be one of: %s", strings.Join(domain.QualityNames(), ", "))}
		}
	case constants.SettingAutoplay:
		if _, err := strconv.ParseBool(value); err != nil {
			return &domain.ValidationError{Field: key, Message: "must be true or false"}
		}
	case constants.SettingCacheTTL:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return &domain.ValidationError{Field: key, Message: "must be a positive duration such as 30m"}
		}
	}
	return nil
}

func (s *SettingsStore) Save(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return &domain.ValidationError{Field: "key", Message: "is required"}
	}
	if err := ValidateSetting(key, value); err != nil {
		return err
	}
	return wrapErr("settings.save", s.db.WithTx(ctx, func(tx *Tx) error {
		return upsertSetting(tx, key, value, toMillis(s.db.Now()))
	}))
}

func upsertSetting(tx *Tx, key, value string, now int64) error {
	_, err := tx.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, now)
	return err
}

func (s *SettingsStore) Get(ctx context.Context, key string) (*domain.Setting, error) {
	var row settingRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Get(&row, `SELECT key, value, updated_at FROM settings WHERE key = ?`, key)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("settings.get", err)
	}
	return row.toSetting(), nil
}

// Remove restores a known key to its default and deletes an unknown one.
// It reports whether the key existed.
func (s *SettingsStore) Remove(ctx context.Context, key string) (bool, error) {
	def, known := constants.DefaultSettings[key]
	if !known {
		n, err := s.db.execCount(ctx, `DELETE FROM settings WHERE key = ?`, key)
		if err != nil {
			return false, wrapErr("settings.remove", err)
		}
		return n > 0, nil
	}

	existed := false
	err := s.db.WithTx(ctx, func(tx *Tx) error {
		var n int
		if err := tx.Get(&n, `SELECT COUNT(*) FROM settings WHERE key = ?`, key); err != nil {
			return err
		}
		existed = n > 0
		return upsertSetting(tx, key, def, toMillis(s.db.Now()))
	})
	if err != nil {
		return false, wrapErr("settings.remove", err)
	}
	return existed, nil
}

// ListAll returns every setting ordered by key.
func (s *SettingsStore) ListAll(ctx context.Context) ([]*domain.Setting, error) {
	var rows []settingRow
	err := s.db.View(ctx, func(q Queryer) error {
		return q.Select(&rows, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	})
	if err != nil {
		return nil, wrapErr("settings.list", err)
	}

	out := make([]*domain.Setting, len(rows))
	for i := range rows {
		out[i] = rows[i].toSetting()
	}
	return out, nil
}

// String returns the stored value, falling back to the default.
func (s *SettingsStore) String(ctx context.Context, key string) (string, error) {
	setting, err := s.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if setting == nil {
		return constants.DefaultSettings[key], nil
	}
	return setting.Value, nil
}

func (s *SettingsStore) Bool(ctx context.Context, key string) (bool, error) {
	v, err := s.String(ctx, key)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s: %w", key, err)
	}
	return b, nil
}

func (s *SettingsStore) Duration(ctx context.Context, key string) (time.Duration, error) {
	v, err := s.String(ctx, key)
	if err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("setting %s: %w", key, err)
	}
	return d, nil
}
