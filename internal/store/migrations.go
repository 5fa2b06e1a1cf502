package store

import (
	"fmt"
	"strings"
)

// Migration moves the schema from Version-1 to Version. Statements assume
// the previous migration is committed and never guard with IF NOT EXISTS.
type Migration struct {
	Version     int
	Description string
	Statements  []string
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "create content cache",
		Statements: []string{`
			CREATE TABLE content_cache (
				claim_id TEXT PRIMARY KEY,
				payload BLOB NOT NULL,
				tags TEXT NOT NULL DEFAULT '[]',
				inserted_at INTEGER NOT NULL,
				expires_at INTEGER NOT NULL,
				CHECK (expires_at >= inserted_at)
			)`,
		},
	},
	{
		Version:     2,
		Description: "create content cache tag index table",
		Statements: []string{`
			CREATE TABLE content_cache_tags (
				claim_id TEXT NOT NULL REFERENCES content_cache(claim_id) ON DELETE CASCADE,
				tag TEXT NOT NULL,
				PRIMARY KEY (claim_id, tag)
			)`,
		},
	},
	{
		Version:     3,
		Description: "create favorites",
		Statements: []string{`
			CREATE TABLE favorites (
				claim_id TEXT NOT NULL,
				title TEXT NOT NULL DEFAULT '',
				thumbnail_url TEXT NOT NULL DEFAULT '',
				metadata TEXT NOT NULL DEFAULT '{}',
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_favorites_claim ON favorites(claim_id)`,
		},
	},
	{
		Version:     4,
		Description: "create playback progress",
		Statements: []string{`
			CREATE TABLE progress (
				claim_id TEXT NOT NULL,
				position_seconds INTEGER NOT NULL CHECK (position_seconds >= 0),
				quality TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_progress_claim ON progress(claim_id)`,
		},
	},
	{
		Version:     5,
		Description: "create playlists",
		Statements: []string{`
			CREATE TABLE playlists (
				id TEXT NOT NULL,
				name TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_playlists_id ON playlists(id)`,
			`
			CREATE TABLE playlist_items (
				playlist_id TEXT NOT NULL REFERENCES playlists(id) ON DELETE CASCADE,
				claim_id TEXT NOT NULL,
				position INTEGER NOT NULL,
				added_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_playlist_items_member ON playlist_items(playlist_id, claim_id)`,
		},
	},
	{
		Version:     6,
		Description: "create settings with defaults",
		Statements: []string{`
			CREATE TABLE settings (
				key TEXT NOT NULL,
				value TEXT NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE UNIQUE INDEX ux_settings_key ON settings(key)`,
			seedSettingsV6,
		},
	},
	{
		Version:     7,
		Description: "add cache access counters",
		Statements: []string{
			`ALTER TABLE content_cache ADD COLUMN hit_count INTEGER NOT NULL DEFAULT 0`,
			`ALTER TABLE content_cache ADD COLUMN last_accessed_at INTEGER`,
		},
	},
	{
		Version:     8,
		Description: "index cache expiry, tags and playlist order",
		Statements: []string{
			`CREATE INDEX idx_content_cache_expires_at ON content_cache(expires_at)`,
			`CREATE INDEX idx_content_cache_tags_tag ON content_cache_tags(tag)`,
			`CREATE INDEX idx_playlist_items_order ON playlist_items(playlist_id, position)`,
		},
	},
	{
		Version:     9,
		Description: "track progress duration",
		Statements: []string{
			`ALTER TABLE progress ADD COLUMN duration_seconds INTEGER NOT NULL DEFAULT 0`,
			`CREATE INDEX idx_progress_updated_at ON progress(updated_at)`,
		},
	},
}

// Migrations returns a copy of the registered migration list.
func Migrations() []Migration {
	out := make([]Migration, len(migrations))
	copy(out, migrations)
	return out
}

// LatestVersion is the schema version this build produces.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

func validateMigrations(list []Migration) error {
	if len(list) == 0 {
		return fmt.Errorf("%w: no migrations registered", ErrInvalidMigrations)
	}
	for i, m := range list {
		if m.Version != i+1 {
			return fmt.Errorf("%w: expected version %d at position %d, got %d", ErrInvalidMigrations, i+1, i, m.Version)
		}
		if len(m.Statements) == 0 {
			return fmt.Errorf("%w: migration %d has no statements", ErrInvalidMigrations, m.Version)
		}
		for _, stmt := range m.Statements {
			if strings.Contains(strings.ToUpper(stmt), "IF NOT EXISTS") {
				return fmt.Errorf("%w: migration %d guards with IF NOT EXISTS", ErrInvalidMigrations, m.Version)
			}
		}
	}
	return nil
}

// seedSettingsV6 is frozen with migration 6. New defaults need a new
// migration. @now is bound to the migrator's clock.
const seedSettingsV6 = `
	INSERT INTO settings (key, value, updated_at) VALUES
		('autoplay', 'true', @now),
		('cache_ttl', '30m', @now),
		('default_quality', 'auto', @now),
		('download_dir', '', @now),
		('language', 'en', @now),
		('theme', 'dark', @now)`
