package store

import (
	"context"
	"fmt"
)

const historyTableDDL = `
CREATE TABLE schema_migrations (
	version INTEGER NOT NULL PRIMARY KEY,
	description TEXT NOT NULL,
	applied_at INTEGER NOT NULL
)`

// freshSchema builds a new database directly at LatestVersion. Columns that
// migrations add with ALTER TABLE are declared last with the same type and
// default so both paths produce the same table layout.
var freshSchema = []string{
	`
	CREATE TABLE content_cache (
		claim_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		inserted_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		hit_count INTEGER NOT NULL DEFAULT 0,
		last_accessed_at INTEGER,
		CHECK (expires_at >= inserted_at)
	)`,
	`
	CREATE TABLE content_cache_tags (
		claim_id TEXT NOT NULL REFERENCES content_cache(claim_id) ON DELETE CASCADE,
		tag TEXT NOT NULL,
		PRIMARY KEY (claim_id, tag)
	)`,
	`CREATE INDEX idx_content_cache_expires_at ON content_cache(expires_at)`,
	`CREATE INDEX idx_content_cache_tags_tag ON content_cache_tags(tag)`,

	`
	CREATE TABLE favorites (
		claim_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		thumbnail_url TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_favorites_claim ON favorites(claim_id)`,

	`
	CREATE TABLE progress (
		claim_id TEXT NOT NULL,
		position_seconds INTEGER NOT NULL CHECK (position_seconds >= 0),
		quality TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE UNIQUE INDEX ux_progress_claim ON progress(claim_id)`,
	`CREATE INDEX idx_progress_updated_at ON progress(updated_at)`,

	`
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
	`CREATE INDEX idx_playlist_items_order ON playlist_items(playlist_id, position)`,

	`
	CREATE TABLE settings (
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX ux_settings_key ON settings(key)`,
	seedSettingsV6,
}

// SchemaInfo describes the live schema as reported by SQLite.
type SchemaInfo struct {
	Tables []TableInfo `json:"tables"`
}

// Table returns the named table, or nil.
func (s *SchemaInfo) Table(name string) *TableInfo {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

type TableInfo struct {
	Name        string           `json:"name"`
	Columns     []ColumnInfo     `json:"columns"`
	Indexes     []IndexInfo      `json:"indexes"`
	ForeignKeys []ForeignKeyInfo `json:"foreign_keys"`
}

// HasColumn reports whether the table has a column called name.
func (t *TableInfo) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

type ColumnInfo struct {
	Name       string  `db:"name" json:"name"`
	Type       string  `db:"type" json:"type"`
	NotNull    int     `db:"notnull" json:"not_null"`
	Default    *string `db:"dflt_value" json:"default,omitempty"`
	PrimaryKey int     `db:"pk" json:"primary_key"`
}

type IndexInfo struct {
	Name    string   `db:"name" json:"name"`
	Unique  int      `db:"unique" json:"unique"`
	Origin  string   `db:"origin" json:"origin"`
	Partial int      `db:"partial" json:"partial"`
	Columns []string `db:"-" json:"columns"`
}

type ForeignKeyInfo struct {
	Table    string `db:"table" json:"table"`
	From     string `db:"from" json:"from"`
	To       string `db:"to" json:"to"`
	OnDelete string `db:"on_delete" json:"on_delete"`
}

// Schema introspects tables, columns, indexes and foreign keys. Internal
// sqlite_ tables are omitted. Results are sorted by name for comparison.
func (db *DB) Schema(ctx context.Context) (*SchemaInfo, error) {
	info := &SchemaInfo{}
	err := db.view(ctx, func(q Queryer) error {
		var names []string
		if err := q.Select(&names, `
			SELECT name FROM sqlite_master
			WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
			ORDER BY name`); err != nil {
			return fmt.Errorf("list tables: %w", err)
		}

		for _, name := range names {
			table, err := describeTable(q, name)
			if err != nil {
				return err
			}
			info.Tables = append(info.Tables, *table)
		}
		return nil
	})
	if err != nil {
		return nil, wrapErr("schema", err)
	}
	return info, nil
}

func describeTable(q Queryer, name string) (*TableInfo, error) {
	t := &TableInfo{Name: name}

	if err := q.Select(&t.Columns,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, name); err != nil {
		return nil, fmt.Errorf("columns of %s: %w", name, err)
	}

	if err := q.Select(&t.Indexes,
		`SELECT name, "unique", origin, partial FROM pragma_index_list(?) ORDER BY name`, name); err != nil {
		return nil, fmt.Errorf("indexes of %s: %w", name, err)
	}
	for i := range t.Indexes {
		if err := q.Select(&t.Indexes[i].Columns,
			`SELECT COALESCE(name, '') FROM pragma_index_info(?) ORDER BY seqno`, t.Indexes[i].Name); err != nil {
			return nil, fmt.Errorf("columns of index %s: %w", t.Indexes[i].Name, err)
		}
	}

	if err := q.Select(&t.ForeignKeys,
		`SELECT "table", "from", COALESCE("to", '') AS "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY id, seq`, name); err != nil {
		return nil, fmt.Errorf("foreign keys of %s: %w", name, err)
	}
	return t, nil
}
