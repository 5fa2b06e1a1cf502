// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort                = "8080"
	DefaultDBPath              = "odyvault.db"
	DefaultProvider            = ProviderClaimSearch
	DefaultProviderURL         = "https://api.na-backend.odysee.com/api/v1/proxy"
	DefaultRequestInterval     = 250 * time.Millisecond
	DefaultHTTPTimeout         = 30 * time.Second
	DefaultRetryCount          = 3
	DefaultRetryBase           = 1 * time.Second
	DefaultCacheTTL            = 30 * time.Minute
	DefaultAcquireTimeout      = 5 * time.Second
	DefaultBusyTimeout         = 5 * time.Second
	DefaultMaxReaders          = 4
	DefaultSweepInterval       = 5 * time.Minute
	DefaultMaintenanceInterval = 6 * time.Hour
	DefaultStaleProgressAfter  = 90 * 24 * time.Hour
	DefaultPageSize            = 20
	MaxPageSize                = 50
)

// Content providers
const (
	ProviderClaimSearch = "claim_search"
	ProviderMock        = "mock"
)

// Database tables
const (
	MigrationsTable    = "schema_migrations"
	CacheTable         = "content_cache"
	CacheTagsTable     = "content_cache_tags"
	FavoritesTable     = "favorites"
	ProgressTable      = "progress"
	PlaylistsTable     = "playlists"
	PlaylistItemsTable = "playlist_items"
	SettingsTable      = "settings"
)

// Cache key prefixes and reserved tags
const (
	QueryKeyPrefix = "query:"
	QueryTag       = "query"
)

// Setting keys
const (
	SettingTheme          = "theme"
	SettingDefaultQuality = "default_quality"
	SettingAutoplay       = "autoplay"
	SettingCacheTTL       = "cache_ttl"
	SettingDownloadDir    = "download_dir"
	SettingLanguage       = "language"
)

// DefaultSettings are seeded on first run.
var DefaultSettings = map[string]string{
	SettingTheme:          "dark",
	SettingDefaultQuality: "auto",
	SettingAutoplay:       "true",
	SettingCacheTTL:       "30m",
	SettingDownloadDir:    "",
	SettingLanguage:       "en",
}

// Maintenance step names
const (
	StepSweepExpired       = "sweep_expired"
	StepPruneStaleProgress = "prune_stale_progress"
	StepOptimize           = "optimize"
	StepVacuum             = "vacuum"
)

// HTTP
const (
	ContentTypeJSON = "application/json"
	MaxBodyBytes    = 1 << 20 // 1MB
)
