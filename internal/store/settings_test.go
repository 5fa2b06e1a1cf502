package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
)

func TestSettings_Defaults(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	settings := NewSettingsStore(db)

	all, err := settings.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != len(constants.DefaultSettings) {
		t.Fatalf("Expected %d seeded settings, got %d", len(constants.DefaultSettings), len(all))
	}
	for _, s := range all {
		if want := constants.DefaultSettings[s.Key]; s.Value != want {
			t.Errorf("Expected %s=%q, got %q", s.Key, want, s.Value)
		}
	}

	autoplay, err := settings.Bool(ctx, constants.SettingAutoplay)
	if err != nil || !autoplay {
		t.Errorf("Expected autoplay true, got %v, %v", autoplay, err)
	}
	ttl, err := settings.Duration(ctx, constants.SettingCacheTTL)
	if err != nil || ttl != 30*time.Minute {
		t.Errorf("Expected cache_ttl 30m, got %v, %v", ttl, err)
	}
}

func TestSettings_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	settings := NewSettingsStore(db)

	if err := settings.Save(ctx, constants.SettingTheme, "light"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	s, err := settings.Get(ctx, constants.SettingTheme)
	if err != nil || s == nil || s.Value != "light" {
		t.Errorf("Expected theme light, got %+v, %v", s, err)
	}

	if err := settings.Save(ctx, "custom", "anything"); err != nil {
		t.Fatalf("Save custom failed: %v", err)
	}
	if got := countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key = ?`, constants.SettingTheme); got != 1 {
		t.Errorf("Expected one theme row, got %d", got)
	}
}

func TestSettings_Validation(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	settings := NewSettingsStore(db)

	tests := []struct {
		key   string
		value string
	}{
		{"", "x"},
		{constants.SettingDefaultQuality, "4k"},
		{constants.SettingAutoplay, "sometimes"},
		{constants.SettingCacheTTL, "forever"},
		{constants.SettingCacheTTL, "-5m"},
	}
	for _, tt := range tests {
		if err := settings.Save(ctx, tt.key, tt.value); !domain.IsValidation(err) {
			t.Errorf("Save(%q, %q): expected ValidationError, got %v", tt.key, tt.value, err)
		}
	}

	s, _ := settings.Get(ctx, constants.SettingDefaultQuality)
	if s.Value != "auto" {
		t.Errorf("Expected default_quality untouched, got %s", s.Value)
	}
}

func TestSettings_RemoveRestoresDefault(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	settings := NewSettingsStore(db)

	_ = settings.Save(ctx, constants.SettingLanguage, "de")
	existed, err := settings.Remove(ctx, constants.SettingLanguage)
	if err != nil || !existed {
		t.Fatalf("Remove failed: %v, %v", existed, err)
	}
	s, _ := settings.Get(ctx, constants.SettingLanguage)
	if s == nil || s.Value != "en" {
		t.Errorf("Expected language restored to en, got %+v", s)
	}

	_ = settings.Save(ctx, "custom", "1")
	existed, _ = settings.Remove(ctx, "custom")
	if !existed {
		t.Error("Expected custom key to exist")
	}
	if s, _ := settings.Get(ctx, "custom"); s != nil {
		t.Error("Expected unknown key to be deleted")
	}

	v, err := settings.String(ctx, "custom")
	if err != nil || v != "" {
		t.Errorf("Expected empty string for missing unknown key, got %q, %v", v, err)
	}
}

func TestSettings_ConcurrentSavesSameKey(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	settings := NewSettingsStore(db)
	themes := []string{"dark", "light", "system"}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := settings.Save(ctx, "custom_key", themes[i%len(themes)]); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := countRows(t, db, `SELECT COUNT(*) FROM settings WHERE key = 'custom_key'`); got != 1 {
		t.Errorf("Expected 1 row, got %d", got)
	}
}
