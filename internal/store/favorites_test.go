package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cesargomez89/odyvault/internal/domain"
)

func TestFavorites_SaveTwiceKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	db, clock := setupTestDB(t)
	favs := NewFavoriteStore(db)

	first := &domain.Favorite{ClaimID: "x", Title: "First", Metadata: json.RawMessage(`{"v":1}`)}
	if err := favs.Save(ctx, first); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	created := clock.Now()

	clock.Advance(time.Minute)
	second := &domain.Favorite{ClaimID: "x", Title: "Second", Metadata: json.RawMessage(`{"v":2}`)}
	if err := favs.Save(ctx, second); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	list, err := favs.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("Expected 1 favorite, got %d", len(list))
	}
	got := list[0]
	if got.Title != "Second" || string(got.Metadata) != `{"v":2}` {
		t.Errorf("Expected latest metadata, got %s %s", got.Title, got.Metadata)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at kept at %v, got %v", created, got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(clock.Now()) {
		t.Errorf("Expected updated_at bumped to %v, got %v", clock.Now(), got.UpdatedAt)
	}
}

func TestFavorites_GetRemove(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	favs := NewFavoriteStore(db)

	if f, err := favs.Get(ctx, "nope"); err != nil || f != nil {
		t.Errorf("Expected nil for missing favorite, got %v, %v", f, err)
	}

	_ = favs.Save(ctx, &domain.Favorite{ClaimID: "a", Title: "A"})
	f, err := favs.Get(ctx, "a")
	if err != nil || f == nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(f.Metadata) != "{}" {
		t.Errorf("Expected default metadata {}, got %s", f.Metadata)
	}

	removed, err := favs.Remove(ctx, "a")
	if err != nil || !removed {
		t.Errorf("Expected removal, got %v, %v", removed, err)
	}
	removed, _ = favs.Remove(ctx, "a")
	if removed {
		t.Error("Expected second removal to report false")
	}
}

func TestFavorites_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	db, clock := setupTestDB(t)
	favs := NewFavoriteStore(db)

	for _, id := range []string{"a", "b", "c"} {
		_ = favs.Save(ctx, &domain.Favorite{ClaimID: id, Title: id})
		clock.Advance(time.Second)
	}

	list, _ := favs.ListAll(ctx)
	if len(list) != 3 || list[0].ClaimID != "c" || list[2].ClaimID != "a" {
		t.Errorf("Expected newest first, got %v", claimIDs(list))
	}
}

func claimIDs(favs []*domain.Favorite) []string {
	ids := make([]string, len(favs))
	for i, f := range favs {
		ids[i] = f.ClaimID
	}
	return ids
}

func TestFavorites_Search(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	favs := NewFavoriteStore(db)

	_ = favs.Save(ctx, &domain.Favorite{ClaimID: "1", Title: "Linux Kernel Deep Dive"})
	_ = favs.Save(ctx, &domain.Favorite{ClaimID: "2", Title: "Cooking Pasta"})
	_ = favs.Save(ctx, &domain.Favorite{ClaimID: "3", Title: "linux tips"})

	results, err := favs.Search(ctx, "LINUX")
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 matches, got %v", claimIDs(results))
	}
	if results[0].ClaimID != "3" {
		t.Errorf("Expected closest match first, got %v", claimIDs(results))
	}

	all, _ := favs.Search(ctx, "  ")
	if len(all) != 3 {
		t.Errorf("Expected empty query to return all, got %d", len(all))
	}
}

func TestFavorites_Validation(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	favs := NewFavoriteStore(db)

	if err := favs.Save(ctx, &domain.Favorite{Title: "no id"}); !domain.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
	if err := favs.Save(ctx, &domain.Favorite{ClaimID: "a", Metadata: json.RawMessage(`{`)}); !domain.IsValidation(err) {
		t.Errorf("Expected ValidationError, got %v", err)
	}
}

func TestFavorites_ConcurrentSavesSameKey(t *testing.T) {
	ctx := context.Background()
	db, _ := setupTestDB(t)
	favs := NewFavoriteStore(db)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := favs.Save(ctx, &domain.Favorite{ClaimID: "dup", Title: fmt.Sprintf("t%d", i)}); err != nil {
				t.Errorf("Save failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := countRows(t, db, `SELECT COUNT(*) FROM favorites WHERE claim_id = 'dup'`); got != 1 {
		t.Errorf("Expected 1 row, got %d", got)
	}
}
