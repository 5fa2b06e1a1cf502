package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/logger"
	"github.com/cesargomez89/odyvault/internal/store"
)

type mockCache struct {
	data     map[string]*domain.CacheEntry
	getErr   error
	putErr   error
	putCalls int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string]*domain.CacheEntry)}
}

func (m *mockCache) Get(ctx context.Context, id string) (*domain.CacheEntry, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.data[id], nil
}

func (m *mockCache) Put(ctx context.Context, id string, payload json.RawMessage, tags []string, ttl time.Duration) error {
	m.putCalls++
	if m.putErr != nil {
		return m.putErr
	}
	m.data[id] = &domain.CacheEntry{ClaimID: id, Payload: payload, Tags: tags}
	return nil
}

func (m *mockCache) PutMany(ctx context.Context, items []domain.RemoteItem, ttl time.Duration) error {
	for _, it := range items {
		if err := m.Put(ctx, it.ClaimID, it.Metadata, it.Tags, ttl); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockCache) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	n := 0
	for id, e := range m.data {
		if e.HasTag(tag) {
			delete(m.data, id)
			n++
		}
	}
	return n, nil
}

func TestCachedFetcher_Fetch(t *testing.T) {
	inner := NewMockFetcher()
	cache := newMockCache()
	cf := NewCachedFetcher(inner, cache, time.Hour, logger.Discard())
	ctx := context.Background()
	q := domain.Query{Text: "linux", Tags: []string{"Tech"}}

	// 1. First call - should call inner fetcher
	items, err := cf.Fetch(ctx, q)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if inner.Calls() != 1 {
		t.Errorf("Expected inner fetcher to be called once, got %d", inner.Calls())
	}
	if _, ok := cache.data[items[0].ClaimID]; !ok {
		t.Error("Expected items to be cached individually")
	}

	// 2. Second call - should hit cache
	again, err := cf.Fetch(ctx, q)
	if err != nil {
		t.Fatalf("Second Fetch failed: %v", err)
	}
	if len(again) != 3 || again[0].ClaimID != items[0].ClaimID {
		t.Errorf("Unexpected cached result: %+v", again)
	}
	if inner.Calls() != 1 {
		t.Errorf("Expected inner fetcher to STILL be called once (cache hit), got %d", inner.Calls())
	}

	// 3. Invalidate an item tag - query result goes with it
	n, err := cf.Invalidate(ctx, "tech")
	if err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}
	if n != 4 {
		t.Errorf("Expected 3 items and the query entry dropped, got %d", n)
	}
	_, _ = cf.Fetch(ctx, q)
	if inner.Calls() != 2 {
		t.Errorf("Expected inner fetcher to be called again after invalidation, got %d", inner.Calls())
	}
}

func TestCachedFetcher_ReadErrorIsMiss(t *testing.T) {
	inner := NewMockFetcher()
	cache := newMockCache()
	cache.getErr = errors.New("database is locked")
	cf := NewCachedFetcher(inner, cache, time.Hour, logger.Discard())

	for i := 0; i < 2; i++ {
		if _, err := cf.Fetch(context.Background(), domain.Query{Text: "x"}); err != nil {
			t.Fatalf("Fetch failed: %v", err)
		}
	}
	if inner.Calls() != 2 {
		t.Errorf("Expected every call to reach the fetcher, got %d", inner.Calls())
	}
}

func TestCachedFetcher_WriteErrorStillReturnsData(t *testing.T) {
	cache := newMockCache()
	cache.putErr = errors.New("disk full")
	cf := NewCachedFetcher(NewMockFetcher(), cache, time.Hour, logger.Discard())

	items, err := cf.Fetch(context.Background(), domain.Query{Text: "x"})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(items) != 3 {
		t.Errorf("Expected fetched items despite cache failure, got %d", len(items))
	}
	if cache.putCalls == 0 {
		t.Error("Expected a cache write attempt")
	}
}

func TestCachedFetcher_FetchError(t *testing.T) {
	inner := NewMockFetcher()
	inner.Err = errors.New("upstream down")
	cache := newMockCache()
	cf := NewCachedFetcher(inner, cache, time.Hour, logger.Discard())

	if _, err := cf.Fetch(context.Background(), domain.Query{Text: "x"}); !errors.Is(err, inner.Err) {
		t.Errorf("Expected upstream error, got %v", err)
	}
	if len(cache.data) != 0 {
		t.Errorf("Expected nothing cached, got %d entries", len(cache.data))
	}
}

func TestCachedFetcher_Item(t *testing.T) {
	inner := NewMockFetcher()
	cache := newMockCache()
	cf := NewCachedFetcher(inner, cache, time.Hour, logger.Discard())
	ctx := context.Background()

	item, err := cf.Item(ctx, "abc")
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if item.ClaimID != "abc" || item.Title() != "Mock abc" {
		t.Errorf("Unexpected item: %+v", item)
	}

	if _, err := cf.Item(ctx, "abc"); err != nil {
		t.Fatalf("Second Item failed: %v", err)
	}
	if inner.Calls() != 1 {
		t.Errorf("Expected cache hit on second Item, got %d calls", inner.Calls())
	}
}

func TestCachedFetcher_Refresh(t *testing.T) {
	inner := NewMockFetcher()
	cf := NewCachedFetcher(inner, newMockCache(), time.Hour, logger.Discard())
	ctx := context.Background()
	q := domain.Query{Text: "news"}

	_, _ = cf.Fetch(ctx, q)
	_, _ = cf.Refresh(ctx, q)
	_, _ = cf.Fetch(ctx, q)
	if inner.Calls() != 2 {
		t.Errorf("Expected Refresh to bypass the cache only once, got %d calls", inner.Calls())
	}
}

func TestQueryKey(t *testing.T) {
	a := QueryKey(domain.Query{Text: " linux ", Tags: []string{"B", "a"}, ClaimIDs: []string{"2", "1"}})
	b := QueryKey(domain.Query{Text: "linux", Tags: []string{"a", "b", "a"}, ClaimIDs: []string{"1", "2"}})
	if a != b {
		t.Errorf("Expected equivalent queries to share a key: %s vs %s", a, b)
	}
	if QueryKey(domain.Query{Text: "linux", Page: 2}) == QueryKey(domain.Query{Text: "linux"}) {
		t.Error("Expected pages to have distinct keys")
	}
}

func TestCachedFetcher_WithStore(t *testing.T) {
	ctx := context.Background()
	now := time.UnixMilli(1_700_000_000_000).UTC()
	db, err := store.Open(ctx, store.Options{
		Path:   filepath.Join(t.TempDir(), "catalog.db"),
		Logger: logger.Discard(),
		Now:    func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	inner := NewMockFetcher()
	cf := NewCachedFetcher(inner, store.NewCacheStore(db, false), time.Minute, logger.Discard())
	q := domain.Query{ChannelID: "@chan"}

	if _, err := cf.Fetch(ctx, q); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if _, err := cf.Fetch(ctx, q); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if inner.Calls() != 1 {
		t.Errorf("Expected one upstream call, got %d", inner.Calls())
	}

	now = now.Add(2 * time.Minute)
	if _, err := cf.Fetch(ctx, q); err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if inner.Calls() != 2 {
		t.Errorf("Expected expired result to be refetched, got %d calls", inner.Calls())
	}
}
