package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/logger"
)

// Cache is the subset of the content cache the get-or-fetch path needs.
// *store.CacheStore satisfies it.
type Cache interface {
	Get(ctx context.Context, id string) (*domain.CacheEntry, error)
	Put(ctx context.Context, id string, payload json.RawMessage, tags []string, ttl time.Duration) error
	PutMany(ctx context.Context, items []domain.RemoteItem, ttl time.Duration) error
	InvalidateByTag(ctx context.Context, tag string) (int, error)
}

// FetchError reports that the remote fetcher, not the cache, failed.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch: " + e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// CachedFetcher checks the cache before calling the wrapped fetcher and
// stores whatever it fetched.
type CachedFetcher struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	log     *logger.Logger
}

func NewCachedFetcher(fetcher Fetcher, cache Cache, ttl time.Duration, log *logger.Logger) *CachedFetcher {
	if ttl <= 0 {
		ttl = constants.DefaultCacheTTL
	}
	return &CachedFetcher{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		log:     log.WithComponent("catalog"),
	}
}

// QueryKey is the cache key a query's result list is stored under.
func QueryKey(q domain.Query) string {
	canon := domain.Query{
		Text:      strings.TrimSpace(q.Text),
		ChannelID: strings.TrimSpace(q.ChannelID),
		Tags:      domain.NormalizeTags(q.Tags),
		Page:      q.Page,
		PageSize:  q.PageSize,
	}
	if len(q.ClaimIDs) > 0 {
		canon.ClaimIDs = append([]string(nil), q.ClaimIDs...)
		sort.Strings(canon.ClaimIDs)
	}
	b, _ := json.Marshal(canon)
	sum := sha256.Sum256(b)
	return constants.QueryKeyPrefix + hex.EncodeToString(sum[:])
}

// Fetch returns the cached result for q, or fetches and caches it.
func (c *CachedFetcher) Fetch(ctx context.Context, q domain.Query) ([]domain.RemoteItem, error) {
	key := QueryKey(q)
	if items, ok := c.cachedQuery(ctx, key); ok {
		return items, nil
	}
	return c.fetchAndStore(ctx, key, q)
}

// Refresh fetches q without reading the cache and overwrites the cached result.
func (c *CachedFetcher) Refresh(ctx context.Context, q domain.Query) ([]domain.RemoteItem, error) {
	return c.fetchAndStore(ctx, QueryKey(q), q)
}

// Item returns a single claim, from cache when possible.
func (c *CachedFetcher) Item(ctx context.Context, id string) (*domain.RemoteItem, error) {
	entry, err := c.cache.Get(ctx, id)
	if err != nil {
		c.log.WithClaim(id).Warn("Cache read failed, fetching", "error", err)
	} else if entry != nil {
		return &domain.RemoteItem{ClaimID: entry.ClaimID, Metadata: entry.Payload, Tags: entry.Tags}, nil
	}

	items, err := c.fetcher.Fetch(ctx, domain.Query{ClaimIDs: []string{id}})
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("%s: %w", id, err)}
	}
	for i := range items {
		if items[i].ClaimID != id {
			continue
		}
		item := items[i]
		if err := c.cache.PutMany(ctx, []domain.RemoteItem{item}, c.ttl); err != nil {
			c.log.WithClaim(id).Warn("Failed to cache item", "error", err)
		}
		return &item, nil
	}
	return nil, domain.ErrNotFound
}

// Invalidate drops every cached entry carrying tag.
func (c *CachedFetcher) Invalidate(ctx context.Context, tag string) (int, error) {
	return c.cache.InvalidateByTag(ctx, tag)
}

func (c *CachedFetcher) cachedQuery(ctx context.Context, key string) ([]domain.RemoteItem, bool) {
	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn("Cache read failed, fetching", "key", key, "error", err)
		return nil, false
	}
	if entry == nil {
		return nil, false
	}
	var items []domain.RemoteItem
	if err := entry.Decode(&items); err != nil {
		c.log.Warn("Discarding undecodable cache entry", "key", key, "error", err)
		return nil, false
	}
	return items, true
}

func (c *CachedFetcher) fetchAndStore(ctx context.Context, key string, q domain.Query) ([]domain.RemoteItem, error) {
	items, err := c.fetcher.Fetch(ctx, q)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	if items == nil {
		items = []domain.RemoteItem{}
	}

	if err := c.cache.PutMany(ctx, items, c.ttl); err != nil {
		c.log.Warn("Failed to cache items", "count", len(items), "error", err)
	}

	payload, err := json.Marshal(items)
	if err != nil {
		c.log.Warn("Failed to encode query result", "key", key, "error", err)
		return items, nil
	}
	if err := c.cache.Put(ctx, key, payload, queryTags(items), c.ttl); err != nil {
		c.log.Warn("Failed to cache query result", "key", key, "error", err)
	}
	return items, nil
}

// queryTags is the union of the items' tags plus the query marker, so that
// invalidating any item tag also drops result lists containing it.
func queryTags(items []domain.RemoteItem) []string {
	tags := []string{constants.QueryTag}
	for _, it := range items {
		tags = append(tags, it.Tags...)
	}
	return domain.NormalizeTags(tags)
}
