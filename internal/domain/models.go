package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CacheEntry is one cached remote content item.
type CacheEntry struct {
	ClaimID        string          `json:"claim_id"`
	Payload        json.RawMessage `json:"payload"`
	Tags           StringSlice     `json:"tags"`
	InsertedAt     time.Time       `json:"inserted_at"`
	ExpiresAt      time.Time       `json:"expires_at"`
	HitCount       int64           `json:"hit_count"`
	LastAccessedAt *time.Time      `json:"last_accessed_at,omitempty"`
}

// Expired reports whether the entry is no longer servable at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// HasTag reports whether the entry carries tag (after normalization).
func (e *CacheEntry) HasTag(tag string) bool {
	tag = NormalizeTag(tag)
	for _, t := range e.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Decode unmarshals the payload into v.
func (e *CacheEntry) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode payload for %s: %w", e.ClaimID, err)
	}
	return nil
}

// RemoteItem is what a content fetcher hands to the cache.
type RemoteItem struct {
	ClaimID  string          `json:"claim_id"`
	Metadata json.RawMessage `json:"metadata"`
	Tags     []string        `json:"tags,omitempty"`
}

// Title pulls the human title out of the metadata, if any.
func (r RemoteItem) Title() string {
	var meta struct {
		Title string `json:"title"`
	}
	if len(r.Metadata) == 0 || json.Unmarshal(r.Metadata, &meta) != nil {
		return ""
	}
	return meta.Title
}

// Query describes a remote content lookup.
type Query struct {
	Text      string   `json:"text,omitempty"`
	ClaimIDs  []string `json:"claim_ids,omitempty"`
	ChannelID string   `json:"channel_id,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Page      int      `json:"page,omitempty"`
	PageSize  int      `json:"page_size,omitempty"`
}

// Favorite is a user-favorited claim.
type Favorite struct {
	ClaimID      string          `json:"claim_id"`
	Title        string          `json:"title"`
	ThumbnailURL string          `json:"thumbnail_url,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks the favorite before it is persisted.
func (f *Favorite) Validate() error {
	if strings.TrimSpace(f.ClaimID) == "" {
		return &ValidationError{Field: "claim_id", Message: "is required"}
	}
	if len(f.Metadata) > 0 && !json.Valid(f.Metadata) {
		return &ValidationError{Field: "metadata", Message: "must be valid JSON"}
	}
	return nil
}

// Progress is the playback position of a claim.
type Progress struct {
	ClaimID         string    `json:"claim_id"`
	PositionSeconds int64     `json:"position_seconds"`
	DurationSeconds int64     `json:"duration_seconds,omitempty"`
	Quality         Quality   `json:"quality"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Validate rejects negative positions and unknown qualities.
func (p *Progress) Validate() error {
	if strings.TrimSpace(p.ClaimID) == "" {
		return &ValidationError{Field: "claim_id", Message: "is required"}
	}
	if p.PositionSeconds < 0 {
		return &ValidationError{Field: "position_seconds", Message: "must not be negative"}
	}
	if p.DurationSeconds < 0 {
		return &ValidationError{Field: "duration_seconds", Message: "must not be negative"}
	}
	if !p.Quality.Valid() {
		return &ValidationError{Field: "quality", Message: fmt.Sprintf("must be one of: %s", strings.Join(QualityNames(), ", "))}
	}
	return nil
}

// Percent returns watched percentage, or 0 when duration is unknown.
func (p *Progress) Percent() float64 {
	if p.DurationSeconds <= 0 {
		return 0
	}
	pct := float64(p.PositionSeconds) / float64(p.DurationSeconds) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Playlist is a named, ordered list of claims.
type Playlist struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Items     []PlaylistItem `json:"items"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PlaylistItem is a claim's membership in a playlist.
type PlaylistItem struct {
	ClaimID  string    `json:"claim_id"`
	Position int       `json:"position"`
	AddedAt  time.Time `json:"added_at"`
}

// Validate checks the name and that no claim appears twice.
func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	seen := make(map[string]bool, len(p.Items))
	for _, it := range p.Items {
		if strings.TrimSpace(it.ClaimID) == "" {
			return &ValidationError{Field: "items", Message: "claim_id is required"}
		}
		if seen[it.ClaimID] {
			return &ValidationError{Field: "items", Message: fmt.Sprintf("claim %s appears more than once", it.ClaimID)}
		}
		seen[it.ClaimID] = true
	}
	return nil
}

// ClaimIDs returns the playlist claims in order.
func (p *Playlist) ClaimIDs() []string {
	ids := make([]string, len(p.Items))
	for i, it := range p.Items {
		ids[i] = it.ClaimID
	}
	return ids
}

// Setting is a key/value configuration pair.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
