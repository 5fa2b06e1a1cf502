package dto

import (
	"encoding/json"
	"strings"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type FavoriteRequest struct {
	Title        *string         `json:"title"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	Metadata     json.RawMessage `json:"metadata"`
}

func (r *FavoriteRequest) Validate(claimID string) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateClaimID(claimID)...)
	errs = append(errs, validateURL("thumbnail_url", r.ThumbnailURL)...)
	errs = append(errs, validateJSON("metadata", r.Metadata)...)

	return errs
}

func (r *FavoriteRequest) ToDomain(claimID string) *domain.Favorite {
	f := &domain.Favorite{ClaimID: claimID, Metadata: r.Metadata}
	if r.Title != nil {
		f.Title = strings.TrimSpace(*r.Title)
	}
	if r.ThumbnailURL != nil {
		f.ThumbnailURL = *r.ThumbnailURL
	}
	return f
}

type ProgressRequest struct {
	PositionSeconds *int64  `json:"position_seconds"`
	DurationSeconds *int64  `json:"duration_seconds"`
	Quality         *string `json:"quality"`
}

func (r *ProgressRequest) Validate(claimID string) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateClaimID(claimID)...)
	if r.PositionSeconds == nil {
		errs = append(errs, ValidationError{Field: "position_seconds", Message: "is required"})
	}
	errs = append(errs, validateNonNegative("position_seconds", r.PositionSeconds)...)
	errs = append(errs, validateNonNegative("duration_seconds", r.DurationSeconds)...)
	errs = append(errs, validateQuality(r.Quality)...)

	return errs
}

// ToDomain builds the record; a missing quality means auto.
func (r *ProgressRequest) ToDomain(claimID string) *domain.Progress {
	p := &domain.Progress{ClaimID: claimID, Quality: domain.QualityAuto}
	if r.PositionSeconds != nil {
		p.PositionSeconds = *r.PositionSeconds
	}
	if r.DurationSeconds != nil {
		p.DurationSeconds = *r.DurationSeconds
	}
	if r.Quality != nil && *r.Quality != "" {
		p.Quality = domain.Quality(*r.Quality)
	}
	return p
}

type ProgressResponse struct {
	*domain.Progress
	Percent float64 `json:"percent"`
}

func NewProgressResponse(p *domain.Progress) ProgressResponse {
	return ProgressResponse{Progress: p, Percent: p.Percent()}
}

type SettingRequest struct {
	Value *string `json:"value"`
}

func (r *SettingRequest) Validate() []ValidationError {
	var errs []ValidationError
	if r.Value == nil {
		errs = append(errs, ValidationError{Field: "value", Message: "is required"})
	}
	return errs
}
