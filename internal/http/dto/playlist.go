package dto

import (
	"strings"

	"github.com/cesargomez89/odyvault/internal/domain"
)

type PlaylistRequest struct {
	Name  *string  `json:"name"`
	Items []string `json:"items"`
}

func (r *PlaylistRequest) Validate() []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateName(r.Name)...)
	seen := make(map[string]bool, len(r.Items))
	for _, id := range r.Items {
		if e := validateClaimID(id); len(e) > 0 {
			errs = append(errs, ValidationError{Field: "items", Message: "contains an invalid claim id"})
			break
		}
		if seen[id] {
			errs = append(errs, ValidationError{Field: "items", Message: "claim " + id + " appears more than once"})
			break
		}
		seen[id] = true
	}

	return errs
}

func (r *PlaylistRequest) ToDomain(id string) *domain.Playlist {
	p := &domain.Playlist{ID: id, Items: make([]domain.PlaylistItem, 0, len(r.Items))}
	if r.Name != nil {
		p.Name = strings.TrimSpace(*r.Name)
	}
	for _, claimID := range r.Items {
		p.Items = append(p.Items, domain.PlaylistItem{ClaimID: claimID})
	}
	return p
}

type PlaylistItemRequest struct {
	ClaimID string `json:"claim_id"`
}

func (r *PlaylistItemRequest) Validate() []ValidationError {
	return validateClaimID(r.ClaimID)
}

type PositionRequest struct {
	Position *int `json:"position"`
}

func (r *PositionRequest) Validate() []ValidationError {
	var errs []ValidationError
	if r.Position == nil {
		errs = append(errs, ValidationError{Field: "position", Message: "is required"})
	}
	return errs
}
