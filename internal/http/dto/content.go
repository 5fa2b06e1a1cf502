package dto

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/cesargomez89/odyvault/internal/domain"
)

// ParseContentQuery builds a remote query from request parameters.
// tags and claim_ids are comma separated.
func ParseContentQuery(values url.Values) (domain.Query, []ValidationError) {
	page, pageSize, errs := ParsePage(values)
	q := domain.Query{
		Text:      strings.TrimSpace(values.Get("q")),
		ChannelID: strings.TrimSpace(values.Get("channel")),
		Tags:      domain.NormalizeTags(splitList(values.Get("tags"))),
		Page:      page,
		PageSize:  pageSize,
	}
	for _, id := range splitList(values.Get("claim_ids")) {
		if e := validateClaimID(id); len(e) > 0 {
			errs = append(errs, ValidationError{Field: "claim_ids", Message: "contains an invalid claim id"})
			break
		}
		q.ClaimIDs = append(q.ClaimIDs, id)
	}
	if len(q.Text) > 500 {
		errs = append(errs, ValidationError{Field: "q", Message: "must be at most 500 characters"})
	}
	return q, errs
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type ContentResponse struct {
	ClaimID  string          `json:"claim_id"`
	Title    string          `json:"title,omitempty"`
	Tags     []string        `json:"tags"`
	Metadata json.RawMessage `json:"metadata"`
}

func NewContentResponse(item domain.RemoteItem) ContentResponse {
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ContentResponse{
		ClaimID:  item.ClaimID,
		Title:    item.Title(),
		Tags:     tags,
		Metadata: item.Metadata,
	}
}

type ContentListResponse struct {
	Items    []ContentResponse `json:"items"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

func NewContentListResponse(items []domain.RemoteItem, q domain.Query) ContentListResponse {
	resp := ContentListResponse{
		Items:    make([]ContentResponse, 0, len(items)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, NewContentResponse(it))
	}
	return resp
}
