package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/httpclient"
)

// ClaimSearchFetcher queries the platform's JSON-RPC proxy with claim_search.
// Only the claim id, its value and the value's tags are kept.
type ClaimSearchFetcher struct {
	BaseURL string
	Client  *httpclient.Client
	nextID  atomic.Int64
}

func NewClaimSearchFetcher(baseURL string, client *httpclient.Client) *ClaimSearchFetcher {
	if baseURL == "" {
		baseURL = constants.DefaultProviderURL
	}
	if client == nil {
		client = httpclient.NewClient(nil, constants.DefaultRequestInterval)
	}
	return &ClaimSearchFetcher{BaseURL: baseURL, Client: client}
}

type rpcRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	Method  string       `json:"method"`
	Params  searchParams `json:"params"`
	ID      int64        `json:"id"`
}

type searchParams struct {
	Text       string   `json:"text,omitempty"`
	ClaimIDs   []string `json:"claim_ids,omitempty"`
	ChannelIDs []string `json:"channel_ids,omitempty"`
	AnyTags    []string `json:"any_tags,omitempty"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	NoTotals   bool     `json:"no_totals"`
}

type rpcResponse struct {
	Result *struct {
		Items []claimDTO `json:"items"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type claimDTO struct {
	ClaimID string          `json:"claim_id"`
	Value   json.RawMessage `json:"value"`
}

func (p *ClaimSearchFetcher) Fetch(ctx context.Context, q domain.Query) ([]domain.RemoteItem, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "claim_search",
		Params:  toSearchParams(q),
		ID:      p.nextID.Add(1),
	})
	if err != nil {
		return nil, err
	}

	var resp rpcResponse
	if err := p.post(ctx, body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("claim_search: %s (code %d)", resp.Error.Message, resp.Error.Code)
	}
	if resp.Result == nil {
		return []domain.RemoteItem{}, nil
	}

	items := make([]domain.RemoteItem, 0, len(resp.Result.Items))
	for _, c := range resp.Result.Items {
		if c.ClaimID == "" {
			continue
		}
		items = append(items, toRemoteItem(c))
	}
	return items, nil
}

func (p *ClaimSearchFetcher) post(ctx context.Context, body []byte, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", constants.ContentTypeJSON)

	resp, err := p.Client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API request failed: %s", resp.Status)
	}

	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	return decoder.Decode(target)
}

func toSearchParams(q domain.Query) searchParams {
	page := q.Page
	if page < 1 {
		page = 1
	}
	size := q.PageSize
	if size < 1 {
		size = constants.DefaultPageSize
	}
	if size > constants.MaxPageSize {
		size = constants.MaxPageSize
	}
	if len(q.ClaimIDs) > size {
		size = len(q.ClaimIDs)
	}

	params := searchParams{
		Text:     strings.TrimSpace(q.Text),
		ClaimIDs: q.ClaimIDs,
		AnyTags:  domain.NormalizeTags(q.Tags),
		Page:     page,
		PageSize: size,
		NoTotals: true,
	}
	if q.ChannelID != "" {
		params.ChannelIDs = []string{q.ChannelID}
	}
	return params
}

func toRemoteItem(c claimDTO) domain.RemoteItem {
	item := domain.RemoteItem{ClaimID: c.ClaimID, Metadata: c.Value}
	if len(item.Metadata) == 0 || string(item.Metadata) == "null" {
		item.Metadata = json.RawMessage(`{}`)
		return item
	}
	var value struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(c.Value, &value); err == nil {
		item.Tags = domain.NormalizeTags(value.Tags)
	}
	return item
}
