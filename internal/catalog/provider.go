package catalog

import (
	"context"
	"fmt"

	"github.com/cesargomez89/odyvault/internal/constants"
	"github.com/cesargomez89/odyvault/internal/domain"
	"github.com/cesargomez89/odyvault/internal/httpclient"
)

// Fetcher loads content items from the remote platform.
type Fetcher interface {
	Fetch(ctx context.Context, q domain.Query) ([]domain.RemoteItem, error)
}

// NewFetcher builds the fetcher named by provider.
func NewFetcher(provider, baseURL string, client *httpclient.Client) (Fetcher, error) {
	switch provider {
	case constants.ProviderClaimSearch:
		return NewClaimSearchFetcher(baseURL, client), nil
	case constants.ProviderMock:
		return NewMockFetcher(), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}
