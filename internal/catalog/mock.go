package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cesargomez89/odyvault/internal/domain"
)

// MockFetcher returns deterministic items and counts how often it was asked.
type MockFetcher struct {
	mu    sync.Mutex
	calls int
	Err   error
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

func (p *MockFetcher) Fetch(ctx context.Context, q domain.Query) ([]domain.RemoteItem, error) {
	p.mu.Lock()
	p.calls++
	err := p.Err
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if len(q.ClaimIDs) > 0 {
		items := make([]domain.RemoteItem, 0, len(q.ClaimIDs))
		for _, id := range q.ClaimIDs {
			items = append(items, mockItem(id, "Mock "+id, q.Tags))
		}
		return items, nil
	}

	text := q.Text
	if text == "" {
		text = "featured"
	}
	page := q.Page
	if page < 1 {
		page = 1
	}
	items := make([]domain.RemoteItem, 0, 3)
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("mock-%s-%d-%d", text, page, i)
		items = append(items, mockItem(id, fmt.Sprintf("Mock %s %d", text, i), q.Tags))
	}
	return items, nil
}

// Calls reports how many times Fetch ran.
func (p *MockFetcher) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func mockItem(id, title string, tags []string) domain.RemoteItem {
	tags = append([]string{"mock"}, tags...)
	meta, _ := json.Marshal(map[string]any{
		"title":       title,
		"description": "Mock content",
		"tags":        tags,
	})
	return domain.RemoteItem{ClaimID: id, Metadata: meta, Tags: domain.NormalizeTags(tags)}
}
