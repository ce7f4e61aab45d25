package imagesearch

import (
	"context"

	"github.com/parleyhq/parley/internal/domain"
)

// MockClient is a configurable image search client for testing.
type MockClient struct {
	Results []domain.ImageResult
	Err     error

	Calls []struct {
		Query string
		Count int
	}
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) SearchImages(ctx context.Context, query string, count int) ([]domain.ImageResult, error) {
	c.Calls = append(c.Calls, struct {
		Query string
		Count int
	}{query, count})
	if c.Err != nil {
		return nil, c.Err
	}
	if len(c.Results) > count {
		return c.Results[:count], nil
	}
	return c.Results, nil
}
