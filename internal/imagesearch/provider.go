package imagesearch

import (
	"fmt"

	"github.com/parleyhq/parley/internal/domain"
)

// Provider constants
const (
	ProviderGoogle = "google"
	ProviderMock   = "mock"
)

// NewClient creates an image search client based on the provider name.
func NewClient(provider, apiKey, engineID string) (domain.ImageSearcher, error) {
	switch provider {
	case ProviderGoogle:
		if apiKey == "" || engineID == "" {
			return nil, fmt.Errorf("GOOGLE_SEARCH_API_KEY and GOOGLE_SEARCH_ENGINE_ID are required for Google image search")
		}
		return NewGoogleClient(apiKey, engineID), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown image search provider: %s (valid options: google, mock)", provider)
	}
}
