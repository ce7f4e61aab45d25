package imagesearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/parleyhq/parley/internal/domain"
)

const customSearchURL = "https://customsearch.googleapis.com/customsearch/v1"

// GoogleClient searches images through the Google Custom Search JSON API.
type GoogleClient struct {
	apiKey     string
	engineID   string
	httpClient *http.Client
}

func NewGoogleClient(apiKey, engineID string) *GoogleClient {
	return &GoogleClient{
		apiKey:     apiKey,
		engineID:   engineID,
		httpClient: &http.Client{},
	}
}

type searchResponse struct {
	Items []struct {
		Title string `json:"title"`
		Link  string `json:"link"`
		Image struct {
			ThumbnailLink string `json:"thumbnailLink"`
			ContextLink   string `json:"contextLink"`
		} `json:"image"`
	} `json:"items"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *GoogleClient) SearchImages(ctx context.Context, query string, count int) ([]domain.ImageResult, error) {
	if count <= 0 {
		return nil, nil
	}
	if count > 10 {
		count = 10
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(count))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, customSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create image search request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image search API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result searchResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal image search response: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("image search API error: %s", result.Error.Message)
	}

	images := make([]domain.ImageResult, 0, len(result.Items))
	for _, item := range result.Items {
		images = append(images, domain.ImageResult{
			URL:       item.Link,
			Title:     item.Title,
			Thumbnail: item.Image.ThumbnailLink,
			Source:    item.Image.ContextLink,
		})
	}
	return images, nil
}
