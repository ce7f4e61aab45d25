package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const genaiDefaultModel = "gemini-embedding-001"

// GenAIClient generates embeddings through Google's Gemini API.
type GenAIClient struct {
	client *genai.Client
}

func NewGenAIClient(apiKey string) (*GenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required for GenAI embedding provider")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIClient{client: client}, nil
}

func (c *GenAIClient) embed(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if model == "" {
		model = genaiDefaultModel
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := c.client.Models.EmbedContent(ctx, model, contents, &genai.EmbedContentConfig{
		TaskType: "SEMANTIC_SIMILARITY",
	})
	if err != nil {
		return nil, fmt.Errorf("genai embed failed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("genai returned %d vectors for %d inputs", len(result.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (c *GenAIClient) Embed(ctx context.Context, text, model string) ([]float32, error) {
	vectors, err := c.embed(ctx, []string{text}, model)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *GenAIClient) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embed(ctx, texts, model)
}
