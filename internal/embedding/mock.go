package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

const mockDim = 8

// MockClient produces deterministic vectors derived from the input text, so
// tests get stable, dimension-consistent embeddings without a network call.
type MockClient struct {
	Err error

	EmbedCalls []string
	BatchCalls [][]string
}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (c *MockClient) Embed(ctx context.Context, text, model string) ([]float32, error) {
	c.EmbedCalls = append(c.EmbedCalls, text)
	if c.Err != nil {
		return nil, c.Err
	}
	return mockVector(text), nil
}

func (c *MockClient) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	c.BatchCalls = append(c.BatchCalls, texts)
	if c.Err != nil {
		return nil, c.Err
	}
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		vectors[i] = mockVector(t)
	}
	return vectors, nil
}

func mockVector(text string) []float32 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, mockDim)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed>>33)%1000) / 1000
		norm += float64(vec[i]) * float64(vec[i])
	}
	if norm > 0 {
		n := float32(math.Sqrt(norm))
		for i := range vec {
			vec[i] /= n
		}
	}
	return vec
}
