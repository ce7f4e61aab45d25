package llm

import (
	"context"

	"github.com/parleyhq/parley/internal/domain"
)

// MockClient is a configurable LLM client for testing.
// Set the response fields to control what each method returns.
type MockClient struct {
	IntentResponse    domain.IntentResult
	IntentError       error
	SentimentResponse domain.SentimentResult
	SentimentError    error
	VerdictResponse   domain.ArbiterVerdict
	VerdictError      error
	GenerateResponse  string
	GenerateError     error
	GroundedResponse  domain.GroundedReply
	GroundedError     error

	// Call tracking for assertions
	IntentCalls    []string
	SentimentCalls []string
	VerdictCalls   []string
	GenerateCalls  []string
	GroundedCalls  []struct {
		Prompt       string
		EnableSearch bool
	}
}

func NewMockClient() *MockClient {
	return &MockClient{
		IntentResponse:    domain.IntentResult{Intent: "question", Confidence: 0.9},
		SentimentResponse: domain.SentimentResult{Sentiment: "neutral", Score: 0.5},
		VerdictResponse:   domain.ArbiterVerdict{},
		GenerateResponse:  `{"answer":"Mock answer","confidence":90}`,
		GroundedResponse:  domain.GroundedReply{Text: `{"answer":"Mock answer","confidence":90}`},
	}
}

func (c *MockClient) ClassifyIntent(ctx context.Context, text string) (domain.IntentResult, error) {
	c.IntentCalls = append(c.IntentCalls, text)
	if c.IntentError != nil {
		return domain.IntentResult{}, c.IntentError
	}
	return c.IntentResponse, nil
}

func (c *MockClient) ClassifySentiment(ctx context.Context, text string) (domain.SentimentResult, error) {
	c.SentimentCalls = append(c.SentimentCalls, text)
	if c.SentimentError != nil {
		return domain.SentimentResult{}, c.SentimentError
	}
	return c.SentimentResponse, nil
}

func (c *MockClient) MatchRule(ctx context.Context, rulesSummary, message string, tc domain.TurnContext) (domain.ArbiterVerdict, error) {
	c.VerdictCalls = append(c.VerdictCalls, message)
	if c.VerdictError != nil {
		return domain.ArbiterVerdict{}, c.VerdictError
	}
	return c.VerdictResponse, nil
}

func (c *MockClient) Generate(ctx context.Context, prompt string) (string, error) {
	c.GenerateCalls = append(c.GenerateCalls, prompt)
	if c.GenerateError != nil {
		return "", c.GenerateError
	}
	return c.GenerateResponse, nil
}

func (c *MockClient) GenerateGrounded(ctx context.Context, prompt string, enableSearch bool) (domain.GroundedReply, error) {
	c.GroundedCalls = append(c.GroundedCalls, struct {
		Prompt       string
		EnableSearch bool
	}{prompt, enableSearch})
	if c.GroundedError != nil {
		return domain.GroundedReply{}, c.GroundedError
	}
	return c.GroundedResponse, nil
}
