package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

const (
	openAIChatURL = "https://api.openai.com/v1/chat/completions"
	chatModel     = "gpt-4o-mini"
)

type OpenAIClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

// chat types for OpenAI API
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (c *OpenAIClient) complete(ctx context.Context, messages []chatMessage, temp float32) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       chatModel,
		Messages:    messages,
		Temperature: temp,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openAIChatURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal chat response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("chat API error: %s", result.Error.Message)
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat API returned no choices")
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) ClassifyIntent(ctx context.Context, text string) (domain.IntentResult, error) {
	raw, err := c.complete(ctx, []chatMessage{{Role: "user", Content: fmt.Sprintf(intentPrompt, text)}}, 0)
	if err != nil {
		return domain.IntentResult{}, fmt.Errorf("classify intent: %w", err)
	}
	return parseIntent(raw)
}

func (c *OpenAIClient) ClassifySentiment(ctx context.Context, text string) (domain.SentimentResult, error) {
	raw, err := c.complete(ctx, []chatMessage{{Role: "user", Content: fmt.Sprintf(sentimentPrompt, text)}}, 0)
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("classify sentiment: %w", err)
	}
	return parseSentiment(raw)
}

func (c *OpenAIClient) MatchRule(ctx context.Context, rulesSummary, message string, tc domain.TurnContext) (domain.ArbiterVerdict, error) {
	prompt := fmt.Sprintf(arbiterPrompt, rulesSummary, tc.Intent, tc.Sentiment, tc.IsConversationStart, message)
	raw, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0)
	if err != nil {
		return domain.ArbiterVerdict{}, fmt.Errorf("match rule: %w", err)
	}
	return parseVerdict(raw)
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	raw, err := c.complete(ctx, []chatMessage{{Role: "user", Content: prompt}}, 0.7)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return raw, nil
}

// GenerateGrounded on OpenAI has no web search backend; it generates without
// grounding and reports GroundingUsed=false.
func (c *OpenAIClient) GenerateGrounded(ctx context.Context, prompt string, enableSearch bool) (domain.GroundedReply, error) {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return domain.GroundedReply{}, err
	}
	return domain.GroundedReply{Text: text}, nil
}
