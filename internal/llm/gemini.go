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
	geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"
)

type GeminiClient struct {
	apiKey     string
	httpClient *http.Client
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []geminiTool    `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		GroundingMetadata *struct {
			GroundingChunks []struct {
				Web *struct {
					URI   string `json:"uri"`
					Title string `json:"title"`
				} `json:"web,omitempty"`
			} `json:"groundingChunks"`
		} `json:"groundingMetadata,omitempty"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

func (c *GeminiClient) generate(ctx context.Context, prompt string, withSearch bool) (*geminiResponse, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{{Text: prompt}},
				Role:  "user",
			},
		},
	}
	if withSearch {
		reqBody.Tools = []geminiTool{{}}
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s?key=%s", geminiBaseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("unmarshal gemini response: %w", err)
	}

	if result.Error != nil {
		return nil, fmt.Errorf("gemini API error: %s", result.Error.Message)
	}

	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini API returned no content")
	}

	return &result, nil
}

func (c *GeminiClient) complete(ctx context.Context, prompt string) (string, error) {
	result, err := c.generate(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}

func (c *GeminiClient) ClassifyIntent(ctx context.Context, text string) (domain.IntentResult, error) {
	raw, err := c.complete(ctx, fmt.Sprintf(intentPrompt, text))
	if err != nil {
		return domain.IntentResult{}, fmt.Errorf("classify intent: %w", err)
	}
	return parseIntent(raw)
}

func (c *GeminiClient) ClassifySentiment(ctx context.Context, text string) (domain.SentimentResult, error) {
	raw, err := c.complete(ctx, fmt.Sprintf(sentimentPrompt, text))
	if err != nil {
		return domain.SentimentResult{}, fmt.Errorf("classify sentiment: %w", err)
	}
	return parseSentiment(raw)
}

func (c *GeminiClient) MatchRule(ctx context.Context, rulesSummary, message string, tc domain.TurnContext) (domain.ArbiterVerdict, error) {
	prompt := fmt.Sprintf(arbiterPrompt, rulesSummary, tc.Intent, tc.Sentiment, tc.IsConversationStart, message)
	raw, err := c.complete(ctx, prompt)
	if err != nil {
		return domain.ArbiterVerdict{}, fmt.Errorf("match rule: %w", err)
	}
	return parseVerdict(raw)
}

func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	return c.complete(ctx, prompt)
}

// GenerateGrounded generates with the google_search tool when enableSearch is
// set, reporting cited web sources from the grounding metadata.
func (c *GeminiClient) GenerateGrounded(ctx context.Context, prompt string, enableSearch bool) (domain.GroundedReply, error) {
	result, err := c.generate(ctx, prompt, enableSearch)
	if err != nil {
		return domain.GroundedReply{}, err
	}

	reply := domain.GroundedReply{
		Text: strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text),
	}
	if md := result.Candidates[0].GroundingMetadata; md != nil {
		reply.GroundingUsed = len(md.GroundingChunks) > 0
		for _, gc := range md.GroundingChunks {
			if gc.Web != nil {
				reply.Sources = append(reply.Sources, domain.WebSource{
					Title: gc.Web.Title,
					URI:   gc.Web.URI,
				})
			}
		}
	}
	return reply, nil
}
