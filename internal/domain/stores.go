package domain

import (
	"context"

	"github.com/google/uuid"
)

type AgentStore interface {
	Create(ctx context.Context, a *Agent) error
	GetByID(ctx context.Context, id uuid.UUID) (*Agent, error)
	Update(ctx context.Context, a *Agent) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type RuleStore interface {
	Create(ctx context.Context, r *Rule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Rule, error)
	Update(ctx context.Context, r *Rule) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ListActiveByAgent returns active rules sorted by priority descending,
	// ties by creation order.
	ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]Rule, error)
	ListByAgent(ctx context.Context, agentID uuid.UUID) ([]Rule, error)
}

type KnowledgeStore interface {
	Create(ctx context.Context, c *KnowledgeChunk) error
	CreateBatch(ctx context.Context, chunks []*KnowledgeChunk) error
	GetByID(ctx context.Context, id uuid.UUID) (*KnowledgeChunk, error)
	// ListByAgent returns all chunks for an agent, embeddings included,
	// ordered by id so retrieval tie-breaking is stable.
	ListByAgent(ctx context.Context, agentID uuid.UUID, chunkType *ChunkType) ([]KnowledgeChunk, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string, embedding []float32) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type TraceStore interface {
	Create(ctx context.Context, t *DecisionTrace) error
	GetByID(ctx context.Context, id uuid.UUID) (*DecisionTrace, error)
	// ListRecent returns up to limit traces for the session in chronological
	// order.
	ListRecent(ctx context.Context, agentID, sessionID uuid.UUID, limit int) ([]DecisionTrace, error)
	CountBySession(ctx context.Context, agentID, sessionID uuid.UUID) (int, error)
}

type IntentResult struct {
	Intent     string  `json:"intent"`
	Confidence float32 `json:"confidence"`
}

type SentimentResult struct {
	Sentiment string  `json:"sentiment"`
	Score     float32 `json:"score"`
}

// Classifier labels a message with intent and sentiment. Callers must treat
// any error as non-fatal and apply the documented defaults.
type Classifier interface {
	ClassifyIntent(ctx context.Context, text string) (IntentResult, error)
	ClassifySentiment(ctx context.Context, text string) (SentimentResult, error)
}

// RuleArbiter is the optional semantic rule matching phase. The deterministic
// matcher remains authoritative; arbiter errors degrade to no match.
type RuleArbiter interface {
	MatchRule(ctx context.Context, rulesSummary, message string, tc TurnContext) (ArbiterVerdict, error)
}

// Generator produces replies. GenerateGrounded may consult external web
// search when enableSearch is set and reports any cited sources.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateGrounded(ctx context.Context, prompt string, enableSearch bool) (GroundedReply, error)
}

// EmbeddingClient turns text into fixed-length vectors. Vector length is
// fixed per model and must be validated against stored chunks before
// similarity comparison.
type EmbeddingClient interface {
	Embed(ctx context.Context, text, model string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// ImageSearcher finds illustrative images. Failures are always non-fatal.
type ImageSearcher interface {
	SearchImages(ctx context.Context, query string, count int) ([]ImageResult, error)
}
