package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConfidenceUnparsed marks a trace whose structured generation output could
// not be parsed.
const ConfidenceUnparsed = -1

// DecisionTrace is the immutable audit record of one turn. Written once,
// never mutated; recent traces are replayed as conversation history.
type DecisionTrace struct {
	ID            uuid.UUID     `json:"id"`
	AgentID       uuid.UUID     `json:"agent_id"`
	SessionID     uuid.UUID     `json:"session_id"`
	Message       string        `json:"message"`
	Detections    []Detection   `json:"detections,omitempty"`
	MatchedRuleID *uuid.UUID    `json:"matched_rule_id,omitempty"`
	KBUsed        []uuid.UUID   `json:"kb_used,omitempty"`
	Confidence    int           `json:"confidence"`
	LLMUsed       bool          `json:"llm_used"`
	WebSearchUsed bool          `json:"web_search_used"`
	Sources       []WebSource   `json:"sources,omitempty"`
	Response      string        `json:"response"`
	Images        []ImageResult `json:"images,omitempty"`
	Error         string        `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
