package domain

import "github.com/google/uuid"

// TurnContext is the structured view of one incoming message, produced by the
// condition detector and consumed by rule matching and generation.
type TurnContext struct {
	Intent              string   `json:"intent"`
	IntentConfidence    float32  `json:"intent_confidence"`
	Sentiment           string   `json:"sentiment"`
	SentimentScore      float32  `json:"sentiment_score"`
	Keywords            []string `json:"keywords,omitempty"`
	IsConversationStart bool     `json:"is_conversation_start"`
}

// Detection records one condition signal observed for a turn.
type Detection struct {
	Kind  string  `json:"kind"`
	Value string  `json:"value,omitempty"`
	Score float32 `json:"score,omitempty"`
}

// ActionConstraint aggregates a matched rule's actions into one generation
// constraint. Derived per turn, never persisted.
type ActionConstraint struct {
	ExactResponse string        `json:"exact_response,omitempty"`
	MustInclude   []string      `json:"must_include,omitempty"`
	FocusTopics   []string      `json:"focus_topics,omitempty"`
	AvoidTopics   []string      `json:"avoid_topics,omitempty"`
	AskFor        []string      `json:"ask_for,omitempty"`
	WebsiteHints  []string      `json:"website_hints,omitempty"`
	ForceKB       bool          `json:"force_kb,omitempty"`
	SourceFilter  *SourceFilter `json:"source_filter,omitempty"`
}

// Assessment is the structured self-report requested from the generation
// collaborator alongside every answer.
type Assessment struct {
	Answer           string   `json:"answer"`
	Confidence       int      `json:"confidence"`
	Reason           string   `json:"reason,omitempty"`
	NeedsMoreInfo    bool     `json:"needs_more_info,omitempty"`
	QuestionsNeeded  []string `json:"questions_needed,omitempty"`
	ImagesNeeded     bool     `json:"images_needed,omitempty"`
	ImageCount       int      `json:"image_count,omitempty"`
	ImageSearchQuery string   `json:"image_search_query,omitempty"`
}

// ArbiterVerdict is the semantic rule arbiter's reply. RuleIndex is 1-based;
// zero means no match.
type ArbiterVerdict struct {
	RuleIndex  int    `json:"rule_index"`
	Confidence int    `json:"confidence"`
	Reason     string `json:"reason,omitempty"`
}

type WebSource struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// GroundedReply is the output of web-grounded generation.
type GroundedReply struct {
	Text          string      `json:"text"`
	GroundingUsed bool        `json:"grounding_used"`
	Sources       []WebSource `json:"sources,omitempty"`
}

type ImageResult struct {
	URL       string `json:"url"`
	Title     string `json:"title,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Source    string `json:"source,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TurnResult is what processTurn returns to the caller.
type TurnResult struct {
	Response      string        `json:"response"`
	Confidence    int           `json:"confidence"`
	RuleMatched   *uuid.UUID    `json:"rule_matched,omitempty"`
	KBUsed        []uuid.UUID   `json:"kb_used"`
	LLMUsed       bool          `json:"llm_used"`
	WebSearchUsed bool          `json:"web_search_used"`
	Sources       []WebSource   `json:"sources,omitempty"`
	Images        []ImageResult `json:"images,omitempty"`
	TraceID       uuid.UUID     `json:"trace_id"`
}
