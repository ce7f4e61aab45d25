package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/llm"
)

type turnFixture struct {
	svc    *TurnService
	agents *mockAgentStore
	rules  *mockRuleStore
	chunks *mockKnowledgeStore
	traces *mockTraceStore
	llm    *llm.MockClient
	images *stubImageSearcher
	agent  *domain.Agent
}

func newTurnFixture() *turnFixture {
	agents := newMockAgentStore()
	rules := newMockRuleStore()
	chunks := newMockKnowledgeStore()
	traces := newMockTraceStore()
	mock := llm.NewMockClient()
	images := &stubImageSearcher{}
	logger := zap.NewNop()

	agent := &domain.Agent{
		ID:       uuid.New(),
		Name:     "support",
		Persona:  domain.Persona{Name: "Sage"},
		Settings: domain.DefaultAgentSettings(),
	}
	agents.agents[agent.ID] = agent

	knowledge := NewKnowledgeService(chunks, agents, traces, &stubEmbedder{vector: []float32{1, 0}}, logger)
	detector := NewConditionDetector(mock, traces, logger)
	matcher := NewRuleMatcher(nil, logger)

	svc := NewTurnService(agents, rules, traces, detector, matcher, knowledge, mock, images, logger)
	return &turnFixture{
		svc:    svc,
		agents: agents,
		rules:  rules,
		chunks: chunks,
		traces: traces,
		llm:    mock,
		images: images,
		agent:  agent,
	}
}

func (f *turnFixture) addRule(r domain.Rule) domain.Rule {
	r.ID = uuid.New()
	r.AgentID = f.agent.ID
	r.Active = true
	f.rules.rules[r.ID] = &r
	return r
}

func (f *turnFixture) lastTrace(t *testing.T) *domain.DecisionTrace {
	t.Helper()
	if len(f.traces.traces) == 0 {
		t.Fatal("no trace written")
	}
	return f.traces.traces[len(f.traces.traces)-1]
}

func TestProcessTurn_EmptyMessage(t *testing.T) {
	f := newTurnFixture()
	_, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "   ")
	if !errors.Is(err, ErrMessageEmpty) {
		t.Fatalf("expected ErrMessageEmpty, got %v", err)
	}
	if len(f.traces.traces) != 0 {
		t.Error("rejected input must not write a trace")
	}
}

func TestProcessTurn_UnknownAgent(t *testing.T) {
	f := newTurnFixture()
	_, err := f.svc.ProcessTurn(context.Background(), uuid.New(), uuid.New(), "hello")
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestProcessTurn_ExactResponseShortCircuit(t *testing.T) {
	f := newTurnFixture()
	rule := f.addRule(domain.Rule{
		Name:       "greet",
		Conditions: []domain.Condition{{Type: domain.ConditionConversationStart}},
		MatchType:  domain.MatchAll,
		Actions:    []domain.Action{{Type: domain.ActionSayExactMessage, Value: "Welcome to Acme!"}},
	})

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "hi")
	if err != nil {
		t.Fatal(err)
	}

	if result.Response != "Welcome to Acme!" {
		t.Errorf("expected verbatim response, got %q", result.Response)
	}
	if result.Confidence != exactResponseConfidence {
		t.Errorf("expected confidence %d, got %d", exactResponseConfidence, result.Confidence)
	}
	if result.LLMUsed {
		t.Error("exact responses must not involve the generator")
	}
	if len(f.llm.GroundedCalls) != 0 {
		t.Error("generator must not be called on the short-circuit path")
	}
	if result.RuleMatched == nil || *result.RuleMatched != rule.ID {
		t.Error("expected matched rule id in the result")
	}

	trace := f.lastTrace(t)
	if trace.Response != "Welcome to Acme!" || trace.MatchedRuleID == nil {
		t.Error("trace must record the exact response and the rule")
	}
}

func TestProcessTurn_WebSearchOnlyWhenNoChunksAndNoRule(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedResponse = domain.GroundedReply{
		Text:          `{"answer":"From the web.","confidence":90}`,
		GroundingUsed: true,
		Sources:       []domain.WebSource{{Title: "Acme docs", URI: "https://acme.example"}},
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "anything about shipping")
	if err != nil {
		t.Fatal(err)
	}

	if len(f.llm.GroundedCalls) != 1 || !f.llm.GroundedCalls[0].EnableSearch {
		t.Fatal("expected web search enabled with an empty knowledge base and no rule")
	}
	if !result.WebSearchUsed {
		t.Error("expected web search usage recorded when grounding was used")
	}
	if len(result.Sources) != 1 {
		t.Error("expected sources carried into the result")
	}
}

func TestProcessTurn_ChunksSuppressWebSearch(t *testing.T) {
	f := newTurnFixture()
	seedChunk(f.chunks, f.agent.ID, 1, []float32{1, 0}, 0)

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "shipping question")
	if err != nil {
		t.Fatal(err)
	}

	if f.llm.GroundedCalls[0].EnableSearch {
		t.Error("expected retrieval hits to disable web search")
	}
	if len(result.KBUsed) != 1 {
		t.Errorf("expected the retrieved chunk id in kb_used, got %v", result.KBUsed)
	}
	if result.WebSearchUsed {
		t.Error("web search must not be reported when it was disabled")
	}
}

func TestProcessTurn_MatchedRuleSuppressesWebSearch(t *testing.T) {
	f := newTurnFixture()
	f.addRule(domain.Rule{
		Name:       "pricing",
		Conditions: []domain.Condition{{Type: domain.ConditionSentenceContains, Value: "price"}},
		MatchType:  domain.MatchAll,
		Actions:    []domain.Action{{Type: domain.ActionDontTalkAbout, Value: "competitor pricing"}},
	})

	_, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "what is the price")
	if err != nil {
		t.Fatal(err)
	}

	if f.llm.GroundedCalls[0].EnableSearch {
		t.Error("a matched rule must suppress web search even with no chunks")
	}
	if !strings.Contains(f.llm.GroundedCalls[0].Prompt, "Do NOT talk about: competitor pricing") {
		t.Error("expected avoid-topic constraint in the generation prompt")
	}
}

func TestProcessTurn_ForceKBSuppressesWebSearch(t *testing.T) {
	f := newTurnFixture()
	f.addRule(domain.Rule{
		Name:       "kb only",
		Conditions: []domain.Condition{{Type: domain.ConditionSentenceContains, Value: "policy"}},
		MatchType:  domain.MatchAll,
		Actions:    []domain.Action{{Type: domain.ActionAnswerUsingKB}},
	})

	_, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "refund policy?")
	if err != nil {
		t.Fatal(err)
	}
	if f.llm.GroundedCalls[0].EnableSearch {
		t.Error("answer-using-knowledge-base must keep web search off")
	}
}

func TestProcessTurn_ConfidenceGateAppendsQuestions(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedResponse = domain.GroundedReply{
		Text: `{"answer":"Partially sure.","confidence":40,"questions_needed":["Which order?"]}`,
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "where is my refund")
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(result.Response, "Partially sure.") ||
		!strings.Contains(result.Response, "- Which order?") {
		t.Errorf("expected question-augmented response, got %q", result.Response)
	}
	if result.Confidence != 40 {
		t.Errorf("trace confidence should be the raw self-report, got %d", result.Confidence)
	}
}

func TestProcessTurn_PlainTextReplyAssumedConfidence(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedResponse = domain.GroundedReply{
		Text: "The refund window is 30 days from the purchase date, per our standard policy.",
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "refund window?")
	if err != nil {
		t.Fatal(err)
	}

	if result.Confidence != assumedPlainTextConfidence {
		t.Errorf("expected assumed confidence %d, got %d", assumedPlainTextConfidence, result.Confidence)
	}
	// Long enough to pass the gate despite the assumed medium confidence.
	if result.Response != "The refund window is 30 days from the purchase date, per our standard policy." {
		t.Errorf("unexpected response %q", result.Response)
	}
}

func TestProcessTurn_MalformedReplySentinel(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedResponse = domain.GroundedReply{Text: `{"answer": "broken", "confidence": }`}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "hello?")
	if err != nil {
		t.Fatal(err)
	}
	if result.Confidence != domain.ConfidenceUnparsed {
		t.Errorf("expected confidence sentinel %d, got %d", domain.ConfidenceUnparsed, result.Confidence)
	}
}

func TestProcessTurn_CitationStrippingWithoutSources(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedResponse = domain.GroundedReply{
		Text: `{"answer":"Returns are accepted [1] within 30 days [2] of purchase as stated.","confidence":90}`,
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "return window?")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(result.Response, "[1]") || strings.Contains(result.Response, "[2]") {
		t.Errorf("expected citation markers stripped when no sources returned, got %q", result.Response)
	}
}

func TestProcessTurn_ImageSuggestionCapped(t *testing.T) {
	f := newTurnFixture()
	f.images.results = []domain.ImageResult{
		{URL: "a"}, {URL: "b"}, {URL: "c"}, {URL: "d"}, {URL: "e"}, {URL: "f"},
	}
	f.llm.GroundedResponse = domain.GroundedReply{
		Text: `{"answer":"Here are the blue widgets.","confidence":95,"images_needed":true,"image_count":9,"image_search_query":"blue widget"}`,
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "show me blue widgets")
	if err != nil {
		t.Fatal(err)
	}

	if len(f.images.calls) != 1 || f.images.calls[0] != maxSuggestedImages {
		t.Fatalf("expected image search asked for at most %d, got %v", maxSuggestedImages, f.images.calls)
	}
	if len(result.Images) != maxSuggestedImages {
		t.Errorf("expected %d images, got %d", maxSuggestedImages, len(result.Images))
	}
}

func TestProcessTurn_ImageSearchFailureDegrades(t *testing.T) {
	f := newTurnFixture()
	f.images.err = errors.New("quota")
	f.llm.GroundedResponse = domain.GroundedReply{
		Text: `{"answer":"Found it.","confidence":95,"images_needed":true,"image_count":2,"image_search_query":"widget"}`,
	}

	result, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "show me")
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Images) != 0 {
		t.Error("image search failure must degrade to no images")
	}
	if result.Response != "Found it." {
		t.Error("image search failure must not affect the textual response")
	}
}

func TestProcessTurn_GenerationFailureWritesErrorTrace(t *testing.T) {
	f := newTurnFixture()
	f.llm.GroundedError = errors.New("upstream 500")

	_, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "hello")
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || !uerr.Fatal || uerr.Collaborator != "generation" {
		t.Fatalf("expected fatal generation error, got %v", err)
	}

	trace := f.lastTrace(t)
	if trace.Error == "" {
		t.Error("expected the error recorded on the trace")
	}
	if trace.LLMUsed {
		t.Error("no usable generation happened")
	}
	if trace.Confidence != domain.ConfidenceUnparsed {
		t.Errorf("expected confidence sentinel on the error trace, got %d", trace.Confidence)
	}
}

func TestProcessTurn_EmbeddingFailureWritesErrorTrace(t *testing.T) {
	f := newTurnFixture()
	logger := zap.NewNop()
	knowledge := NewKnowledgeService(f.chunks, f.agents, f.traces, &stubEmbedder{err: errors.New("down")}, logger)
	detector := NewConditionDetector(f.llm, f.traces, logger)
	svc := NewTurnService(f.agents, f.rules, f.traces, detector, NewRuleMatcher(nil, logger), knowledge, f.llm, f.images, logger)

	_, err := svc.ProcessTurn(context.Background(), f.agent.ID, uuid.New(), "hello")
	var uerr *domain.UpstreamError
	if !errors.As(err, &uerr) || uerr.Collaborator != "embedding" {
		t.Fatalf("expected embedding failure surfaced, got %v", err)
	}
	if f.lastTrace(t).Error == "" {
		t.Error("expected an auditable error trace")
	}
}

func TestProcessTurn_HistoryReplayedInPrompt(t *testing.T) {
	f := newTurnFixture()
	sessionID := uuid.New()

	if _, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, sessionID, "first question"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ProcessTurn(context.Background(), f.agent.ID, sessionID, "second question"); err != nil {
		t.Fatal(err)
	}

	secondPrompt := f.llm.GroundedCalls[1].Prompt
	if !strings.Contains(secondPrompt, "user: first question") {
		t.Error("expected the first turn replayed in the second prompt")
	}
}
