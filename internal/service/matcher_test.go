package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/domain"
)

func newTestRule(name string, matchType domain.MatchType, priority int, conditions ...domain.Condition) domain.Rule {
	return domain.Rule{
		ID:         uuid.New(),
		Name:       name,
		Conditions: conditions,
		MatchType:  matchType,
		Actions:    []domain.Action{{Type: domain.ActionTalkAbout, Value: "anything"}},
		Priority:   priority,
		Active:     true,
	}
}

func TestRuleMatcher_DeterministicAll(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	rule := newTestRule("refunds", domain.MatchAll, 0,
		domain.Condition{Type: domain.ConditionUserAsksAbout, Value: "refund"},
		domain.Condition{Type: domain.ConditionSentenceContains, Value: "order"},
	)

	matched := m.Match(context.Background(), []domain.Rule{rule}, "Can I get a refund for my order?", domain.TurnContext{})
	if matched == nil || matched.ID != rule.ID {
		t.Fatal("expected rule to match when every condition holds")
	}

	matched = m.Match(context.Background(), []domain.Rule{rule}, "Can I get a refund?", domain.TurnContext{})
	if matched != nil {
		t.Fatal("expected no match when one ALL condition fails")
	}
}

func TestRuleMatcher_DeterministicAny(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	rule := newTestRule("contact", domain.MatchAny, 0,
		domain.Condition{Type: domain.ConditionSentenceContains, Value: "email"},
		domain.Condition{Type: domain.ConditionSentenceContains, Value: "phone"},
	)

	matched := m.Match(context.Background(), []domain.Rule{rule}, "what is your phone number", domain.TurnContext{})
	if matched == nil {
		t.Fatal("expected ANY rule to match on a single holding condition")
	}

	matched = m.Match(context.Background(), []domain.Rule{rule}, "where is my package", domain.TurnContext{})
	if matched != nil {
		t.Fatal("expected no match when no ANY condition holds")
	}
}

func TestRuleMatcher_PriorityOrderWins(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	low := newTestRule("low", domain.MatchAll, 1,
		domain.Condition{Type: domain.ConditionSentenceContains, Value: "refund"})
	high := newTestRule("high", domain.MatchAll, 9,
		domain.Condition{Type: domain.ConditionSentenceContains, Value: "refund"})

	// Caller provides rules already sorted by priority descending.
	matched := m.Match(context.Background(), []domain.Rule{high, low}, "refund please", domain.TurnContext{})
	if matched == nil || matched.Name != "high" {
		t.Fatalf("expected highest-priority rule to win, got %v", matched)
	}
}

func TestRuleMatcher_ConversationStart(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	rule := newTestRule("greet", domain.MatchAll, 0,
		domain.Condition{Type: domain.ConditionConversationStart})

	if m.Match(context.Background(), []domain.Rule{rule}, "hi", domain.TurnContext{IsConversationStart: true}) == nil {
		t.Fatal("expected match on conversation start")
	}
	if m.Match(context.Background(), []domain.Rule{rule}, "hi", domain.TurnContext{}) != nil {
		t.Fatal("expected no match mid-conversation")
	}
}

func TestRuleMatcher_SentimentSynonyms(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	rule := newTestRule("angry users", domain.MatchAll, 0,
		domain.Condition{Type: domain.ConditionUserSentimentIs, Value: "angry"})

	tc := domain.TurnContext{Sentiment: "frustrated"}
	if m.Match(context.Background(), []domain.Rule{rule}, "this is broken again", tc) == nil {
		t.Fatal("expected synonym-class sentiment to match")
	}

	tc = domain.TurnContext{Sentiment: "happy"}
	if m.Match(context.Background(), []domain.Rule{rule}, "this is great", tc) != nil {
		t.Fatal("expected opposing sentiment class not to match")
	}
}

func TestRuleMatcher_ProvidesDetectors(t *testing.T) {
	cases := []struct {
		value   string
		message string
		want    bool
	}{
		{"email", "reach me at jane.doe@example.com", true},
		{"email", "I do not have one", false},
		{"phone", "call me on +1 (555) 123-4567", true},
		{"phone", "no number here", false},
		{"name", "my name is Priya", true},
		{"name", "guess who", false},
	}

	for _, tc := range cases {
		if got := providesMatch(tc.message, tc.value); got != tc.want {
			t.Errorf("providesMatch(%q, %q) = %v, want %v", tc.message, tc.value, got, tc.want)
		}
	}
}

func TestRuleMatcher_TopicFuzzyOverlap(t *testing.T) {
	if !topicMatch("what is your pricing model", "price") {
		t.Error("expected stem overlap pricing/price to match")
	}
	if !topicMatch("tell me about shipping costs", "shipping cost") {
		t.Error("expected full content-word overlap to match")
	}
	if topicMatch("tell me a joke", "enterprise security compliance") {
		t.Error("expected unrelated topics not to match")
	}
}

func TestRuleMatcher_IsQuestion(t *testing.T) {
	if !isQuestion("do you ship to canada") {
		t.Error("expected leading question marker to count")
	}
	if !isQuestion("you ship to canada?") {
		t.Error("expected question mark to count")
	}
	if isQuestion("ship it to canada") {
		t.Error("expected imperative not to count")
	}
}

// semanticArbiterStub drives matchSemantic directly.
type semanticArbiterStub struct {
	verdict domain.ArbiterVerdict
	err     error
}

func (s *semanticArbiterStub) MatchRule(ctx context.Context, rulesSummary, message string, tc domain.TurnContext) (domain.ArbiterVerdict, error) {
	return s.verdict, s.err
}

func TestRuleMatcher_SemanticVerdictAccepted(t *testing.T) {
	rules := []domain.Rule{
		newTestRule("first", domain.MatchAll, 5,
			domain.Condition{Type: domain.ConditionSentenceContains, Value: "zzz"}),
		newTestRule("second", domain.MatchAll, 1,
			domain.Condition{Type: domain.ConditionSentenceContains, Value: "zzz"}),
	}

	arbiter := &semanticArbiterStub{verdict: domain.ArbiterVerdict{RuleIndex: 2, Confidence: 85}}
	m := NewRuleMatcher(arbiter, zap.NewNop())

	matched := m.Match(context.Background(), rules, "unrelated", domain.TurnContext{})
	if matched == nil || matched.Name != "second" {
		t.Fatalf("expected semantic verdict to pick rule 2, got %v", matched)
	}
}

func TestRuleMatcher_SemanticBelowThresholdFallsBack(t *testing.T) {
	rules := []domain.Rule{
		newTestRule("deterministic", domain.MatchAll, 0,
			domain.Condition{Type: domain.ConditionSentenceContains, Value: "refund"}),
	}

	arbiter := &semanticArbiterStub{verdict: domain.ArbiterVerdict{RuleIndex: 1, Confidence: 59}}
	m := NewRuleMatcher(arbiter, zap.NewNop())

	matched := m.Match(context.Background(), rules, "refund please", domain.TurnContext{})
	if matched == nil || matched.Name != "deterministic" {
		t.Fatal("expected low-confidence verdict to be discarded and deterministic fallback to run")
	}
}

func TestRuleMatcher_SemanticIndexOutOfRange(t *testing.T) {
	rules := []domain.Rule{
		newTestRule("only", domain.MatchAll, 0,
			domain.Condition{Type: domain.ConditionSentenceContains, Value: "refund"}),
	}

	for _, idx := range []int{0, -1, 2} {
		arbiter := &semanticArbiterStub{verdict: domain.ArbiterVerdict{RuleIndex: idx, Confidence: 95}}
		m := NewRuleMatcher(arbiter, zap.NewNop())

		matched := m.Match(context.Background(), rules, "refund please", domain.TurnContext{})
		if matched == nil || matched.Name != "only" {
			t.Errorf("index %d: expected deterministic fallback", idx)
		}
	}
}

func TestRuleMatcher_SemanticErrorDegrades(t *testing.T) {
	rules := []domain.Rule{
		newTestRule("fallback", domain.MatchAll, 0,
			domain.Condition{Type: domain.ConditionSentenceContains, Value: "refund"}),
	}

	arbiter := &semanticArbiterStub{err: errors.New("model unavailable")}
	m := NewRuleMatcher(arbiter, zap.NewNop())

	matched := m.Match(context.Background(), rules, "refund please", domain.TurnContext{})
	if matched == nil || matched.Name != "fallback" {
		t.Fatal("expected arbiter failure to degrade to deterministic matching")
	}
}

func TestRuleMatcher_NoRules(t *testing.T) {
	m := NewRuleMatcher(nil, zap.NewNop())
	if m.Match(context.Background(), nil, "anything", domain.TurnContext{}) != nil {
		t.Fatal("expected nil match with no rules")
	}
}
