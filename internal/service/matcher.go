package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"go.uber.org/zap"
)

const (
	arbiterTimeout = 10 * time.Second

	// arbiterConfidenceThreshold is the minimum semantic arbiter confidence
	// for its verdict to be accepted over the deterministic matcher.
	arbiterConfidenceThreshold = 60

	// fuzzyOverlapThreshold is the fraction of a condition's content words
	// that must appear in the message for a fuzzy match.
	fuzzyOverlapThreshold = 0.7
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-\s().]{6,}[0-9]`)
	namePattern  = regexp.MustCompile(`(?i)\b(my name is|i am|i'm|call me)\s+\p{L}+`)
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "but": {}, "to": {},
	"of": {}, "in": {}, "on": {}, "at": {}, "for": {}, "with": {}, "about": {},
	"is": {}, "are": {}, "was": {}, "be": {}, "it": {}, "this": {}, "that": {},
	"i": {}, "you": {}, "me": {}, "my": {}, "your": {}, "do": {}, "does": {},
	"can": {}, "would": {}, "want": {}, "like": {}, "have": {}, "has": {},
}

var questionMarkers = map[string]struct{}{
	"what": {}, "when": {}, "where": {}, "who": {}, "why": {}, "how": {},
	"which": {}, "whose": {}, "can": {}, "could": {}, "do": {}, "does": {},
	"did": {}, "is": {}, "are": {}, "will": {}, "would": {}, "should": {},
}

var sentimentSynonyms = map[string][]string{
	"negative": {"negative", "bad", "angry", "upset", "unhappy", "frustrated", "sad", "annoyed"},
	"positive": {"positive", "good", "happy", "glad", "pleased", "satisfied", "excited"},
	"neutral":  {"neutral", "ok", "okay", "fine", "indifferent"},
}

// RuleMatcher selects at most one rule for a turn. The optional semantic
// arbiter is consulted first; the deterministic predicates remain the
// authoritative fallback and cannot fail.
type RuleMatcher struct {
	arbiter domain.RuleArbiter
	logger  *zap.Logger
}

func NewRuleMatcher(arbiter domain.RuleArbiter, logger *zap.Logger) *RuleMatcher {
	return &RuleMatcher{arbiter: arbiter, logger: logger}
}

// Match expects rules sorted by priority descending, ties by creation order.
// It returns nil when no rule applies. Pure with respect to its inputs: no
// rule is ever mutated.
func (m *RuleMatcher) Match(ctx context.Context, rules []domain.Rule, message string, tc domain.TurnContext) *domain.Rule {
	if len(rules) == 0 {
		return nil
	}

	if semantic := m.matchSemantic(ctx, rules, message, tc); semantic != nil {
		if det := matchDeterministic(rules, message, tc); det == nil || det.ID != semantic.ID {
			m.logger.Warn("semantic and deterministic rule match diverge",
				zap.String("semantic_rule", semantic.Name),
				zap.Bool("deterministic_matched", det != nil))
		}
		return semantic
	}

	return matchDeterministic(rules, message, tc)
}

func (m *RuleMatcher) matchSemantic(ctx context.Context, rules []domain.Rule, message string, tc domain.TurnContext) *domain.Rule {
	if m.arbiter == nil {
		return nil
	}

	actx, cancel := context.WithTimeout(ctx, arbiterTimeout)
	defer cancel()

	verdict, err := m.arbiter.MatchRule(actx, summarizeRules(rules), message, tc)
	if err != nil {
		m.logger.Warn("semantic rule arbitration degraded", zap.Error(err))
		return nil
	}
	if verdict.RuleIndex < 1 || verdict.RuleIndex > len(rules) {
		return nil
	}
	if verdict.Confidence < arbiterConfidenceThreshold {
		return nil
	}
	return &rules[verdict.RuleIndex-1]
}

// matchDeterministic returns the first rule, in priority order, whose
// condition combination evaluates true.
func matchDeterministic(rules []domain.Rule, message string, tc domain.TurnContext) *domain.Rule {
	for i := range rules {
		if ruleApplies(&rules[i], message, tc) {
			return &rules[i]
		}
	}
	return nil
}

func ruleApplies(r *domain.Rule, message string, tc domain.TurnContext) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		ok := conditionHolds(c, message, tc)
		if r.MatchType == domain.MatchAny && ok {
			return true
		}
		if r.MatchType != domain.MatchAny && !ok {
			return false
		}
	}
	// ALL: every condition held. ANY: none did.
	return r.MatchType != domain.MatchAny
}

func conditionHolds(c domain.Condition, message string, tc domain.TurnContext) bool {
	msg := strings.ToLower(message)
	value := strings.ToLower(strings.TrimSpace(c.Value))

	switch c.Type {
	case domain.ConditionConversationStart:
		return tc.IsConversationStart

	case domain.ConditionUserWantsTo, domain.ConditionUserTalksAbout:
		return topicMatch(msg, value)

	case domain.ConditionUserAsksAbout:
		return isQuestion(msg) && strings.Contains(msg, value)

	case domain.ConditionUserSentimentIs:
		return sentimentMatch(value, strings.ToLower(tc.Sentiment))

	case domain.ConditionUserProvides:
		return providesMatch(message, value)

	case domain.ConditionSentenceContains:
		return strings.Contains(msg, value)
	}
	return false
}

// topicMatch accepts a direct substring, any content-word overlap, or a fuzzy
// word overlap at or above the threshold.
func topicMatch(msg, value string) bool {
	if value == "" {
		return false
	}
	if strings.Contains(msg, value) {
		return true
	}

	msgWords := wordSet(tokenize(msg))
	valueWords := contentWords(value)
	if len(valueWords) == 0 {
		return false
	}

	overlap := 0
	for _, w := range valueWords {
		if wordsOverlap(msgWords, w) {
			overlap++
		}
	}
	if overlap > 0 && overlap == len(valueWords) {
		return true
	}
	return float64(overlap)/float64(len(valueWords)) >= fuzzyOverlapThreshold
}

func contentWords(s string) []string {
	var words []string
	for _, w := range tokenize(s) {
		if _, stop := stopWords[w]; !stop {
			words = append(words, w)
		}
	}
	return words
}

func wordSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// wordsOverlap treats two words as matching when equal or when one is a
// prefix of the other (stems like "pricing"/"price" still count).
func wordsOverlap(msgWords map[string]struct{}, word string) bool {
	if _, ok := msgWords[word]; ok {
		return true
	}
	for mw := range msgWords {
		if len(mw) >= 4 && len(word) >= 4 &&
			(strings.HasPrefix(mw, word) || strings.HasPrefix(word, mw)) {
			return true
		}
	}
	return false
}

func isQuestion(msg string) bool {
	if strings.Contains(msg, "?") {
		return true
	}
	fields := strings.Fields(msg)
	if len(fields) == 0 {
		return false
	}
	_, ok := questionMarkers[strings.Trim(fields[0], ".,!?;:")]
	return ok
}

func sentimentMatch(value, detected string) bool {
	if value == detected {
		return true
	}
	var valueClass, detectedClass string
	for class, synonyms := range sentimentSynonyms {
		for _, s := range synonyms {
			if s == value {
				valueClass = class
			}
			if s == detected {
				detectedClass = class
			}
		}
	}
	return valueClass != "" && valueClass == detectedClass
}

func providesMatch(message, value string) bool {
	switch value {
	case "email", "email address":
		return emailPattern.MatchString(message)
	case "phone", "phone number":
		return phonePattern.MatchString(message)
	case "name":
		return namePattern.MatchString(message)
	}
	return strings.Contains(strings.ToLower(message), value)
}

// summarizeRules renders the candidate list as a numbered WHEN/DO summary for
// the semantic arbiter.
func summarizeRules(rules []domain.Rule) string {
	var sb strings.Builder
	for i, r := range rules {
		fmt.Fprintf(&sb, "%d. %s\n   WHEN (%s):", i+1, r.Name, r.MatchType)
		for _, c := range r.Conditions {
			fmt.Fprintf(&sb, " [%s %q]", c.Type, c.Value)
		}
		sb.WriteString("\n   DO:")
		for _, a := range r.Actions {
			fmt.Fprintf(&sb, " [%s %q]", a.Type, a.Value)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
