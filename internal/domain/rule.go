package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConditionType string

const (
	ConditionConversationStart ConditionType = "conversation-start"
	ConditionUserWantsTo       ConditionType = "user-wants-to"
	ConditionUserTalksAbout    ConditionType = "user-talks-about"
	ConditionUserAsksAbout     ConditionType = "user-asks-about"
	ConditionUserSentimentIs   ConditionType = "user-sentiment-is"
	ConditionUserProvides      ConditionType = "user-provides"
	ConditionSentenceContains  ConditionType = "sentence-contains"
)

func ValidConditionType(t string) bool {
	switch ConditionType(t) {
	case ConditionConversationStart, ConditionUserWantsTo, ConditionUserTalksAbout,
		ConditionUserAsksAbout, ConditionUserSentimentIs, ConditionUserProvides,
		ConditionSentenceContains:
		return true
	}
	return false
}

type ActionType string

const (
	ActionSayExactMessage   ActionType = "say-exact-message"
	ActionAlwaysInclude     ActionType = "always-include"
	ActionAlwaysTalkAbout   ActionType = "always-talk-about"
	ActionTalkAbout         ActionType = "talk-about"
	ActionDontTalkAbout     ActionType = "dont-talk-about"
	ActionAskForInformation ActionType = "ask-for-information"
	ActionFindInWebsite     ActionType = "find-in-website"
	ActionAnswerUsingKB     ActionType = "answer-using-knowledge-base"
)

func ValidActionType(t string) bool {
	switch ActionType(t) {
	case ActionSayExactMessage, ActionAlwaysInclude, ActionAlwaysTalkAbout,
		ActionTalkAbout, ActionDontTalkAbout, ActionAskForInformation,
		ActionFindInWebsite, ActionAnswerUsingKB:
		return true
	}
	return false
}

type MatchType string

const (
	MatchAll MatchType = "ALL"
	MatchAny MatchType = "ANY"
)

func ValidMatchType(t string) bool {
	switch MatchType(t) {
	case MatchAll, MatchAny:
		return true
	}
	return false
}

// Condition is the WHEN half of a rule. Value is empty only for
// conversation-start.
type Condition struct {
	Type  ConditionType `json:"type"`
	Value string        `json:"value,omitempty"`
}

// Action is the DO half of a rule. The meaning of Value depends on Type; for
// answer-using-knowledge-base it optionally names a source filter.
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value,omitempty"`
}

// Rule is a named (conditions -> actions) configuration scoped to one agent.
// Rules are read-only during a turn; the pipeline never mutates them.
type Rule struct {
	ID         uuid.UUID   `json:"id"`
	AgentID    uuid.UUID   `json:"agent_id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	MatchType  MatchType   `json:"match_type"`
	Actions    []Action    `json:"actions"`
	Priority   int         `json:"priority"`
	Active     bool        `json:"active"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Validate checks the closed vocabularies and structural invariants before a
// rule is stored. Invalid rules never reach the decision pipeline.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return &ValidationError{Field: "name", Reason: "must not be empty", Index: -1}
	}
	if !ValidMatchType(string(r.MatchType)) {
		return &ValidationError{Field: "match_type", Reason: "must be ALL or ANY", Index: -1}
	}
	if len(r.Conditions) == 0 {
		return &ValidationError{Field: "conditions", Reason: "at least one condition is required", Index: -1}
	}
	if len(r.Actions) == 0 {
		return &ValidationError{Field: "actions", Reason: "at least one action is required", Index: -1}
	}
	for i, c := range r.Conditions {
		if !ValidConditionType(string(c.Type)) {
			return &ValidationError{Field: "conditions", Reason: "unknown condition type " + string(c.Type), Index: i}
		}
		if c.Type != ConditionConversationStart && c.Value == "" {
			return &ValidationError{Field: "conditions", Reason: "value required for " + string(c.Type), Index: i}
		}
	}
	for i, a := range r.Actions {
		if !ValidActionType(string(a.Type)) {
			return &ValidationError{Field: "actions", Reason: "unknown action type " + string(a.Type), Index: i}
		}
	}
	return nil
}
