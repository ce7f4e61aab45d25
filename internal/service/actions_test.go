package service

import (
	"testing"

	"github.com/parleyhq/parley/internal/domain"
)

func TestBuildConstraint_NilRule(t *testing.T) {
	ac := BuildConstraint(nil)
	if ac.ExactResponse != "" || ac.ForceKB || len(ac.MustInclude) != 0 {
		t.Fatal("expected zero constraint for nil rule")
	}
}

func TestBuildConstraint_Aggregation(t *testing.T) {
	rule := &domain.Rule{
		Actions: []domain.Action{
			{Type: domain.ActionAlwaysInclude, Value: "Our support line is open 9-5."},
			{Type: domain.ActionAlwaysTalkAbout, Value: "premium plan"},
			{Type: domain.ActionTalkAbout, Value: "free trial"},
			{Type: domain.ActionDontTalkAbout, Value: "competitor pricing"},
			{Type: domain.ActionAskForInformation, Value: "order number"},
			{Type: domain.ActionFindInWebsite, Value: "https://acme.example/faq"},
		},
	}

	ac := BuildConstraint(rule)
	if len(ac.MustInclude) != 1 {
		t.Errorf("expected 1 must-include, got %d", len(ac.MustInclude))
	}
	if len(ac.FocusTopics) != 2 {
		t.Errorf("expected always-talk-about and talk-about to both land in focus topics, got %d", len(ac.FocusTopics))
	}
	if len(ac.AvoidTopics) != 1 || ac.AvoidTopics[0] != "competitor pricing" {
		t.Errorf("unexpected avoid topics: %v", ac.AvoidTopics)
	}
	if len(ac.AskFor) != 1 || len(ac.WebsiteHints) != 1 {
		t.Error("expected ask-for and website hints to aggregate")
	}
	if ac.ForceKB {
		t.Error("ForceKB should stay false without answer-using-knowledge-base")
	}
}

func TestBuildConstraint_ExactResponseLastWriteWins(t *testing.T) {
	rule := &domain.Rule{
		Actions: []domain.Action{
			{Type: domain.ActionSayExactMessage, Value: "first"},
			{Type: domain.ActionSayExactMessage, Value: "second"},
		},
	}

	ac := BuildConstraint(rule)
	if ac.ExactResponse != "second" {
		t.Errorf("expected last say-exact-message to win, got %q", ac.ExactResponse)
	}
}

func TestBuildConstraint_KnowledgeBaseAction(t *testing.T) {
	rule := &domain.Rule{
		Actions: []domain.Action{
			{Type: domain.ActionAnswerUsingKB, Value: "file:refund-policy.pdf"},
		},
	}

	ac := BuildConstraint(rule)
	if !ac.ForceKB {
		t.Fatal("expected ForceKB to be set")
	}
	if ac.SourceFilter == nil || ac.SourceFilter.Kind != domain.SourceFilterFile {
		t.Fatalf("expected file source filter, got %+v", ac.SourceFilter)
	}
	if ac.SourceFilter.Name != "refund-policy.pdf" {
		t.Errorf("unexpected filter name %q", ac.SourceFilter.Name)
	}
}

func TestParseSourceFilter(t *testing.T) {
	cases := []struct {
		in       string
		wantKind domain.SourceFilterKind
		wantNil  bool
	}{
		{"", "", true},
		{"all", "", true},
		{"ALL", "", true},
		{"file:", "", true},
		{"link:  ", "", true},
		{"file:manual.pdf", domain.SourceFilterFile, false},
		{"link:acme.example", domain.SourceFilterLink, false},
		{"text:shipping times", domain.SourceFilterText, false},
		{"https://acme.example/docs", domain.SourceFilterLink, false},
		{"www.acme.example", domain.SourceFilterLink, false},
		{"pricing-sheet.xlsx", domain.SourceFilterFile, false},
		{"return window details", domain.SourceFilterText, false},
	}

	for _, tc := range cases {
		got := ParseSourceFilter(tc.in)
		if tc.wantNil {
			if got != nil {
				t.Errorf("ParseSourceFilter(%q) = %+v, want nil", tc.in, got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ParseSourceFilter(%q) = nil, want kind %s", tc.in, tc.wantKind)
			continue
		}
		if got.Kind != tc.wantKind {
			t.Errorf("ParseSourceFilter(%q) kind = %s, want %s", tc.in, got.Kind, tc.wantKind)
		}
	}
}
