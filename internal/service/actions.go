package service

import (
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

// BuildConstraint aggregates a matched rule's actions in declaration order.
// List-valued action kinds append; single-valued kinds are last-write-wins.
// A nil rule yields the zero constraint.
func BuildConstraint(r *domain.Rule) domain.ActionConstraint {
	var ac domain.ActionConstraint
	if r == nil {
		return ac
	}

	for _, a := range r.Actions {
		value := strings.TrimSpace(a.Value)
		switch a.Type {
		case domain.ActionSayExactMessage:
			ac.ExactResponse = value
		case domain.ActionAlwaysInclude:
			if value != "" {
				ac.MustInclude = append(ac.MustInclude, value)
			}
		case domain.ActionAlwaysTalkAbout, domain.ActionTalkAbout:
			if value != "" {
				ac.FocusTopics = append(ac.FocusTopics, value)
			}
		case domain.ActionDontTalkAbout:
			if value != "" {
				ac.AvoidTopics = append(ac.AvoidTopics, value)
			}
		case domain.ActionAskForInformation:
			if value != "" {
				ac.AskFor = append(ac.AskFor, value)
			}
		case domain.ActionFindInWebsite:
			if value != "" {
				ac.WebsiteHints = append(ac.WebsiteHints, value)
			}
		case domain.ActionAnswerUsingKB:
			ac.ForceKB = true
			ac.SourceFilter = ParseSourceFilter(value)
		}
	}
	return ac
}

// ParseSourceFilter turns a knowledge-base action value into a typed source
// filter. Empty or "all" means no filter; so does anything malformed.
// Explicit "file:", "link:", and "text:" prefixes select the kind directly;
// otherwise the shape of the value decides: a dotted file name maps to a file
// filter, a URL-looking value to a link filter, anything else to a
// text-fragment filter.
func ParseSourceFilter(value string) *domain.SourceFilter {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "all") {
		return nil
	}

	if rest, ok := strings.CutPrefix(value, "file:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return nil
		}
		return &domain.SourceFilter{Kind: domain.SourceFilterFile, Name: rest}
	}
	if rest, ok := strings.CutPrefix(value, "link:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return nil
		}
		return &domain.SourceFilter{Kind: domain.SourceFilterLink, Name: rest}
	}
	if rest, ok := strings.CutPrefix(value, "text:"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return nil
		}
		return &domain.SourceFilter{Kind: domain.SourceFilterText, Content: rest}
	}

	if looksLikeURL(value) {
		return &domain.SourceFilter{Kind: domain.SourceFilterLink, Name: value}
	}
	if looksLikeFileName(value) {
		return &domain.SourceFilter{Kind: domain.SourceFilterFile, Name: value}
	}
	return &domain.SourceFilter{Kind: domain.SourceFilterText, Content: value}
}

func looksLikeURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "www.")
}

func looksLikeFileName(s string) bool {
	if strings.ContainsAny(s, " \t") {
		return false
	}
	dot := strings.LastIndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return false
	}
	ext := s[dot+1:]
	return len(ext) >= 2 && len(ext) <= 5
}
