package service

import (
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

const assessmentSchema = `Respond ONLY with a JSON object, no markdown fences:
{
  "answer": "your reply to the user",
  "confidence": 0-100,
  "reason": "why you are or are not confident",
  "needs_more_info": false,
  "questions_needed": ["clarifying question", ...],
  "images_needed": false,
  "image_count": 0,
  "image_search_query": ""
}`

// buildGenerationPrompt assembles the single generation request for a turn:
// persona directives, action constraints, retrieved knowledge (or an explicit
// no-knowledge notice), recent history, and the current message.
func buildGenerationPrompt(persona domain.Persona, ac domain.ActionConstraint, results []domain.RetrievalResult, history []domain.DecisionTrace, message string, webSearch bool) string {
	var sb strings.Builder

	sb.WriteString("You are ")
	if persona.Name != "" {
		sb.WriteString(persona.Name)
	} else {
		sb.WriteString("a helpful assistant")
	}
	if persona.Description != "" {
		sb.WriteString(", ")
		sb.WriteString(persona.Description)
	}
	sb.WriteString(".\n")
	if persona.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s.\n", persona.Tone)
	}
	if persona.ResponseLength != "" {
		fmt.Fprintf(&sb, "Response length: %s.\n", persona.ResponseLength)
	}
	if persona.Language != "" {
		fmt.Fprintf(&sb, "Always reply in %s.\n", persona.Language)
	}
	if persona.Guidelines != "" {
		fmt.Fprintf(&sb, "Guidelines: %s\n", persona.Guidelines)
	}

	if len(ac.MustInclude) > 0 {
		fmt.Fprintf(&sb, "\nYour reply MUST include: %s\n", strings.Join(ac.MustInclude, "; "))
	}
	if len(ac.FocusTopics) > 0 {
		fmt.Fprintf(&sb, "Focus on: %s\n", strings.Join(ac.FocusTopics, "; "))
	}
	if len(ac.AvoidTopics) > 0 {
		fmt.Fprintf(&sb, "Do NOT talk about: %s\n", strings.Join(ac.AvoidTopics, "; "))
	}
	if len(ac.AskFor) > 0 {
		fmt.Fprintf(&sb, "Ask the user for: %s\n", strings.Join(ac.AskFor, "; "))
	}
	if len(ac.WebsiteHints) > 0 {
		fmt.Fprintf(&sb, "Prefer information from: %s\n", strings.Join(ac.WebsiteHints, "; "))
	}

	if len(results) > 0 {
		sb.WriteString("\nKnowledge base excerpts (ground your answer in these):\n")
		for _, r := range results {
			fmt.Fprintf(&sb, "[%d] %s\n", r.Rank, r.Chunk.Content)
		}
	} else if webSearch {
		sb.WriteString("\nNo matching knowledge base entries were found. Web search is enabled; you may ground your answer in current web results.\n")
	} else {
		sb.WriteString("\nNo matching knowledge base entries were found and web search is disabled. Answer from the directives above only, and say so when you do not know.\n")
	}

	if len(history) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "user: %s\nassistant: %s\n", t.Message, t.Response)
		}
	}

	fmt.Fprintf(&sb, "\nUser message:\n%s\n\n%s", message, assessmentSchema)
	return sb.String()
}
