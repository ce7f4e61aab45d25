package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

// assessmentStatus classifies how the generator's raw reply parsed.
type assessmentStatus int

const (
	// assessmentParsed: a balanced JSON object parsed into an Assessment.
	assessmentParsed assessmentStatus = iota
	// assessmentPlainText: the reply does not look like a structured object
	// at all; treat it as a plain answer at assumed medium confidence.
	assessmentPlainText
	// assessmentMalformed: an object span exists but does not parse; the
	// confidence sentinel applies.
	assessmentMalformed
)

const assumedPlainTextConfidence = 50

// parseAssessment extracts the first balanced {...} span from the raw reply,
// tolerating surrounding prose and code fences, and parses the structured
// self-assessment. It never fails: malformed output degrades per the
// confidence-gate rules.
func parseAssessment(raw string) (domain.Assessment, assessmentStatus) {
	span, ok := extractJSONObject(raw)
	if !ok {
		return domain.Assessment{
			Answer:     strings.TrimSpace(raw),
			Confidence: assumedPlainTextConfidence,
		}, assessmentPlainText
	}

	var a domain.Assessment
	if err := json.Unmarshal([]byte(span), &a); err != nil {
		return domain.Assessment{
			Answer:     strings.TrimSpace(raw),
			Confidence: domain.ConfidenceUnparsed,
		}, assessmentMalformed
	}
	return a, assessmentParsed
}

// extractJSONObject returns the first balanced {...} span in raw.
func extractJSONObject(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return raw[start : i+1], true
				}
			}
		}
	}
	return "", false
}

const (
	// confidenceThreshold gates generated answers.
	confidenceThreshold = 70

	// minUsefulAnswerLength accepts a low-confidence answer that is still
	// substantial enough to be useful.
	minUsefulAnswerLength = 50
)

const clarificationFallback = `I want to make sure I give you an accurate answer, but I need a bit more detail first.

- Could you rephrase what you are looking for?
- Is there a specific topic or product this is about?
- What have you already tried or found so far?`

// applyConfidenceGate accepts, augments, or discards the generated answer
// based on its self-reported confidence.
func applyConfidenceGate(a domain.Assessment) string {
	if a.Confidence >= confidenceThreshold {
		return a.Answer
	}

	if len(a.QuestionsNeeded) > 0 {
		var sb strings.Builder
		sb.WriteString(a.Answer)
		sb.WriteString("\n\nTo help you better, could you tell me:\n")
		for _, q := range a.QuestionsNeeded {
			sb.WriteString("- ")
			sb.WriteString(q)
			sb.WriteString("\n")
		}
		return strings.TrimRight(sb.String(), "\n")
	}

	if len(a.Answer) > minUsefulAnswerLength {
		return a.Answer
	}

	return clarificationFallback
}

var citationMarker = regexp.MustCompile(`\[\d+\]`)

// stripCitations removes [n] citation markers. Called only when grounding
// returned zero sources; with sources present the markers stay so a consumer
// can render them as links.
func stripCitations(text string) string {
	return citationMarker.ReplaceAllString(text, "")
}
