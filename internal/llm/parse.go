package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/parleyhq/parley/internal/domain"
)

// ExtractJSONObject returns the first balanced {...} span in raw, tolerating
// leading or trailing prose and code-fence markers. Returns false when no
// balanced object is present.
func ExtractJSONObject(raw string) (string, bool) {
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

func parseIntent(raw string) (domain.IntentResult, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return domain.IntentResult{}, fmt.Errorf("no JSON object in intent reply")
	}
	var res domain.IntentResult
	if err := json.Unmarshal([]byte(span), &res); err != nil {
		return domain.IntentResult{}, fmt.Errorf("parse intent reply: %w", err)
	}
	if res.Intent == "" {
		res.Intent = "unknown"
	}
	return res, nil
}

func parseSentiment(raw string) (domain.SentimentResult, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return domain.SentimentResult{}, fmt.Errorf("no JSON object in sentiment reply")
	}
	var res domain.SentimentResult
	if err := json.Unmarshal([]byte(span), &res); err != nil {
		return domain.SentimentResult{}, fmt.Errorf("parse sentiment reply: %w", err)
	}
	if res.Sentiment == "" {
		res.Sentiment = "neutral"
	}
	return res, nil
}

func parseVerdict(raw string) (domain.ArbiterVerdict, error) {
	span, ok := ExtractJSONObject(raw)
	if !ok {
		return domain.ArbiterVerdict{}, fmt.Errorf("no JSON object in arbiter reply")
	}
	var v domain.ArbiterVerdict
	if err := json.Unmarshal([]byte(span), &v); err != nil {
		return domain.ArbiterVerdict{}, fmt.Errorf("parse arbiter reply: %w", err)
	}
	return v, nil
}
