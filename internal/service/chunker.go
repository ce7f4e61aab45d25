package service

import "strings"

// Chunking windows, in words. Link sources use the wider window because
// scraped pages carry more boilerplate per unit of signal.
const (
	textChunkWindow  = 500
	textChunkOverlap = 100
	linkChunkWindow  = 1000
	linkChunkOverlap = 200
)

// splitWords normalizes whitespace and splits content into overlapping
// word windows. The final window absorbs any short remainder.
func splitWords(content string, window, overlap int) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	if len(words) <= window {
		return []string{strings.Join(words, " ")}
	}

	step := window - overlap
	if step <= 0 {
		step = window
	}

	var chunks []string
	for start := 0; start < len(words); start += step {
		end := start + window
		if end >= len(words) {
			chunks = append(chunks, strings.Join(words[start:], " "))
			break
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}
