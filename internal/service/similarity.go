package service

import (
	"math"

	"github.com/parleyhq/parley/internal/domain"
)

// similarity computes the score between a query vector and a chunk vector in
// [0,1] using the agent's configured method. ok is false on a dimensionality
// mismatch; such chunks are skipped, never scored.
func similarity(method domain.SimilarityMethod, query, vec []float32) (score float32, ok bool) {
	if len(query) == 0 || len(query) != len(vec) {
		return 0, false
	}

	switch method {
	case domain.SimilarityEuclidean:
		return euclideanSimilarity(query, vec), true
	case domain.SimilarityJaccard:
		return jaccardSimilarity(query, vec), true
	default:
		return cosineSimilarity(query, vec), true
	}
}

func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Map [-1,1] to [0,1].
	return float32((cos + 1) / 2)
}

// euclideanSimilarity maps the L2 distance into (0,1], 1 at distance zero.
func euclideanSimilarity(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(1 / (1 + math.Sqrt(sum)))
}

// jaccardSimilarity binarizes both vectors at zero and compares the resulting
// index sets.
func jaccardSimilarity(a, b []float32) float32 {
	var intersection, union int
	for i := range a {
		pa := a[i] > 0
		pb := b[i] > 0
		if pa && pb {
			intersection++
		}
		if pa || pb {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float32(intersection) / float32(union)
}
