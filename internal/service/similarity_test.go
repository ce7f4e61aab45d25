package service

import (
	"math"
	"testing"

	"github.com/parleyhq/parley/internal/domain"
)

func approxEq(a, b float32) bool {
	return math.Abs(float64(a-b)) < 0.0001
}

func TestSimilarity_DimensionMismatch(t *testing.T) {
	_, ok := similarity(domain.SimilarityCosine, []float32{1, 0}, []float32{1, 0, 0})
	if ok {
		t.Fatal("expected mismatched dimensions to be rejected")
	}
	_, ok = similarity(domain.SimilarityCosine, nil, nil)
	if ok {
		t.Fatal("expected empty query to be rejected")
	}
}

func TestSimilarity_CosineMappedRange(t *testing.T) {
	// Identical direction maps to 1, opposite to 0, orthogonal to 0.5.
	score, ok := similarity(domain.SimilarityCosine, []float32{1, 0}, []float32{2, 0})
	if !ok || !approxEq(score, 1) {
		t.Errorf("identical direction: got %f", score)
	}

	score, _ = similarity(domain.SimilarityCosine, []float32{1, 0}, []float32{-1, 0})
	if !approxEq(score, 0) {
		t.Errorf("opposite direction: got %f", score)
	}

	score, _ = similarity(domain.SimilarityCosine, []float32{1, 0}, []float32{0, 1})
	if !approxEq(score, 0.5) {
		t.Errorf("orthogonal: got %f", score)
	}
}

func TestSimilarity_ZeroVectorCosine(t *testing.T) {
	score, ok := similarity(domain.SimilarityCosine, []float32{1, 0}, []float32{0, 0})
	if !ok || score != 0 {
		t.Errorf("zero vector should score 0, got %f", score)
	}
}

func TestSimilarity_Euclidean(t *testing.T) {
	score, ok := similarity(domain.SimilarityEuclidean, []float32{1, 2}, []float32{1, 2})
	if !ok || !approxEq(score, 1) {
		t.Errorf("identical vectors: got %f", score)
	}

	// Distance 1 maps to 1/2.
	score, _ = similarity(domain.SimilarityEuclidean, []float32{0, 0}, []float32{1, 0})
	if !approxEq(score, 0.5) {
		t.Errorf("unit distance: got %f", score)
	}
}

func TestSimilarity_Jaccard(t *testing.T) {
	// Positive-index sets {0,1} and {1,2}: intersection 1, union 3.
	score, ok := similarity(domain.SimilarityJaccard, []float32{0.5, 0.5, 0}, []float32{0, 0.5, 0.5})
	if !ok || !approxEq(score, float32(1.0/3.0)) {
		t.Errorf("expected 1/3, got %f", score)
	}

	// No positive components on either side.
	score, _ = similarity(domain.SimilarityJaccard, []float32{0, 0}, []float32{0, 0})
	if score != 0 {
		t.Errorf("expected empty union to score 0, got %f", score)
	}
}
