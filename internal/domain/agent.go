package domain

import (
	"time"

	"github.com/google/uuid"
)

type SimilarityMethod string

const (
	SimilarityCosine    SimilarityMethod = "cosine"
	SimilarityEuclidean SimilarityMethod = "euclidean"
	SimilarityJaccard   SimilarityMethod = "jaccard"
)

func ValidSimilarityMethod(m string) bool {
	switch SimilarityMethod(m) {
	case SimilarityCosine, SimilarityEuclidean, SimilarityJaccard:
		return true
	}
	return false
}

// Persona holds the directives that frame every generated reply.
type Persona struct {
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	Tone           string `json:"tone,omitempty"`
	ResponseLength string `json:"response_length,omitempty"`
	Language       string `json:"language,omitempty"`
	Guidelines     string `json:"guidelines,omitempty"`
}

// AgentSettings tunes retrieval and history for one agent. EmbeddingModel is
// fixed per agent; every chunk the agent owns carries a vector of that model's
// length.
type AgentSettings struct {
	EmbeddingModel      string           `json:"embedding_model"`
	SimilarityMethod    SimilarityMethod `json:"similarity_method"`
	TopK                int              `json:"top_k"`
	SimilarityThreshold float32          `json:"similarity_threshold"`
	HistoryWindow       int              `json:"history_window"`
}

func DefaultAgentSettings() AgentSettings {
	return AgentSettings{
		EmbeddingModel:      "text-embedding-3-small",
		SimilarityMethod:    SimilarityCosine,
		TopK:                5,
		SimilarityThreshold: 0.5,
		HistoryWindow:       10,
	}
}

type Agent struct {
	ID        uuid.UUID     `json:"id"`
	Name      string        `json:"name"`
	Persona   Persona       `json:"persona"`
	Settings  AgentSettings `json:"settings"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}
