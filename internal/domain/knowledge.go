package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChunkType string

const (
	ChunkTypeText ChunkType = "text"
	ChunkTypeFile ChunkType = "file"
	ChunkTypeLink ChunkType = "link"
	ChunkTypeQnA  ChunkType = "qna"
)

func ValidChunkType(t string) bool {
	switch ChunkType(t) {
	case ChunkTypeText, ChunkTypeFile, ChunkTypeLink, ChunkTypeQnA:
		return true
	}
	return false
}

// Chunk priority defaults. QnA entries rank above ingested text at equal
// similarity.
const (
	DefaultChunkPriority = 0
	QnAChunkPriority     = 2
)

// KnowledgeChunk is one unit of ingested, embedded text. Content is immutable
// except through an explicit update that re-embeds.
type KnowledgeChunk struct {
	ID        uuid.UUID         `json:"id"`
	AgentID   uuid.UUID         `json:"agent_id"`
	Type      ChunkType         `json:"type"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"-"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Priority  int               `json:"priority"`
	CreatedAt time.Time         `json:"created_at"`
}

// Metadata keys written at ingestion time.
const (
	MetaFileName   = "file_name"
	MetaURL        = "url"
	MetaPageTitle  = "page_title"
	MetaChunkIndex = "chunk_index"
	MetaTotal      = "total_chunks"
	MetaQuestion   = "question"
	MetaTraceID    = "trace_id"
)

// RetrievalResult pairs a chunk with its boosted similarity score. Transient,
// never persisted.
type RetrievalResult struct {
	Chunk KnowledgeChunk `json:"chunk"`
	Score float32        `json:"score"`
	Rank  int            `json:"rank"`
}

type SourceFilterKind string

const (
	SourceFilterFile SourceFilterKind = "file"
	SourceFilterLink SourceFilterKind = "link"
	SourceFilterText SourceFilterKind = "text"
)

// SourceFilter narrows retrieval to one ingested source. Name holds the file
// name or link title; Content holds a text fragment for text sources.
type SourceFilter struct {
	Kind    SourceFilterKind `json:"kind"`
	Name    string           `json:"name,omitempty"`
	Content string           `json:"content,omitempty"`
}

// RetrievalOpts selects and bounds a knowledge query. Zero values fall back to
// the agent's configured defaults.
type RetrievalOpts struct {
	TopK      int
	Threshold float32
	Filter    *SourceFilter
}
