package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrChunkNotFound      = errors.New("knowledge chunk not found")
	ErrContentEmpty       = errors.New("content is required")
	ErrInvalidChunkType   = errors.New("invalid chunk type")
	ErrTraceNotFound      = errors.New("decision trace not found")
	ErrTraceAgentMismatch = errors.New("trace does not belong to this agent")
	ErrResponseEmpty      = errors.New("approved response is required")
)

const (
	embedTimeout = 15 * time.Second

	// Retrieval defaults. A forced source filter widens the scan first and
	// re-truncates after filtering.
	defaultTopK       = 5
	defaultThreshold  = 0.5
	filteredTopK      = 10
	filteredThreshold = 0.3

	// priorityBoost is added to the similarity score per unit of chunk
	// priority, so qna entries edge out plain text at equal similarity.
	priorityBoost = 0.05

	// parallelScanThreshold is the knowledge-base size above which per-chunk
	// scoring fans out across goroutines.
	parallelScanThreshold = 256
	scanWorkers           = 8
)

// KnowledgeService owns ingestion, retrieval, and teach-promotion of an
// agent's knowledge base.
type KnowledgeService struct {
	chunks   domain.KnowledgeStore
	agents   domain.AgentStore
	traces   domain.TraceStore
	embedder domain.EmbeddingClient
	logger   *zap.Logger
}

func NewKnowledgeService(chunks domain.KnowledgeStore, agents domain.AgentStore, traces domain.TraceStore, embedder domain.EmbeddingClient, logger *zap.Logger) *KnowledgeService {
	return &KnowledgeService{
		chunks:   chunks,
		agents:   agents,
		traces:   traces,
		embedder: embedder,
		logger:   logger,
	}
}

// Ingest normalizes and splits content into overlapping word windows, embeds
// each window, and stores the resulting chunks with sequential index
// metadata. Returns the created chunks.
func (s *KnowledgeService) Ingest(ctx context.Context, agentID uuid.UUID, chunkType domain.ChunkType, content string, metadata map[string]string) ([]domain.KnowledgeChunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentEmpty
	}
	if !domain.ValidChunkType(string(chunkType)) {
		return nil, ErrInvalidChunkType
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}

	window, overlap := textChunkWindow, textChunkOverlap
	if chunkType == domain.ChunkTypeLink {
		window, overlap = linkChunkWindow, linkChunkOverlap
	}
	windows := splitWords(content, window, overlap)

	vectors, err := s.embedBatch(ctx, windows, agent.Settings.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	priority := domain.DefaultChunkPriority
	if chunkType == domain.ChunkTypeQnA {
		priority = domain.QnAChunkPriority
	}

	created := make([]*domain.KnowledgeChunk, len(windows))
	for i, w := range windows {
		meta := make(map[string]string, len(metadata)+2)
		for k, v := range metadata {
			meta[k] = v
		}
		meta[domain.MetaChunkIndex] = strconv.Itoa(i)
		meta[domain.MetaTotal] = strconv.Itoa(len(windows))

		created[i] = &domain.KnowledgeChunk{
			AgentID:   agentID,
			Type:      chunkType,
			Content:   w,
			Embedding: vectors[i],
			Metadata:  meta,
			Priority:  priority,
		}
	}

	if err := s.chunks.CreateBatch(ctx, created); err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	result := make([]domain.KnowledgeChunk, len(created))
	for i, c := range created {
		result[i] = *c
	}
	s.logger.Info("knowledge ingested",
		zap.String("agent_id", agentID.String()),
		zap.String("type", string(chunkType)),
		zap.Int("chunks", len(result)))
	return result, nil
}

// Query embeds the message and ranks the agent's chunks by boosted
// similarity. With a source filter the scan widens first, then filters, then
// re-truncates. Ties break by chunk id so results are reproducible.
func (s *KnowledgeService) Query(ctx context.Context, agent *domain.Agent, message string, filter *domain.SourceFilter) ([]domain.RetrievalResult, error) {
	queryVec, err := s.embed(ctx, message, agent.Settings.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	chunks, err := s.chunks.ListByAgent(ctx, agent.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	topK := agent.Settings.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	threshold := agent.Settings.SimilarityThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if filter != nil {
		topK = filteredTopK
		threshold = filteredThreshold
	}

	scored := s.scoreChunks(ctx, agent.Settings.SimilarityMethod, queryVec, chunks)

	kept := scored[:0]
	for _, r := range scored {
		if r.Score >= threshold {
			kept = append(kept, r)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return bytes.Compare(kept[i].Chunk.ID[:], kept[j].Chunk.ID[:]) < 0
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}

	if filter != nil {
		filtered := kept[:0]
		for _, r := range kept {
			if sourceFilterMatch(&r.Chunk, filter) {
				filtered = append(filtered, r)
			}
		}
		kept = filtered
		if len(kept) > defaultTopK {
			kept = kept[:defaultTopK]
		}
	}

	for i := range kept {
		kept[i].Rank = i + 1
	}
	return kept, nil
}

// scoreChunks computes boosted similarity for every chunk. Large knowledge
// bases fan out across workers; the output order is positional either way, so
// parallel execution cannot change the final ranking.
func (s *KnowledgeService) scoreChunks(ctx context.Context, method domain.SimilarityMethod, queryVec []float32, chunks []domain.KnowledgeChunk) []domain.RetrievalResult {
	scores := make([]float32, len(chunks))
	valid := make([]bool, len(chunks))

	scoreRange := func(start, end int) {
		for i := start; i < end; i++ {
			sim, ok := similarity(method, queryVec, chunks[i].Embedding)
			if !ok {
				continue
			}
			boosted := sim + priorityBoost*float32(chunks[i].Priority)
			if boosted > 1 {
				boosted = 1
			}
			scores[i] = boosted
			valid[i] = true
		}
	}

	if len(chunks) < parallelScanThreshold {
		scoreRange(0, len(chunks))
	} else {
		g, _ := errgroup.WithContext(ctx)
		step := (len(chunks) + scanWorkers - 1) / scanWorkers
		for start := 0; start < len(chunks); start += step {
			end := start + step
			if end > len(chunks) {
				end = len(chunks)
			}
			g.Go(func() error {
				scoreRange(start, end)
				return nil
			})
		}
		_ = g.Wait()
	}

	results := make([]domain.RetrievalResult, 0, len(chunks))
	for i := range chunks {
		if !valid[i] {
			continue
		}
		results = append(results, domain.RetrievalResult{Chunk: chunks[i], Score: scores[i]})
	}
	return results
}

func sourceFilterMatch(c *domain.KnowledgeChunk, f *domain.SourceFilter) bool {
	switch f.Kind {
	case domain.SourceFilterFile:
		return c.Metadata[domain.MetaFileName] == f.Name
	case domain.SourceFilterLink:
		name := strings.ToLower(f.Name)
		return strings.Contains(strings.ToLower(c.Metadata[domain.MetaPageTitle]), name) ||
			strings.Contains(strings.ToLower(c.Metadata[domain.MetaURL]), name)
	case domain.SourceFilterText:
		return strings.HasPrefix(
			strings.ToLower(strings.Join(strings.Fields(c.Content), " ")),
			strings.ToLower(strings.Join(strings.Fields(f.Content), " ")),
		)
	}
	return false
}

// UpdateChunk replaces a chunk's content and re-embeds it through the same
// path ingestion uses.
func (s *KnowledgeService) UpdateChunk(ctx context.Context, id uuid.UUID, content string) (*domain.KnowledgeChunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrContentEmpty
	}

	chunk, err := s.chunks.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChunkNotFound
		}
		return nil, err
	}

	agent, err := s.agents.GetByID(ctx, chunk.AgentID)
	if err != nil {
		return nil, err
	}

	vec, err := s.embed(ctx, content, agent.Settings.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	if err := s.chunks.UpdateContent(ctx, id, content, vec); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrChunkNotFound
		}
		return nil, err
	}

	chunk.Content = content
	chunk.Embedding = vec
	return chunk, nil
}

// Teach promotes an approved response into a qna chunk: question = the
// trace's original message, answer = the approved response. Teaching twice
// from the same trace yields two distinct chunks; deduplication is the
// caller's responsibility.
func (s *KnowledgeService) Teach(ctx context.Context, agentID, traceID uuid.UUID, approvedResponse string) (*domain.KnowledgeChunk, error) {
	if strings.TrimSpace(approvedResponse) == "" {
		return nil, ErrResponseEmpty
	}

	trace, err := s.traces.GetByID(ctx, traceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrTraceNotFound
		}
		return nil, err
	}
	if trace.AgentID != agentID {
		return nil, ErrTraceAgentMismatch
	}

	content := fmt.Sprintf("Q: %s\nA: %s", trace.Message, approvedResponse)
	chunks, err := s.Ingest(ctx, agentID, domain.ChunkTypeQnA, content, map[string]string{
		domain.MetaQuestion: trace.Message,
		domain.MetaTraceID:  traceID.String(),
	})
	if err != nil {
		return nil, err
	}
	return &chunks[0], nil
}

func (s *KnowledgeService) ListByAgent(ctx context.Context, agentID uuid.UUID, chunkType *domain.ChunkType) ([]domain.KnowledgeChunk, error) {
	if chunkType != nil && !domain.ValidChunkType(string(*chunkType)) {
		return nil, ErrInvalidChunkType
	}
	return s.chunks.ListByAgent(ctx, agentID, chunkType)
}

func (s *KnowledgeService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.chunks.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrChunkNotFound
	}
	return err
}

func (s *KnowledgeService) embed(ctx context.Context, text, model string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, embedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(ectx, text, model)
	if err != nil {
		return nil, &domain.UpstreamError{Collaborator: "embedding", Fatal: true, Err: err}
	}
	return vec, nil
}

func (s *KnowledgeService) embedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, embedTimeout*time.Duration(1+len(texts)/16))
	defer cancel()

	vectors, err := s.embedder.EmbedBatch(ectx, texts, model)
	if err != nil {
		return nil, &domain.UpstreamError{Collaborator: "embedding", Fatal: true, Err: err}
	}
	if len(vectors) != len(texts) {
		return nil, &domain.UpstreamError{
			Collaborator: "embedding",
			Fatal:        true,
			Err:          fmt.Errorf("got %d vectors for %d windows", len(vectors), len(texts)),
		}
	}
	return vectors, nil
}
