package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
)

// mockAgentStore implements domain.AgentStore for testing.
type mockAgentStore struct {
	agents map[uuid.UUID]*domain.Agent
}

func newMockAgentStore() *mockAgentStore {
	return &mockAgentStore{agents: make(map[uuid.UUID]*domain.Agent)}
}

func (m *mockAgentStore) Create(ctx context.Context, a *domain.Agent) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.CreatedAt = time.Now()
	m.agents[a.ID] = a
	return nil
}

func (m *mockAgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, ok := m.agents[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return a, nil
}

func (m *mockAgentStore) Update(ctx context.Context, a *domain.Agent) error {
	if _, ok := m.agents[a.ID]; !ok {
		return store.ErrNotFound
	}
	m.agents[a.ID] = a
	return nil
}

func (m *mockAgentStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.agents[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.agents, id)
	return nil
}

// mockRuleStore implements domain.RuleStore for testing.
type mockRuleStore struct {
	rules map[uuid.UUID]*domain.Rule
}

func newMockRuleStore() *mockRuleStore {
	return &mockRuleStore{rules: make(map[uuid.UUID]*domain.Rule)}
}

func (m *mockRuleStore) Create(ctx context.Context, r *domain.Rule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.CreatedAt = time.Now()
	m.rules[r.ID] = r
	return nil
}

func (m *mockRuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return r, nil
}

func (m *mockRuleStore) Update(ctx context.Context, r *domain.Rule) error {
	if _, ok := m.rules[r.ID]; !ok {
		return store.ErrNotFound
	}
	m.rules[r.ID] = r
	return nil
}

func (m *mockRuleStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	r, ok := m.rules[id]
	if !ok {
		return store.ErrNotFound
	}
	r.Active = false
	return nil
}

func (m *mockRuleStore) ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Rule, error) {
	var out []domain.Rule
	for _, r := range m.rules {
		if r.AgentID == agentID && r.Active {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *mockRuleStore) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Rule, error) {
	var out []domain.Rule
	for _, r := range m.rules {
		if r.AgentID == agentID {
			out = append(out, *r)
		}
	}
	return out, nil
}

// mockKnowledgeStore implements domain.KnowledgeStore for testing.
type mockKnowledgeStore struct {
	chunks map[uuid.UUID]*domain.KnowledgeChunk
}

func newMockKnowledgeStore() *mockKnowledgeStore {
	return &mockKnowledgeStore{chunks: make(map[uuid.UUID]*domain.KnowledgeChunk)}
}

func (m *mockKnowledgeStore) Create(ctx context.Context, c *domain.KnowledgeChunk) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	m.chunks[c.ID] = c
	return nil
}

func (m *mockKnowledgeStore) CreateBatch(ctx context.Context, chunks []*domain.KnowledgeChunk) error {
	for _, c := range chunks {
		if err := m.Create(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockKnowledgeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeChunk, error) {
	c, ok := m.chunks[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return c, nil
}

func (m *mockKnowledgeStore) ListByAgent(ctx context.Context, agentID uuid.UUID, chunkType *domain.ChunkType) ([]domain.KnowledgeChunk, error) {
	var out []domain.KnowledgeChunk
	for _, c := range m.chunks {
		if c.AgentID != agentID {
			continue
		}
		if chunkType != nil && c.Type != *chunkType {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

func (m *mockKnowledgeStore) UpdateContent(ctx context.Context, id uuid.UUID, content string, embedding []float32) error {
	c, ok := m.chunks[id]
	if !ok {
		return store.ErrNotFound
	}
	c.Content = content
	c.Embedding = embedding
	return nil
}

func (m *mockKnowledgeStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.chunks[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.chunks, id)
	return nil
}

// mockTraceStore implements domain.TraceStore for testing.
type mockTraceStore struct {
	traces   []*domain.DecisionTrace
	countErr error
	listErr  error
}

func newMockTraceStore() *mockTraceStore {
	return &mockTraceStore{}
}

func (m *mockTraceStore) Create(ctx context.Context, t *domain.DecisionTrace) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	m.traces = append(m.traces, t)
	return nil
}

func (m *mockTraceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DecisionTrace, error) {
	for _, t := range m.traces {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockTraceStore) ListRecent(ctx context.Context, agentID, sessionID uuid.UUID, limit int) ([]domain.DecisionTrace, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.DecisionTrace
	for _, t := range m.traces {
		if t.AgentID == agentID && t.SessionID == sessionID {
			out = append(out, *t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockTraceStore) CountBySession(ctx context.Context, agentID, sessionID uuid.UUID) (int, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	count := 0
	for _, t := range m.traces {
		if t.AgentID == agentID && t.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

// stubEmbedder returns a fixed vector for every input so tests control
// similarity scores through the chunk vectors alone.
type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text, model string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string, model string) ([][]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector
	}
	return out, nil
}

// stubImageSearcher returns a fixed result set.
type stubImageSearcher struct {
	results []domain.ImageResult
	err     error
	calls   []int
}

func (s *stubImageSearcher) SearchImages(ctx context.Context, query string, count int) ([]domain.ImageResult, error) {
	s.calls = append(s.calls, count)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > count {
		return s.results[:count], nil
	}
	return s.results, nil
}

var errStoreDown = errors.New("store unavailable")
