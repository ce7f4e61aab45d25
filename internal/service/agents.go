package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
)

var ErrAgentNameEmpty = errors.New("agent name is required")

// AgentService owns agent lifecycle. Settings left unset on create fall back
// to the documented defaults so every agent always has a complete retrieval
// configuration.
type AgentService struct {
	agents domain.AgentStore
}

func NewAgentService(agents domain.AgentStore) *AgentService {
	return &AgentService{agents: agents}
}

func (s *AgentService) Create(ctx context.Context, a *domain.Agent) error {
	if strings.TrimSpace(a.Name) == "" {
		return ErrAgentNameEmpty
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Persona.Name == "" {
		a.Persona.Name = a.Name
	}
	applySettingsDefaults(&a.Settings)
	if err := validateSettings(a.Settings); err != nil {
		return err
	}
	return s.agents.Create(ctx, a)
}

func (s *AgentService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a, err := s.agents.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return a, nil
}

// Update replaces persona and settings. The embedding model is intentionally
// not switchable after creation: stored chunk vectors are only comparable to
// queries embedded with the same model.
func (s *AgentService) Update(ctx context.Context, id uuid.UUID, name string, persona domain.Persona, settings domain.AgentSettings) (*domain.Agent, error) {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		a.Name = name
	}
	a.Persona = persona
	settings.EmbeddingModel = a.Settings.EmbeddingModel
	applySettingsDefaults(&settings)
	if err := validateSettings(settings); err != nil {
		return nil, err
	}
	a.Settings = settings
	if err := s.agents.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AgentService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.agents.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrAgentNotFound
	}
	return err
}

func applySettingsDefaults(set *domain.AgentSettings) {
	def := domain.DefaultAgentSettings()
	if set.EmbeddingModel == "" {
		set.EmbeddingModel = def.EmbeddingModel
	}
	if set.SimilarityMethod == "" {
		set.SimilarityMethod = def.SimilarityMethod
	}
	if set.TopK <= 0 {
		set.TopK = def.TopK
	}
	if set.SimilarityThreshold <= 0 {
		set.SimilarityThreshold = def.SimilarityThreshold
	}
	if set.HistoryWindow <= 0 {
		set.HistoryWindow = def.HistoryWindow
	}
}

func validateSettings(set domain.AgentSettings) error {
	if !domain.ValidSimilarityMethod(string(set.SimilarityMethod)) {
		return &domain.ValidationError{Field: "settings.similarity_method", Reason: "must be cosine, euclidean or jaccard", Index: -1}
	}
	if set.SimilarityThreshold > 1 {
		return &domain.ValidationError{Field: "settings.similarity_threshold", Reason: "must be between 0 and 1", Index: -1}
	}
	return nil
}
