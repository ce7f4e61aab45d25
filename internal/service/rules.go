package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/store"
)

var ErrRuleNotFound = errors.New("rule not found")

// RuleService owns rule lifecycle. Every write path runs Rule.Validate so the
// decision pipeline only ever sees well-formed rules.
type RuleService struct {
	rules  domain.RuleStore
	agents domain.AgentStore
}

func NewRuleService(rules domain.RuleStore, agents domain.AgentStore) *RuleService {
	return &RuleService{rules: rules, agents: agents}
}

func (s *RuleService) Create(ctx context.Context, r *domain.Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if _, err := s.agents.GetByID(ctx, r.AgentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAgentNotFound
		}
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	r.Active = true
	return s.rules.Create(ctx, r)
}

func (s *RuleService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	r, err := s.rules.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return r, nil
}

// Update replaces the rule's definition in full. Partial updates are not
// supported; callers send the complete conditions and actions lists.
func (s *RuleService) Update(ctx context.Context, r *domain.Rule) (*domain.Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.GetByID(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	existing.Name = r.Name
	existing.Conditions = r.Conditions
	existing.MatchType = r.MatchType
	existing.Actions = r.Actions
	existing.Priority = r.Priority
	existing.Active = r.Active
	if err := s.rules.Update(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// Deactivate soft-deletes a rule. The row stays so past decision traces keep
// a resolvable matched_rule_id.
func (s *RuleService) Deactivate(ctx context.Context, id uuid.UUID) error {
	err := s.rules.Deactivate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrRuleNotFound
	}
	return err
}

func (s *RuleService) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Rule, error) {
	if _, err := s.agents.GetByID(ctx, agentID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrAgentNotFound
		}
		return nil, err
	}
	return s.rules.ListByAgent(ctx, agentID)
}
