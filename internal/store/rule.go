package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/parleyhq/parley/internal/domain"
)

type RuleStore struct {
	db *pgxpool.Pool
}

func NewRuleStore(db *pgxpool.Pool) *RuleStore {
	return &RuleStore{db: db}
}

func (s *RuleStore) Create(ctx context.Context, r *domain.Rule) error {
	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	r.Active = true
	return s.db.QueryRow(ctx,
		`INSERT INTO rules (agent_id, name, conditions, match_type, actions, priority, active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		 RETURNING id, created_at, updated_at`,
		r.AgentID, r.Name, conditionsJSON, string(r.MatchType), actionsJSON, r.Priority,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
}

func (s *RuleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rule, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, agent_id, name, conditions, match_type, actions, priority, active, created_at, updated_at
		 FROM rules WHERE id = $1`,
		id,
	)
	r, err := scanRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

func (s *RuleStore) Update(ctx context.Context, r *domain.Rule) error {
	conditionsJSON, err := json.Marshal(r.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actionsJSON, err := json.Marshal(r.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE rules
		 SET name = $2, conditions = $3, match_type = $4, actions = $5, priority = $6, active = $7, updated_at = NOW()
		 WHERE id = $1`,
		r.ID, r.Name, conditionsJSON, string(r.MatchType), actionsJSON, r.Priority, r.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate soft-deletes a rule by clearing its active flag.
func (s *RuleStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE rules SET active = FALSE, updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RuleStore) ListActiveByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Rule, error) {
	return s.list(ctx,
		`SELECT id, agent_id, name, conditions, match_type, actions, priority, active, created_at, updated_at
		 FROM rules WHERE agent_id = $1 AND active
		 ORDER BY priority DESC, created_at ASC`,
		agentID,
	)
}

func (s *RuleStore) ListByAgent(ctx context.Context, agentID uuid.UUID) ([]domain.Rule, error) {
	return s.list(ctx,
		`SELECT id, agent_id, name, conditions, match_type, actions, priority, active, created_at, updated_at
		 FROM rules WHERE agent_id = $1
		 ORDER BY priority DESC, created_at ASC`,
		agentID,
	)
}

func (s *RuleStore) list(ctx context.Context, query string, args ...any) ([]domain.Rule, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []domain.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func scanRule(row pgx.Row) (*domain.Rule, error) {
	r := &domain.Rule{}
	var conditionsJSON, actionsJSON []byte
	var matchType string
	err := row.Scan(&r.ID, &r.AgentID, &r.Name, &conditionsJSON, &matchType, &actionsJSON,
		&r.Priority, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.MatchType = domain.MatchType(matchType)
	if err := json.Unmarshal(conditionsJSON, &r.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(actionsJSON, &r.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	return r, nil
}
