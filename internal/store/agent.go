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

type AgentStore struct {
	db *pgxpool.Pool
}

func NewAgentStore(db *pgxpool.Pool) *AgentStore {
	return &AgentStore{db: db}
}

func (s *AgentStore) Create(ctx context.Context, a *domain.Agent) error {
	personaJSON, err := json.Marshal(a.Persona)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	settingsJSON, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO agents (name, persona, settings)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		a.Name, personaJSON, settingsJSON,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

func (s *AgentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Agent, error) {
	a := &domain.Agent{}
	var personaJSON, settingsJSON []byte
	err := s.db.QueryRow(ctx,
		`SELECT id, name, persona, settings, created_at, updated_at
		 FROM agents WHERE id = $1`,
		id,
	).Scan(&a.ID, &a.Name, &personaJSON, &settingsJSON, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(personaJSON, &a.Persona); err != nil {
		return nil, fmt.Errorf("unmarshal persona: %w", err)
	}
	if err := json.Unmarshal(settingsJSON, &a.Settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	return a, nil
}

func (s *AgentStore) Update(ctx context.Context, a *domain.Agent) error {
	personaJSON, err := json.Marshal(a.Persona)
	if err != nil {
		return fmt.Errorf("marshal persona: %w", err)
	}
	settingsJSON, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE agents SET name = $2, persona = $3, settings = $4, updated_at = NOW()
		 WHERE id = $1`,
		a.ID, a.Name, personaJSON, settingsJSON,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the agent; rules, chunks, and traces cascade via foreign
// keys.
func (s *AgentStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
