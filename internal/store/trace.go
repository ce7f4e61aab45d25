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

type TraceStore struct {
	db *pgxpool.Pool
}

func NewTraceStore(db *pgxpool.Pool) *TraceStore {
	return &TraceStore{db: db}
}

func (s *TraceStore) Create(ctx context.Context, t *domain.DecisionTrace) error {
	detectionsJSON, err := json.Marshal(t.Detections)
	if err != nil {
		return fmt.Errorf("marshal detections: %w", err)
	}
	kbUsedJSON, err := json.Marshal(t.KBUsed)
	if err != nil {
		return fmt.Errorf("marshal kb_used: %w", err)
	}
	sourcesJSON, err := json.Marshal(t.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	imagesJSON, err := json.Marshal(t.Images)
	if err != nil {
		return fmt.Errorf("marshal images: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO decision_traces (
			agent_id, session_id, message, detections, matched_rule_id, kb_used,
			confidence, llm_used, web_search_used, sources, response, images, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		t.AgentID, t.SessionID, t.Message, detectionsJSON, t.MatchedRuleID, kbUsedJSON,
		t.Confidence, t.LLMUsed, t.WebSearchUsed, sourcesJSON, t.Response, imagesJSON, t.Error,
	).Scan(&t.ID, &t.CreatedAt)
}

func (s *TraceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.DecisionTrace, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, agent_id, session_id, message, detections, matched_rule_id, kb_used,
		        confidence, llm_used, web_search_used, sources, response, images, error, created_at
		 FROM decision_traces WHERE id = $1`,
		id,
	)
	t, err := scanTrace(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListRecent returns up to limit traces for the session, oldest first, so
// callers can replay them as conversation history.
func (s *TraceStore) ListRecent(ctx context.Context, agentID, sessionID uuid.UUID, limit int) ([]domain.DecisionTrace, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(ctx,
		`SELECT id, agent_id, session_id, message, detections, matched_rule_id, kb_used,
		        confidence, llm_used, web_search_used, sources, response, images, error, created_at
		 FROM (
			SELECT * FROM decision_traces
			WHERE agent_id = $1 AND session_id = $2
			ORDER BY created_at DESC, id DESC
			LIMIT $3
		 ) recent
		 ORDER BY created_at ASC, id ASC`,
		agentID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var traces []domain.DecisionTrace
	for rows.Next() {
		t, err := scanTrace(rows)
		if err != nil {
			return nil, err
		}
		traces = append(traces, *t)
	}
	return traces, rows.Err()
}

func (s *TraceStore) CountBySession(ctx context.Context, agentID, sessionID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM decision_traces WHERE agent_id = $1 AND session_id = $2`,
		agentID, sessionID,
	).Scan(&count)
	return count, err
}

func scanTrace(row pgx.Row) (*domain.DecisionTrace, error) {
	t := &domain.DecisionTrace{}
	var detectionsJSON, kbUsedJSON, sourcesJSON, imagesJSON []byte
	err := row.Scan(&t.ID, &t.AgentID, &t.SessionID, &t.Message, &detectionsJSON,
		&t.MatchedRuleID, &kbUsedJSON, &t.Confidence, &t.LLMUsed, &t.WebSearchUsed,
		&sourcesJSON, &t.Response, &imagesJSON, &t.Error, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if len(detectionsJSON) > 0 {
		_ = json.Unmarshal(detectionsJSON, &t.Detections)
	}
	if len(kbUsedJSON) > 0 {
		_ = json.Unmarshal(kbUsedJSON, &t.KBUsed)
	}
	if len(sourcesJSON) > 0 {
		_ = json.Unmarshal(sourcesJSON, &t.Sources)
	}
	if len(imagesJSON) > 0 {
		_ = json.Unmarshal(imagesJSON, &t.Images)
	}
	return t, nil
}
