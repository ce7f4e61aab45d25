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
	pgvector "github.com/pgvector/pgvector-go"
)

type KnowledgeStore struct {
	db *pgxpool.Pool
}

func NewKnowledgeStore(db *pgxpool.Pool) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

func (s *KnowledgeStore) Create(ctx context.Context, c *domain.KnowledgeChunk) error {
	metadataJSON, err := json.Marshal(c.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var embedding *pgvector.Vector
	if len(c.Embedding) > 0 {
		v := pgvector.NewVector(c.Embedding)
		embedding = &v
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO knowledge_chunks (agent_id, type, content, embedding, metadata, priority)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		c.AgentID, string(c.Type), c.Content, embedding, metadataJSON, c.Priority,
	).Scan(&c.ID, &c.CreatedAt)
}

func (s *KnowledgeStore) CreateBatch(ctx context.Context, chunks []*domain.KnowledgeChunk) error {
	batch := &pgx.Batch{}
	for _, c := range chunks {
		metadataJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		var embedding *pgvector.Vector
		if len(c.Embedding) > 0 {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}
		batch.Queue(
			`INSERT INTO knowledge_chunks (agent_id, type, content, embedding, metadata, priority)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 RETURNING id, created_at`,
			c.AgentID, string(c.Type), c.Content, embedding, metadataJSON, c.Priority,
		)
	}

	results := s.db.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()

	for _, c := range chunks {
		if err := results.QueryRow().Scan(&c.ID, &c.CreatedAt); err != nil {
			return fmt.Errorf("batch insert chunk: %w", err)
		}
	}
	return nil
}

func (s *KnowledgeStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.KnowledgeChunk, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, agent_id, type, content, embedding, metadata, priority, created_at
		 FROM knowledge_chunks WHERE id = $1`,
		id,
	)
	c, err := scanChunk(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

func (s *KnowledgeStore) ListByAgent(ctx context.Context, agentID uuid.UUID, chunkType *domain.ChunkType) ([]domain.KnowledgeChunk, error) {
	query := `SELECT id, agent_id, type, content, embedding, metadata, priority, created_at
	          FROM knowledge_chunks WHERE agent_id = $1`
	args := []any{agentID}
	if chunkType != nil {
		query += ` AND type = $2`
		args = append(args, string(*chunkType))
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.KnowledgeChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// UpdateContent replaces a chunk's content and embedding in one statement.
// The caller re-embeds before calling.
func (s *KnowledgeStore) UpdateContent(ctx context.Context, id uuid.UUID, content string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE knowledge_chunks SET content = $2, embedding = $3 WHERE id = $1`,
		id, content, vec,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *KnowledgeStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM knowledge_chunks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanChunk(row pgx.Row) (*domain.KnowledgeChunk, error) {
	c := &domain.KnowledgeChunk{}
	var chunkType string
	var embedding *pgvector.Vector
	var metadataJSON []byte
	err := row.Scan(&c.ID, &c.AgentID, &chunkType, &c.Content, &embedding, &metadataJSON, &c.Priority, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Type = domain.ChunkType(chunkType)
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return c, nil
}
