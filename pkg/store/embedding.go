package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Embedding is a persisted vector for one entity. Vectors are immutable
// once written; updates are delete-then-insert under the writer lock.
type Embedding struct {
	EntityID  string
	ModelName string
	Vector    []float32
	Dimension int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SaveEmbedding writes the vector for an entity, replacing any prior row.
func (s *Store) SaveEmbedding(ctx context.Context, entityID, modelName string, vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidData{Reason: "empty vector"}
	}

	now := time.Now().UTC()
	blob := encodeVector(vector)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ?`, entityID); err != nil {
		return fmt.Errorf("clearing prior embedding: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO embeddings (entity_id, model_name, vector, dimension, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entityID, modelName, blob, len(vector), now, now,
	)
	if err != nil {
		return fmt.Errorf("inserting embedding: %w", err)
	}

	return tx.Commit()
}

// GetEmbedding retrieves the stored vector for an entity.
func (s *Store) GetEmbedding(ctx context.Context, entityID string) (*Embedding, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_id, model_name, vector, dimension, created_at, updated_at
		 FROM embeddings WHERE entity_id = ?`, entityID)

	var e Embedding
	var blob []byte
	err := row.Scan(&e.EntityID, &e.ModelName, &blob, &e.Dimension, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{ID: entityID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning embedding: %w", err)
	}

	e.Vector = decodeVector(blob)
	return &e, nil
}

// DeleteEmbedding removes an entity's vector if present.
func (s *Store) DeleteEmbedding(ctx context.Context, entityID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ?`, entityID)
	if err != nil {
		return fmt.Errorf("deleting embedding: %w", err)
	}
	return nil
}

// AllEmbeddings returns every stored embedding, optionally restricted to
// entities of one type. Used for ranking and clustering.
func (s *Store) AllEmbeddings(ctx context.Context, entityType string) ([]*Embedding, error) {
	query := `SELECT e.entity_id, e.model_name, e.vector, e.dimension, e.created_at, e.updated_at
	          FROM embeddings e`
	args := []any{}

	if entityType != "" {
		query += ` JOIN entities ent ON ent.id = e.entity_id WHERE ent.type = ?`
		args = append(args, entityType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	out := []*Embedding{}
	for rows.Next() {
		var e Embedding
		var blob []byte
		if err := rows.Scan(&e.EntityID, &e.ModelName, &blob, &e.Dimension, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		e.Vector = decodeVector(blob)
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating embeddings: %w", err)
	}
	return out, nil
}

// encodeVector serializes float32s as little-endian bytes.
func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes little-endian bytes back into float32s.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
