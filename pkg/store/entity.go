package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/chora/pkg/schema"
)

// SaveEntity upserts an entity. updated_at is set to now; created_at is
// preserved on update. When the payload changed, the entity's embedding
// row is deleted in the same transaction so stale vectors never survive
// a data change. Save hooks fire after the commit.
func (s *Store) SaveEntity(ctx context.Context, e *schema.Entity) error {
	if e == nil {
		return fmt.Errorf("cannot save nil entity")
	}
	if e.ID == "" || e.Type == "" {
		return ErrInvalidData{Reason: "entity id and type are required"}
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}

	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("encoding entity data: %w", err)
	}

	now := time.Now().UTC()

	s.mu.Lock()
	err = func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		var prevData string
		dataChanged := true
		err = tx.QueryRowContext(ctx, `SELECT data_json FROM entities WHERE id = ?`, e.ID).Scan(&prevData)
		switch {
		case err == sql.ErrNoRows:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO entities (id, type, data_json, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				e.ID, e.Type, string(dataJSON), now, now,
			)
			if err != nil {
				return fmt.Errorf("inserting entity: %w", err)
			}
			e.CreatedAt = now

		case err != nil:
			return fmt.Errorf("reading prior entity: %w", err)

		default:
			dataChanged = prevData != string(dataJSON)
			_, err = tx.ExecContext(ctx,
				`UPDATE entities SET type = ?, data_json = ?, updated_at = ? WHERE id = ?`,
				e.Type, string(dataJSON), now, e.ID,
			)
			if err != nil {
				return fmt.Errorf("updating entity: %w", err)
			}
		}

		if dataChanged {
			if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE entity_id = ?`, e.ID); err != nil {
				return fmt.Errorf("invalidating embedding: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing entity: %w", err)
		}
		return nil
	}()
	s.mu.Unlock()

	if err != nil {
		return err
	}

	e.UpdatedAt = now
	s.fireSaveHooks(e.ID, e.Type, e.Data)
	return nil
}

// SaveGeneric upserts an entity from its raw parts.
func (s *Store) SaveGeneric(ctx context.Context, id, entityType string, data map[string]any) error {
	return s.SaveEntity(ctx, &schema.Entity{ID: id, Type: entityType, Data: data})
}

// GetEntity retrieves an entity by id.
func (s *Store) GetEntity(ctx context.Context, id string) (*schema.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, data_json, created_at, updated_at FROM entities WHERE id = ?`, id)

	e, err := scanEntity(row)
	if err != nil {
		var nf ErrNotFound
		if errors.As(err, &nf) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}
	return e, nil
}

// HasEntity checks existence without decoding the payload.
func (s *Store) HasEntity(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM entities WHERE id = ? LIMIT 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking existence: %w", err)
	}
	return true, nil
}

// EntityFilter narrows a QueryEntities call. Zero values mean no constraint.
type EntityFilter struct {
	Type   string
	Status string
	// Tag matches entities whose data "tags" array contains the value.
	Tag string
	// CircleID matches entities whose data carries the circle id.
	CircleID string
	// Since keeps entities updated at or after the given time.
	Since time.Time
	Limit int
}

// QueryEntities returns entities matching the filter, newest first.
func (s *Store) QueryEntities(ctx context.Context, f EntityFilter) ([]*schema.Entity, error) {
	query := `SELECT id, type, data_json, created_at, updated_at FROM entities WHERE 1=1`
	args := []any{}

	if f.Type != "" {
		query += ` AND type = ?`
		args = append(args, f.Type)
	}
	if f.Status != "" {
		query += ` AND json_extract(data_json, '$.status') = ?`
		args = append(args, f.Status)
	}
	if f.Tag != "" {
		query += ` AND EXISTS (SELECT 1 FROM json_each(entities.data_json, '$.tags') WHERE json_each.value = ?)`
		args = append(args, f.Tag)
	}
	if f.CircleID != "" {
		query += ` AND json_extract(data_json, '$.circle_id') = ?`
		args = append(args, f.CircleID)
	}
	if !f.Since.IsZero() {
		query += ` AND updated_at >= ?`
		args = append(args, f.Since.UTC())
	}

	query += ` ORDER BY updated_at DESC`

	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// EntitiesOlderThan returns non-terminal entities of a type whose updated_at
// precedes the cutoff. Used by the stagnation sweep.
func (s *Store) EntitiesOlderThan(ctx context.Context, entityType string, cutoff time.Time) ([]*schema.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, type, data_json, created_at, updated_at FROM entities
		 WHERE type = ? AND updated_at < ?
		 AND COALESCE(json_extract(data_json, '$.status'), 'active')
		     NOT IN ('resolved', 'completed', 'digested')`,
		entityType, cutoff.UTC())
	if err != nil {
		return nil, fmt.Errorf("querying stale entities: %w", err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// deleteEntityTx removes a live entity row inside an archive transaction.
// The embeddings FK cascade removes its vector.
func (s *Store) deleteEntityTx(ctx context.Context, tx *sql.Tx, id string) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entity: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound{ID: id}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(row rowScanner) (*schema.Entity, error) {
	var e schema.Entity
	var dataJSON string

	err := row.Scan(&e.ID, &e.Type, &dataJSON, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning entity: %w", err)
	}

	if err := json.Unmarshal([]byte(dataJSON), &e.Data); err != nil {
		return nil, fmt.Errorf("decoding entity data: %w", err)
	}

	return &e, nil
}

func scanEntities(rows *sql.Rows) ([]*schema.Entity, error) {
	out := []*schema.Entity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return out, nil
}
