package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chora/pkg/schema"
)

// Archive kinds.
const (
	archiveKindEntity = "entity"
	archiveKindBond   = "bond"
)

// ArchiveOptions controls ArchiveEntity behavior.
type ArchiveOptions struct {
	// Force archives even when active bonds exist; the bonds are
	// archived first.
	Force bool
	// ArchivedBy names the actor, Reason the cause (e.g. "composted").
	ArchivedBy string
	Reason     string
	// LearningID links a decomposition learning manifested during compost.
	LearningID string
}

// ArchivedRecord is one row of the archive relation.
type ArchivedRecord struct {
	ID           string         `json:"id"`
	OriginalID   string         `json:"original_id"`
	OriginalType string         `json:"original_type"`
	Kind         string         `json:"kind"`
	Data         map[string]any `json:"data"`
	ArchivedAt   time.Time      `json:"archived_at"`
	ArchivedBy   string         `json:"archived_by,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	LearningID   string         `json:"learning_id,omitempty"`
}

// ArchiveEntity moves a live entity into the archive with its full payload.
// Dangling bonds (a missing endpoint) are archived silently; active bonds
// refuse the archive unless opts.Force is set, in which case they are
// archived first. The embedding row dies with the entity via FK cascade.
func (s *Store) ArchiveEntity(ctx context.Context, id string, opts ArchiveOptions) (string, error) {
	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return "", err
	}

	bonds, err := s.QueryBonds(ctx, BondFilter{EitherID: id})
	if err != nil {
		return "", err
	}

	active := []*schema.Bond{}
	for _, b := range bonds {
		if b.Status == schema.BondActive {
			active = append(active, b)
		}
	}

	if len(active) > 0 && !opts.Force {
		return "", ErrArchiveHasBonds{ID: id, Count: len(active)}
	}

	for _, b := range bonds {
		if _, err := s.ArchiveBond(ctx, b.ID, opts.ArchivedBy, "endpoint archived"); err != nil {
			return "", fmt.Errorf("archiving bond %s: %w", b.ID, err)
		}
	}

	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return "", fmt.Errorf("encoding archive payload: %w", err)
	}

	archiveID := "archive-" + uuid.NewString()[:8]

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO archive (id, original_id, original_type, kind, data_json, archived_at, archived_by, reason, learning_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		archiveID, e.ID, e.Type, archiveKindEntity, string(dataJSON),
		time.Now().UTC(), opts.ArchivedBy, opts.Reason, opts.LearningID,
	)
	if err != nil {
		return "", fmt.Errorf("inserting archive row: %w", err)
	}

	if err := s.deleteEntityTx(ctx, tx, id); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive: %w", err)
	}

	return archiveID, nil
}

// ArchiveBond moves a bond row into the archive and removes it, along with
// its shadow relationship entity.
func (s *Store) ArchiveBond(ctx context.Context, id, archivedBy, reason string) (string, error) {
	b, err := s.GetBond(ctx, id)
	if err != nil {
		return "", err
	}

	payload := map[string]any{
		"type":       b.Type,
		"from_id":    b.FromID,
		"to_id":      b.ToID,
		"status":     b.Status,
		"confidence": b.Confidence,
		"data":       b.Data,
	}
	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding archive payload: %w", err)
	}

	archiveID := "archive-bond-" + uuid.NewString()[:8]

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO archive (id, original_id, original_type, kind, data_json, archived_at, archived_by, reason, learning_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, '')`,
		archiveID, b.ID, b.Type, archiveKindBond, string(dataJSON),
		time.Now().UTC(), archivedBy, reason,
	)
	if err != nil {
		return "", fmt.Errorf("inserting archive row: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bonds WHERE id = ?`, id); err != nil {
		return "", fmt.Errorf("deleting bond: %w", err)
	}

	// The shadow relationship entity goes with the bond.
	if _, err := tx.ExecContext(ctx, `DELETE FROM entities WHERE id = ? AND type = ?`, id, schema.KindRelationship); err != nil {
		return "", fmt.Errorf("deleting relationship entity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing archive: %w", err)
	}

	return archiveID, nil
}

// Resurrect restores an archived entity into the live table and removes the
// archive row. Bonds are not restored.
func (s *Store) Resurrect(ctx context.Context, archiveID string) (*schema.Entity, error) {
	rec, err := s.GetArchived(ctx, archiveID)
	if err != nil {
		return nil, err
	}
	if rec.Kind != archiveKindEntity {
		return nil, ErrInvalidData{Reason: "only archived entities can be resurrected"}
	}

	e := &schema.Entity{ID: rec.OriginalID, Type: rec.OriginalType, Data: rec.Data}
	if err := s.SaveEntity(ctx, e); err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, err = s.db.ExecContext(ctx, `DELETE FROM archive WHERE id = ?`, archiveID)
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("removing archive row: %w", err)
	}

	return e, nil
}

// GetArchived retrieves one archive row by its archive id.
func (s *Store) GetArchived(ctx context.Context, archiveID string) (*ArchivedRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, original_id, original_type, kind, data_json, archived_at,
		        COALESCE(archived_by, ''), COALESCE(reason, ''), COALESCE(learning_id, '')
		 FROM archive WHERE id = ?`, archiveID)

	return scanArchived(row, archiveID)
}

// ListArchived returns archive rows, newest first, optionally filtered by
// the original entity type.
func (s *Store) ListArchived(ctx context.Context, originalType string, limit int) ([]*ArchivedRecord, error) {
	query := `SELECT id, original_id, original_type, kind, data_json, archived_at,
	                 COALESCE(archived_by, ''), COALESCE(reason, ''), COALESCE(learning_id, '')
	          FROM archive`
	args := []any{}

	if originalType != "" {
		query += ` WHERE original_type = ?`
		args = append(args, originalType)
	}
	query += ` ORDER BY archived_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	defer rows.Close()

	out := []*ArchivedRecord{}
	for rows.Next() {
		rec, err := scanArchived(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating archive: %w", err)
	}
	return out, nil
}

func scanArchived(row rowScanner, id string) (*ArchivedRecord, error) {
	var rec ArchivedRecord
	var dataJSON string

	err := row.Scan(&rec.ID, &rec.OriginalID, &rec.OriginalType, &rec.Kind,
		&dataJSON, &rec.ArchivedAt, &rec.ArchivedBy, &rec.Reason, &rec.LearningID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning archive row: %w", err)
	}

	if err := json.Unmarshal([]byte(dataJSON), &rec.Data); err != nil {
		return nil, fmt.Errorf("decoding archive payload: %w", err)
	}

	return &rec, nil
}
