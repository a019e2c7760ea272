package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/papercomputeco/chora/pkg/schema"
)

// SaveBond validates the bond against the physics table and upserts it.
// Confidence is clamped to [0, 1]. Both endpoints must exist. A shadow
// relationship entity is written alongside the bond so the bond itself is
// discoverable through entity search.
//
// The endpoint reads, the physics check, and the bond upsert all happen
// under the writer lock, so a concurrent archive or type change cannot
// slip between check and commit. The shadow entity is a separate write
// after the lock is released.
func (s *Store) SaveBond(ctx context.Context, b *schema.Bond) error {
	if b == nil {
		return fmt.Errorf("cannot save nil bond")
	}
	if b.ID == "" {
		b.ID = schema.BondID(b.Type, b.FromID, b.ToID)
	}
	if b.Status == "" {
		b.Status = schema.BondActive
	}
	b.Confidence = schema.ClampConfidence(b.Confidence)
	if b.Data == nil {
		b.Data = map[string]any{}
	}

	dataJSON, err := json.Marshal(b.Data)
	if err != nil {
		return fmt.Errorf("encoding bond data: %w", err)
	}

	if err := s.upsertBondChecked(ctx, b, string(dataJSON)); err != nil {
		return err
	}

	// The shadow entity makes the bond visible to queries and FTS.
	rel := &schema.Entity{
		ID:   b.ID,
		Type: schema.KindRelationship,
		Data: map[string]any{
			"title":   fmt.Sprintf("%s --%s--> %s", b.FromID, b.Type, b.ToID),
			"verb":    b.Type,
			"from_id": b.FromID,
			"to_id":   b.ToID,
		},
	}
	if err := s.SaveEntity(ctx, rel); err != nil {
		return fmt.Errorf("saving relationship entity: %w", err)
	}

	return nil
}

// upsertBondChecked holds the writer lock across the endpoint reads, the
// physics validation, and the upsert.
func (s *Store) upsertBondChecked(ctx context.Context, b *schema.Bond, dataJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.GetEntity(ctx, b.FromID)
	if err != nil {
		return err
	}
	to, err := s.GetEntity(ctx, b.ToID)
	if err != nil {
		return err
	}

	if err := schema.ValidateBond(b.Type, from.Type, to.Type); err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bonds (id, type, from_id, to_id, status, confidence, data_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   type = excluded.type,
		   from_id = excluded.from_id,
		   to_id = excluded.to_id,
		   status = excluded.status,
		   confidence = excluded.confidence,
		   data_json = excluded.data_json`,
		b.ID, b.Type, b.FromID, b.ToID, b.Status, b.Confidence, dataJSON,
	)
	if err != nil {
		return fmt.Errorf("upserting bond: %w", err)
	}
	return nil
}

// GetBond retrieves a bond by id.
func (s *Store) GetBond(ctx context.Context, id string) (*schema.Bond, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, type, from_id, to_id, status, confidence, data_json FROM bonds WHERE id = ?`, id)

	b, err := scanBond(row)
	if err != nil {
		var nf ErrNotFound
		if errors.As(err, &nf) {
			return nil, ErrNotFound{ID: id}
		}
		return nil, err
	}
	return b, nil
}

// BondFilter narrows a QueryBonds call. Zero values mean no constraint.
type BondFilter struct {
	Verb   string
	FromID string
	ToID   string
	Status string
	// EitherID matches bonds touching the entity in either direction.
	EitherID string
}

// QueryBonds returns bonds matching the filter.
func (s *Store) QueryBonds(ctx context.Context, f BondFilter) ([]*schema.Bond, error) {
	query := `SELECT id, type, from_id, to_id, status, confidence, data_json FROM bonds WHERE 1=1`
	args := []any{}

	if f.Verb != "" {
		query += ` AND type = ?`
		args = append(args, f.Verb)
	}
	if f.FromID != "" {
		query += ` AND from_id = ?`
		args = append(args, f.FromID)
	}
	if f.ToID != "" {
		query += ` AND to_id = ?`
		args = append(args, f.ToID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.EitherID != "" {
		query += ` AND (from_id = ? OR to_id = ?)`
		args = append(args, f.EitherID, f.EitherID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying bonds: %w", err)
	}
	defer rows.Close()

	out := []*schema.Bond{}
	for rows.Next() {
		b, err := scanBond(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating bonds: %w", err)
	}
	return out, nil
}

// UpdateBondConfidence clamps and writes a new confidence, returning the
// previous and stored values so callers can react to the delta.
func (s *Store) UpdateBondConfidence(ctx context.Context, id string, confidence float64) (prev, stored float64, err error) {
	stored = schema.ClampConfidence(confidence)

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.db.QueryRowContext(ctx, `SELECT confidence FROM bonds WHERE id = ?`, id).Scan(&prev)
	if err == sql.ErrNoRows {
		return 0, 0, ErrNotFound{ID: id}
	}
	if err != nil {
		return 0, 0, fmt.Errorf("reading bond confidence: %w", err)
	}

	if _, err = s.db.ExecContext(ctx, `UPDATE bonds SET confidence = ? WHERE id = ?`, stored, id); err != nil {
		return 0, 0, fmt.Errorf("updating bond confidence: %w", err)
	}

	return prev, stored, nil
}

// UpdateBondStatus transitions a bond's lifecycle status.
func (s *Store) UpdateBondStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE bonds SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("updating bond status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound{ID: id}
	}
	return nil
}

// ConstellationEntry is one edge of an entity's 1-hop neighborhood.
type ConstellationEntry struct {
	Bond        *schema.Bond `json:"bond"`
	Direction   string       `json:"direction"` // out | in
	Counterpart string       `json:"counterpart"`
	// CounterpartType and CounterpartTitle summarize the far endpoint.
	CounterpartType  string `json:"counterpart_type,omitempty"`
	CounterpartTitle string `json:"counterpart_title,omitempty"`
}

// Constellation returns the 1-hop bond neighborhood of an entity grouped
// by verb, each entry carrying a summary of the far endpoint.
func (s *Store) Constellation(ctx context.Context, id string) (map[string][]ConstellationEntry, error) {
	if _, err := s.GetEntity(ctx, id); err != nil {
		return nil, err
	}

	bonds, err := s.QueryBonds(ctx, BondFilter{EitherID: id})
	if err != nil {
		return nil, err
	}

	out := map[string][]ConstellationEntry{}
	for _, b := range bonds {
		entry := ConstellationEntry{Bond: b}
		if b.FromID == id {
			entry.Direction = "out"
			entry.Counterpart = b.ToID
		} else {
			entry.Direction = "in"
			entry.Counterpart = b.FromID
		}

		if far, err := s.GetEntity(ctx, entry.Counterpart); err == nil {
			entry.CounterpartType = far.Type
			entry.CounterpartTitle = far.Title()
		}

		out[b.Type] = append(out[b.Type], entry)
	}

	return out, nil
}

func scanBond(row rowScanner) (*schema.Bond, error) {
	var b schema.Bond
	var dataJSON string

	err := row.Scan(&b.ID, &b.Type, &b.FromID, &b.ToID, &b.Status, &b.Confidence, &dataJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning bond: %w", err)
	}

	if err := json.Unmarshal([]byte(dataJSON), &b.Data); err != nil {
		return nil, fmt.Errorf("decoding bond data: %w", err)
	}

	return &b, nil
}
