package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// SearchHit is one full-text match.
type SearchHit struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
}

// IndexEntityFTS (re)indexes one entity into the full-text table using its
// title plus the most salient data field. A no-op when FTS5 is unavailable.
func (s *Store) IndexEntityFTS(ctx context.Context, id string) error {
	if !s.ftsAvailable {
		return nil
	}

	e, err := s.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	title := e.Title()
	body := ftsBody(e.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entity_fts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("clearing fts row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO entity_fts (id, type, title, body) VALUES (?, ?, ?, ?)`,
		id, e.Type, title, body,
	); err != nil {
		return fmt.Errorf("inserting fts row: %w", err)
	}

	return tx.Commit()
}

// ftsBody picks the most salient text field for indexing, falling back to
// the whole payload.
func ftsBody(data map[string]any) string {
	for _, key := range []string{"description", "statement", "insight", "question"} {
		if v, ok := data[key].(string); ok && v != "" {
			return v
		}
	}
	raw, _ := json.Marshal(data)
	return string(raw)
}

// SearchFTS runs a full-text query, or a LIKE scan over the entity payload
// when FTS5 is unavailable. Results come back in relevance order.
func (s *Store) SearchFTS(ctx context.Context, query, entityType string, limit int) ([]SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}

	if s.ftsAvailable {
		return s.searchMatch(ctx, query, entityType, limit)
	}
	return s.searchLike(ctx, query, entityType, limit)
}

func (s *Store) searchMatch(ctx context.Context, query, entityType string, limit int) ([]SearchHit, error) {
	q := `SELECT id, type, title FROM entity_fts WHERE entity_fts MATCH ?`
	args := []any{ftsQuote(query)}

	if entityType != "" {
		q += ` AND type = ?`
		args = append(args, entityType)
	}
	q += ` ORDER BY rank LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fts query: %w", err)
	}
	defer rows.Close()

	out := []SearchHit{}
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.Type, &h.Title); err != nil {
			return nil, fmt.Errorf("scanning fts hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) searchLike(ctx context.Context, query, entityType string, limit int) ([]SearchHit, error) {
	q := `SELECT id, type, COALESCE(json_extract(data_json, '$.title'), '')
	      FROM entities WHERE data_json LIKE ?`
	args := []any{"%" + query + "%"}

	if entityType != "" {
		q += ` AND type = ?`
		args = append(args, entityType)
	}
	q += ` ORDER BY updated_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("keyword query: %w", err)
	}
	defer rows.Close()

	out := []SearchHit{}
	for rows.Next() {
		var h SearchHit
		if err := rows.Scan(&h.ID, &h.Type, &h.Title); err != nil {
			return nil, fmt.Errorf("scanning keyword hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ftsQuote wraps each term in double quotes so punctuation in user queries
// cannot break the MATCH expression.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, ``) + `"`
	}
	return strings.Join(terms, " ")
}
