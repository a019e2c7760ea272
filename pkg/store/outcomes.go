package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// pulseHistoryLimit is the number of pulse summary rows retained.
const pulseHistoryLimit = 100

// SignalOutcome records one protocol execution for a signal during a pulse.
type SignalOutcome struct {
	SignalID   string         `json:"signal_id"`
	ProtocolID string         `json:"protocol_id,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	EndedAt    time.Time      `json:"ended_at"`
	Status     string         `json:"status"`
	DurationMs int64          `json:"duration_ms"`
	Error      map[string]any `json:"error,omitempty"`
}

// RecordSignalOutcome appends an outcome row for a signal.
func (s *Store) RecordSignalOutcome(ctx context.Context, o SignalOutcome) error {
	var errJSON any
	if o.Error != nil {
		raw, err := json.Marshal(o.Error)
		if err != nil {
			return fmt.Errorf("encoding outcome error: %w", err)
		}
		errJSON = string(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO signal_outcomes (signal_id, protocol_id, started_at, ended_at, status, duration_ms, error_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.SignalID, o.ProtocolID, o.StartedAt.UTC(), o.EndedAt.UTC(), o.Status, o.DurationMs, errJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting signal outcome: %w", err)
	}
	return nil
}

// SignalOutcomes returns the outcome rows for one signal, oldest first.
func (s *Store) SignalOutcomes(ctx context.Context, signalID string) ([]SignalOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT signal_id, COALESCE(protocol_id, ''), started_at, ended_at, status, duration_ms, error_json
		 FROM signal_outcomes WHERE signal_id = ? ORDER BY id ASC`, signalID)
	if err != nil {
		return nil, fmt.Errorf("querying signal outcomes: %w", err)
	}
	defer rows.Close()

	out := []SignalOutcome{}
	for rows.Next() {
		var o SignalOutcome
		var errJSON sql.NullString
		if err := rows.Scan(&o.SignalID, &o.ProtocolID, &o.StartedAt, &o.EndedAt, &o.Status, &o.DurationMs, &errJSON); err != nil {
			return nil, fmt.Errorf("scanning signal outcome: %w", err)
		}
		if errJSON.Valid && errJSON.String != "" {
			if err := json.Unmarshal([]byte(errJSON.String), &o.Error); err != nil {
				return nil, fmt.Errorf("decoding outcome error: %w", err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// PulseRecord summarizes one pulse run.
type PulseRecord struct {
	PulseAt            time.Time `json:"pulse_at"`
	SignalsFound       int       `json:"signals_found"`
	SignalsProcessed   int       `json:"signals_processed"`
	ProtocolsTriggered int       `json:"protocols_triggered"`
	Errors             int       `json:"errors"`
	ErrorDetails       []string  `json:"error_details,omitempty"`
	DurationMs         int64     `json:"duration_ms"`
}

// RecordPulse appends a pulse summary and trims the ring to the retained
// window.
func (s *Store) RecordPulse(ctx context.Context, r PulseRecord) error {
	var errJSON any
	if len(r.ErrorDetails) > 0 {
		raw, err := json.Marshal(r.ErrorDetails)
		if err != nil {
			return fmt.Errorf("encoding pulse errors: %w", err)
		}
		errJSON = string(raw)
	}

	if r.PulseAt.IsZero() {
		r.PulseAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pulse_history (pulse_at, signals_found, signals_processed, protocols_triggered, errors, errors_json, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.PulseAt.UTC(), r.SignalsFound, r.SignalsProcessed, r.ProtocolsTriggered, r.Errors, errJSON, r.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("inserting pulse record: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM pulse_history WHERE id NOT IN
		 (SELECT id FROM pulse_history ORDER BY id DESC LIMIT ?)`, pulseHistoryLimit)
	if err != nil {
		return fmt.Errorf("trimming pulse history: %w", err)
	}

	return tx.Commit()
}

// PulseHistory returns the most recent pulse summaries, newest first.
func (s *Store) PulseHistory(ctx context.Context, limit int) ([]PulseRecord, error) {
	if limit <= 0 || limit > pulseHistoryLimit {
		limit = pulseHistoryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT pulse_at, signals_found, signals_processed, protocols_triggered, errors, errors_json, duration_ms
		 FROM pulse_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying pulse history: %w", err)
	}
	defer rows.Close()

	out := []PulseRecord{}
	for rows.Next() {
		var r PulseRecord
		var errJSON sql.NullString
		if err := rows.Scan(&r.PulseAt, &r.SignalsFound, &r.SignalsProcessed, &r.ProtocolsTriggered, &r.Errors, &errJSON, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("scanning pulse record: %w", err)
		}
		if errJSON.Valid && errJSON.String != "" {
			if err := json.Unmarshal([]byte(errJSON.String), &r.ErrorDetails); err != nil {
				return nil, fmt.Errorf("decoding pulse errors: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TaskResult is the durable record of one async protocol execution.
type TaskResult struct {
	TaskID       string         `json:"task_id"`
	ProtocolID   string         `json:"protocol_id"`
	Status       string         `json:"status"`
	Result       map[string]any `json:"result,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	EnqueuedAt   time.Time      `json:"enqueued_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// Task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// EnqueueTask records a pending task.
func (s *Store) EnqueueTask(ctx context.Context, taskID, protocolID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_results (task_id, protocol_id, status, enqueued_at) VALUES (?, ?, ?, ?)`,
		taskID, protocolID, TaskPending, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("enqueueing task: %w", err)
	}
	return nil
}

// StartTask transitions a task to running.
func (s *Store) StartTask(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE task_results SET status = ?, started_at = ? WHERE task_id = ?`,
		TaskRunning, time.Now().UTC(), taskID,
	)
	if err != nil {
		return fmt.Errorf("starting task: %w", err)
	}
	return nil
}

// CompleteTask records a terminal task outcome. Exactly one completion is
// written per task; the worker wrapper guarantees this even on panic.
func (s *Store) CompleteTask(ctx context.Context, taskID, status string, result map[string]any, errMsg string) error {
	var resultJSON any
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding task result: %w", err)
		}
		resultJSON = string(raw)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE task_results SET status = ?, result_json = ?, error_message = ?, completed_at = ? WHERE task_id = ?`,
		status, resultJSON, errMsg, time.Now().UTC(), taskID,
	)
	if err != nil {
		return fmt.Errorf("completing task: %w", err)
	}
	return nil
}

// GetTaskResult retrieves one task record.
func (s *Store) GetTaskResult(ctx context.Context, taskID string) (*TaskResult, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, protocol_id, status, result_json, COALESCE(error_message, ''), enqueued_at, started_at, completed_at
		 FROM task_results WHERE task_id = ?`, taskID)

	var t TaskResult
	var resultJSON sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(&t.TaskID, &t.ProtocolID, &t.Status, &resultJSON, &t.ErrorMessage, &t.EnqueuedAt, &startedAt, &completedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound{ID: taskID}
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task result: %w", err)
	}

	if resultJSON.Valid && resultJSON.String != "" {
		if err := json.Unmarshal([]byte(resultJSON.String), &t.Result); err != nil {
			return nil, fmt.Errorf("decoding task result: %w", err)
		}
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}

	return &t, nil
}
