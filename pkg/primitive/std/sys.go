package std

import (
	"context"
	"time"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/store"
)

func sysSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-get-status",
			Description: "Summarize the graph: entity counts, bonds, archive, recent pulses",
			Handler:     getStatus,
		},
		{
			ID:          "primitive-list-archive",
			Description: "List archived records, newest first",
			Optional:    []string{"type", "limit"},
			Handler:     listArchive,
		},
		{
			ID:          "primitive-run-async",
			Description: "Enqueue a protocol for asynchronous execution on the worker pool",
			Required:    []string{"protocol_id"},
			Optional:    []string{"inputs"},
			Handler:     runAsync,
		},
		{
			ID:          "primitive-get-task",
			Description: "Look up the recorded state of an async task",
			Required:    []string{"task_id"},
			Handler:     getTask,
		},
	}
}

func getStatus(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	entities, err := ec.Store.QueryEntities(ctx, store.EntityFilter{})
	if err != nil {
		return failStore(err)
	}

	byType := map[string]any{}
	for _, e := range entities {
		n, _ := byType[e.Type].(int)
		byType[e.Type] = n + 1
	}

	bonds, err := ec.Store.QueryBonds(ctx, store.BondFilter{})
	if err != nil {
		return failStore(err)
	}

	archived, err := ec.Store.ListArchived(ctx, "", 0)
	if err != nil {
		return failStore(err)
	}

	pulses, err := ec.Store.PulseHistory(ctx, 5)
	if err != nil {
		return failStore(err)
	}
	recentPulses := make([]any, 0, len(pulses))
	for _, p := range pulses {
		recentPulses = append(recentPulses, map[string]any{
			"pulse_at":          p.PulseAt.UTC().Format(time.RFC3339),
			"signals_processed": p.SignalsProcessed,
			"errors":            p.Errors,
			"duration_ms":       p.DurationMs,
		})
	}

	return primitive.Ok(map[string]any{
		"entity_count":     len(entities),
		"entities_by_type": byType,
		"bond_count":       len(bonds),
		"archived_count":   len(archived),
		"fts_available":    ec.Store.FTSAvailable(),
		"recent_pulses":    recentPulses,
	})
}

func listArchive(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	originalType, _ := primitive.StringInput(inputs, "type")
	limit := intInput(inputs, "limit", 20)

	records, err := ec.Store.ListArchived(ctx, originalType, limit)
	if err != nil {
		return failStore(err)
	}

	rows := make([]any, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]any{
			"id":            r.ID,
			"original_id":   r.OriginalID,
			"original_type": r.OriginalType,
			"kind":          r.Kind,
			"archived_at":   r.ArchivedAt.UTC().Format(time.RFC3339),
			"reason":        r.Reason,
			"learning_id":   r.LearningID,
		})
	}
	return primitive.Ok(map[string]any{"records": rows, "count": len(rows)})
}

func runAsync(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	if ec.Tasks == nil {
		return primitive.Fail(primitive.KindDependencyUnavailable, "no worker pool attached")
	}

	protocolID, _ := primitive.StringInput(inputs, "protocol_id")
	protocolInputs, _ := primitive.MapInput(inputs, "inputs")

	taskID, ok := ec.Tasks.Submit(ctx, protocolID, protocolInputs)
	if !ok {
		if taskID == "" {
			return primitive.Fail(primitive.KindExecutionError, "enqueueing task for %s", protocolID)
		}
		return primitive.Fail(primitive.KindExecutionError, "task %s rejected: worker queue full", taskID)
	}

	return primitive.Ok(map[string]any{
		"task_id":     taskID,
		"protocol_id": protocolID,
		"status":      store.TaskPending,
	})
}

func getTask(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	taskID, _ := primitive.StringInput(inputs, "task_id")

	res, err := ec.Store.GetTaskResult(ctx, taskID)
	if err != nil {
		return failStore(err)
	}

	payload := map[string]any{
		"task_id":     res.TaskID,
		"protocol_id": res.ProtocolID,
		"status":      res.Status,
		"enqueued_at": res.EnqueuedAt.UTC().Format(time.RFC3339),
	}
	if res.Result != nil {
		payload["result"] = res.Result
	}
	if res.ErrorMessage != "" {
		payload["error_message"] = res.ErrorMessage
	}
	if res.CompletedAt != nil {
		payload["completed_at"] = res.CompletedAt.UTC().Format(time.RFC3339)
	}
	return primitive.Ok(payload)
}
