package std

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

// Default stagnation TTLs, overridable by metabolic-threshold principles.
var defaultTTLDays = map[string]int{
	schema.KindInquiry: 30,
	schema.KindSignal:  7,
}

func chronosSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-detect-stagnation",
			Description: "Emit escalation signals for entities older than their metabolic TTL",
			Handler:     detectStagnation,
		},
		{
			ID:          "primitive-check-void-resolution",
			Description: "Auto-resolve tracking signals whose void condition has cleared",
			Handler:     checkVoidResolution,
		},
		{
			ID:          "primitive-pulse-preview",
			Description: "List the signals the next pulse would process, without writes",
			Optional:    []string{"limit"},
			Handler:     pulsePreview,
		},
		{
			ID:          "primitive-pulse-check-signals",
			Description: "Dispatch triggered protocols for active signals and record outcomes",
			Optional:    []string{"limit"},
			Handler:     pulseCheckSignals,
		},
	}
}

// ttlThresholds merges the built-in TTL defaults with metabolic-threshold
// principles ({entity_type, ttl_days, category: "metabolic-threshold"}).
func ttlThresholds(ctx context.Context, s *store.Store) (map[string]int, error) {
	out := map[string]int{}
	for k, v := range defaultTTLDays {
		out[k] = v
	}

	principles, err := s.QueryEntities(ctx, store.EntityFilter{Type: schema.KindPrinciple})
	if err != nil {
		return nil, err
	}
	for _, p := range principles {
		if cat, _ := p.Data["category"].(string); cat != "metabolic-threshold" {
			continue
		}
		entityType, _ := p.Data["entity_type"].(string)
		ttl, ok := p.Data["ttl_days"].(float64)
		if entityType != "" && ok && ttl > 0 {
			out[entityType] = int(ttl)
		}
	}
	return out, nil
}

// stalenessRef picks the timestamp a stagnation check compares against:
// the entity's own created_at claim when present, else the row timestamp.
func stalenessRef(e *schema.Entity) time.Time {
	if raw, ok := e.Data["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
	}
	return e.UpdatedAt
}

func detectStagnation(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	thresholds, err := ttlThresholds(ctx, ec.Store)
	if err != nil {
		return failStore(err)
	}

	emitted := []any{}
	now := time.Now().UTC()

	for entityType, ttlDays := range thresholds {
		cutoff := now.AddDate(0, 0, -ttlDays)

		entities, err := ec.Store.QueryEntities(ctx, store.EntityFilter{Type: entityType})
		if err != nil {
			return failStore(err)
		}

		for _, e := range entities {
			if schema.TerminalStatus(e.Status()) {
				continue
			}
			if !stalenessRef(e).Before(cutoff) {
				continue
			}

			var signalID string
			var signalType string
			var title string
			if entityType == schema.KindSignal {
				signalID = "signal-escalation-" + uuid.NewString()[:8]
				signalType = "escalation"
				title = fmt.Sprintf("Escalation: %s is stuck", e.ID)
			} else {
				signalID = fmt.Sprintf("signal-stagnant-%s-%s", entityType, uuid.NewString()[:8])
				signalType = "stagnation-detected"
				title = fmt.Sprintf("Stagnation detected: %s", e.ID)
			}

			data := map[string]any{
				"title":            title,
				"status":           schema.StatusActive,
				"signal_type":      signalType,
				"category":         "stagnation",
				"urgency":          "normal",
				"tracks_entity_id": e.ID,
				"entity_type":      entityType,
				"ttl_days":         ttlDays,
				"emitted_at":       nowStamp(),
			}
			if err := ec.Store.SaveGeneric(ctx, signalID, schema.KindSignal, data); err != nil {
				return failStore(err)
			}

			emitted = append(emitted, map[string]any{
				"id":               signalID,
				"signal_type":      signalType,
				"category":         "stagnation",
				"tracks_entity_id": e.ID,
				"entity_type":      entityType,
			})
		}
	}

	return primitive.Ok(map[string]any{
		"signals_emitted": emitted,
		"count":           len(emitted),
	})
}

func checkVoidResolution(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	signals, err := ec.Store.QueryEntities(ctx, store.EntityFilter{
		Type:   schema.KindSignal,
		Status: schema.StatusActive,
	})
	if err != nil {
		return failStore(err)
	}

	resolved := []any{}
	for _, sig := range signals {
		signalType, _ := sig.Data["signal_type"].(string)
		if signalType != "orphan-detected" && signalType != "stagnation-detected" {
			continue
		}
		trackedID, _ := sig.Data["tracks_entity_id"].(string)
		if trackedID == "" {
			continue
		}

		cleared := false
		switch signalType {
		case "orphan-detected":
			// The orphan void clears once the entity has any bond.
			bonds, err := ec.Store.QueryBonds(ctx, store.BondFilter{EitherID: trackedID})
			if err != nil {
				return failStore(err)
			}
			cleared = len(bonds) > 0

		case "stagnation-detected":
			tracked, err := ec.Store.GetEntity(ctx, trackedID)
			if err != nil {
				continue
			}
			ttlDays := 30
			if v, ok := sig.Data["ttl_days"].(float64); ok && v > 0 {
				ttlDays = int(v)
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -ttlDays)
			// Same staleness reference the stagnation sweep uses, so a
			// freshly emitted signal does not immediately self-resolve.
			cleared = stalenessRef(tracked).After(cutoff)
		}

		if !cleared {
			continue
		}

		sig.Data["status"] = schema.StatusResolved
		sig.Data["resolution"] = "auto-resolved: void cleared"
		sig.Data["resolved_at"] = nowStamp()
		if err := ec.Store.SaveEntity(ctx, sig); err != nil {
			return failStore(err)
		}
		resolved = append(resolved, sig.ID)
	}

	return primitive.Ok(map[string]any{
		"resolved_signals": resolved,
		"count":            len(resolved),
	})
}

// triggeredProtocols returns the protocol ids a signal's active triggers
// bonds point at. Non-protocol targets (focuses) are left alone.
func triggeredProtocols(ctx context.Context, ec *primitive.ExecContext, signalID string) ([]string, error) {
	bonds, err := ec.Store.QueryBonds(ctx, store.BondFilter{
		Verb:   "triggers",
		FromID: signalID,
		Status: schema.BondActive,
	})
	if err != nil {
		return nil, err
	}

	out := []string{}
	for _, b := range bonds {
		target, err := ec.Store.GetEntity(ctx, b.ToID)
		if err != nil {
			continue
		}
		if target.Type == schema.KindProtocol {
			out = append(out, target.ID)
		}
	}
	return out, nil
}

func pulsePreview(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	limit := intInput(inputs, "limit", 10)

	signals, err := ec.Store.QueryEntities(ctx, store.EntityFilter{
		Type:   schema.KindSignal,
		Status: schema.StatusActive,
		Limit:  limit,
	})
	if err != nil {
		return failStore(err)
	}

	wouldProcess := []any{}
	withoutTriggers := 0
	for _, sig := range signals {
		protocols, err := triggeredProtocols(ctx, ec, sig.ID)
		if err != nil {
			return failStore(err)
		}
		if len(protocols) == 0 {
			withoutTriggers++
			continue
		}
		for _, p := range protocols {
			wouldProcess = append(wouldProcess, map[string]any{
				"signal_id": sig.ID,
				"triggers":  p,
			})
		}
	}

	return primitive.Ok(map[string]any{
		"would_process":            wouldProcess,
		"signals_without_triggers": withoutTriggers,
	})
}

func pulseCheckSignals(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	limit := intInput(inputs, "limit", 10)

	signals, err := ec.Store.QueryEntities(ctx, store.EntityFilter{
		Type:   schema.KindSignal,
		Status: schema.StatusActive,
		Limit:  limit,
	})
	if err != nil {
		return failStore(err)
	}

	found := len(signals)
	processed := 0
	triggered := []any{}
	errs := []any{}

	for _, sig := range signals {
		protocols, err := triggeredProtocols(ctx, ec, sig.ID)
		if err != nil {
			return failStore(err)
		}
		if len(protocols) == 0 {
			continue
		}

		sig.Data["status"] = schema.StatusProcessing
		if err := ec.Store.SaveEntity(ctx, sig); err != nil {
			return failStore(err)
		}

		outcome := map[string]any{
			"processed_at":       nowStamp(),
			"protocols_executed": []any{},
			"errors":             []any{},
		}
		executed := outcome["protocols_executed"].([]any)
		failures := outcome["errors"].([]any)

		for _, protocolID := range protocols {
			protoInputs := map[string]any{"signal_id": sig.ID}
			for k, v := range sig.Data {
				if k != "status" {
					protoInputs[k] = v
				}
			}

			started := time.Now().UTC()
			resp := ec.Registry.InvokeProtocol(ctx, protocolID, protoInputs)
			ended := time.Now().UTC()
			durationMs := ended.Sub(started).Milliseconds()

			rec := store.SignalOutcome{
				SignalID:   sig.ID,
				ProtocolID: protocolID,
				StartedAt:  started,
				EndedAt:    ended,
				DurationMs: durationMs,
			}

			if resp.IsError() {
				rec.Status = schema.StatusFailed
				rec.Error = map[string]any{"kind": resp.ErrorKind, "message": resp.ErrorMessage}
				failures = append(failures, map[string]any{
					"protocol_id": protocolID,
					"kind":        resp.ErrorKind,
					"message":     resp.ErrorMessage,
				})
				errs = append(errs, fmt.Sprintf("%s: %s", protocolID, resp.ErrorMessage))
			} else {
				rec.Status = schema.StatusResolved
				entry := map[string]any{
					"protocol_id": protocolID,
					"duration_ms": durationMs,
				}
				if len(resp.Data) > 0 {
					entry["result"] = resp.Data
				}
				executed = append(executed, entry)
				triggered = append(triggered, protocolID)
			}

			if err := ec.Store.RecordSignalOutcome(ctx, rec); err != nil {
				return failStore(err)
			}
		}

		outcome["protocols_executed"] = executed
		outcome["errors"] = failures

		if len(failures) > 0 {
			sig.Data["status"] = schema.StatusFailed
		} else {
			sig.Data["status"] = schema.StatusResolved
		}
		sig.Data["outcome_data"] = outcome
		if err := ec.Store.SaveEntity(ctx, sig); err != nil {
			return failStore(err)
		}
		processed++
	}

	return primitive.Ok(map[string]any{
		"signals_found":       found,
		"signals_processed":   processed,
		"protocols_triggered": triggered,
		"errors":              errs,
	})
}
