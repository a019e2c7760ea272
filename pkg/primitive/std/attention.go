package std

import (
	"context"

	"github.com/google/uuid"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
)

func attentionSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-emit-signal",
			Description: "Emit a signal entity demanding attention",
			Required:    []string{"title"},
			Optional:    []string{"source_id", "signal_type", "urgency", "description", "data"},
			Handler:     emitSignal,
		},
		{
			ID:          "primitive-create-focus",
			Description: "Open a focus for the current persona",
			Required:    []string{"title"},
			Optional:    []string{"description", "data"},
			Handler:     createFocus,
		},
		{
			ID:          "primitive-resolve-focus",
			Description: "Close a focus with an outcome, optionally crystallizing a learning",
			Required:    []string{"id", "outcome"},
			Optional:    []string{"learning"},
			Handler:     resolveFocus,
		},
		{
			ID:          "primitive-resolve-signal",
			Description: "Explicitly resolve an active signal",
			Required:    []string{"id"},
			Optional:    []string{"resolution"},
			Handler:     resolveSignal,
		},
	}
}

// signalParams names the fields of one emitted signal.
type signalParams struct {
	Title       string
	Description string
	SignalType  string
	Urgency     string
	SourceID    string
	Data        map[string]any
}

// emitSignalEntity writes a signal entity and returns its id. Shared by the
// attention primitives and every primitive that emits epistemic signals.
func emitSignalEntity(ctx context.Context, ec *primitive.ExecContext, p signalParams) (string, error) {
	if p.SignalType == "" {
		p.SignalType = "attention"
	}
	if p.Urgency == "" {
		p.Urgency = "normal"
	}
	if p.Description == "" {
		p.Description = p.Title
	}

	id := schema.EntityID(schema.KindSignal, p.Title)

	data := map[string]any{
		"title":       p.Title,
		"description": p.Description,
		"status":      schema.StatusActive,
		"signal_type": p.SignalType,
		"urgency":     p.Urgency,
		"emitted_at":  nowStamp(),
	}
	if p.SourceID != "" {
		data["source_id"] = p.SourceID
	}
	if p.Data != nil {
		data["data"] = p.Data
	}

	if err := ec.Store.SaveGeneric(ctx, id, schema.KindSignal, data); err != nil {
		return "", err
	}
	return id, nil
}

func emitSignal(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	title, _ := primitive.StringInput(inputs, "title")

	p := signalParams{Title: title}
	p.SourceID, _ = primitive.StringInput(inputs, "source_id")
	p.SignalType, _ = primitive.StringInput(inputs, "signal_type")
	p.Urgency, _ = primitive.StringInput(inputs, "urgency")
	p.Description, _ = primitive.StringInput(inputs, "description")
	p.Data, _ = primitive.MapInput(inputs, "data")

	id, err := emitSignalEntity(ctx, ec, p)
	if err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{
		"id":          id,
		"status":      schema.StatusActive,
		"signal_type": p.SignalType,
		"urgency":     p.Urgency,
	})
}

func createFocus(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	title, _ := primitive.StringInput(inputs, "title")
	description, _ := primitive.StringInput(inputs, "description")
	extra, _ := primitive.MapInput(inputs, "data")

	id := schema.EntityID(schema.KindFocus, title)

	data := map[string]any{
		"title":      title,
		"status":     schema.StatusActive,
		"created_at": nowStamp(),
	}
	if description != "" {
		data["description"] = description
	}
	if ec.PersonaID != "" {
		data["persona_id"] = ec.PersonaID
	}
	for k, v := range extra {
		data[k] = v
	}

	if err := ec.Store.SaveGeneric(ctx, id, schema.KindFocus, data); err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{"id": id, "status": schema.StatusActive})
}

func resolveFocus(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	outcome, _ := primitive.StringInput(inputs, "outcome")

	if outcome != "completed" && outcome != "abandoned" {
		return primitive.Fail(primitive.KindInvalidInputs, "outcome must be completed or abandoned, got %q", outcome)
	}

	e, err := ec.Store.GetEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}
	if e.Type != schema.KindFocus {
		return primitive.Fail(primitive.KindInvalidInputs, "%s is a %s, not a focus", id, e.Type)
	}
	if e.Status() == schema.StatusResolved {
		return primitive.Fail(primitive.KindAlreadyResolved, "focus already resolved: %s", id)
	}

	e.Data["status"] = schema.StatusResolved
	e.Data["outcome"] = outcome
	e.Data["resolved_at"] = nowStamp()
	if err := ec.Store.SaveEntity(ctx, e); err != nil {
		return failStore(err)
	}

	out := map[string]any{"id": id, "status": schema.StatusResolved, "outcome": outcome}

	if insight, ok := primitive.StringInput(inputs, "learning"); ok {
		learningID := "learning-focus-" + uuid.NewString()[:8]
		data := map[string]any{
			"title":       "Learning from focus: " + e.Title(),
			"insight":     insight,
			"source_id":   id,
			"manifest_at": nowStamp(),
		}
		if err := ec.Store.SaveGeneric(ctx, learningID, schema.KindLearning, data); err != nil {
			return failStore(err)
		}
		out["learning_id"] = learningID
	}

	return primitive.Ok(out)
}

func resolveSignal(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	resolution, _ := primitive.StringInput(inputs, "resolution")

	e, err := ec.Store.GetEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}
	if e.Type != schema.KindSignal {
		return primitive.Fail(primitive.KindInvalidInputs, "%s is a %s, not a signal", id, e.Type)
	}
	if e.Status() == schema.StatusResolved {
		return primitive.Fail(primitive.KindAlreadyResolved, "signal already resolved: %s", id)
	}

	e.Data["status"] = schema.StatusResolved
	e.Data["resolved_at"] = nowStamp()
	if resolution != "" {
		e.Data["resolution"] = resolution
	}
	if err := ec.Store.SaveEntity(ctx, e); err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{"id": id, "status": schema.StatusResolved})
}
