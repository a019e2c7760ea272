package std

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

func graphSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-manifest-entity",
			Description: "Create or update an entity from its type, id, and data payload",
			Required:    []string{"entity_type"},
			Optional:    []string{"entity_id", "title", "data"},
			Handler:     manifestEntity,
		},
		{
			ID:          "primitive-get-entity",
			Description: "Load one entity by id",
			Required:    []string{"id"},
			Handler:     getEntity,
		},
		{
			ID:          "primitive-update-entity-data",
			Description: "Merge fields into an entity's data payload",
			Required:    []string{"id", "data"},
			Handler:     updateEntityData,
		},
		{
			ID:          "primitive-entities-query",
			Description: "Query entities by type, status, tag, or circle",
			Optional:    []string{"type", "status", "tag", "circle_id", "limit"},
			Handler:     entitiesQuery,
		},
		{
			ID:          "primitive-manage-bond",
			Description: "Create or update a bond, physics-checked; tentative bonds emit an epistemic signal",
			Required:    []string{"verb", "from", "to"},
			Optional:    []string{"confidence", "status", "data"},
			Handler:     manageBond,
		},
		{
			ID:          "primitive-update-bond-confidence",
			Description: "Re-weigh a bond; downward revisions emit an epistemic signal",
			Required:    []string{"id", "confidence"},
			Handler:     updateBondConfidence,
		},
		{
			ID:          "primitive-get-constellation",
			Description: "Return the 1-hop bond neighborhood grouped by verb",
			Required:    []string{"id"},
			Handler:     getConstellation,
		},
		{
			ID:          "primitive-compost",
			Description: "Archive an entity and manifest a decomposition learning",
			Required:    []string{"id"},
			Optional:    []string{"force"},
			Handler:     compost,
		},
		{
			ID:          "primitive-resurrect",
			Description: "Restore an archived entity into the live graph",
			Required:    []string{"archive_id"},
			Handler:     resurrect,
		},
	}
}

func manifestEntity(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	entityType, ok := primitive.StringInput(inputs, "entity_type")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "entity_type must be a non-empty string")
	}

	data, _ := primitive.MapInput(inputs, "data")
	if data == nil {
		data = map[string]any{}
	}

	id, _ := primitive.StringInput(inputs, "entity_id")
	if id == "" {
		title, _ := primitive.StringInput(inputs, "title")
		if title == "" {
			title, _ = data["title"].(string)
		}
		if title == "" {
			return primitive.Fail(primitive.KindInvalidInputs, "either entity_id or title is required")
		}
		id = schema.EntityID(entityType, title)
		if _, present := data["title"]; !present {
			data["title"] = title
		}
	}

	existed, err := ec.Store.HasEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}

	if err := ec.Store.SaveGeneric(ctx, id, entityType, data); err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{
		"entity_id":   id,
		"entity_type": entityType,
		"created":     !existed,
	})
}

func getEntity(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")

	e, err := ec.Store.GetEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}
	return primitive.Ok(entityPayload(e))
}

func updateEntityData(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	patch, ok := primitive.MapInput(inputs, "data")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "data must be an object")
	}

	e, err := ec.Store.GetEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}

	for k, v := range patch {
		e.Data[k] = v
	}

	if err := ec.Store.SaveEntity(ctx, e); err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{"entity_id": id, "updated": true})
}

func entitiesQuery(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	f := store.EntityFilter{Limit: intInput(inputs, "limit", 0)}
	f.Type, _ = primitive.StringInput(inputs, "type")
	f.Status, _ = primitive.StringInput(inputs, "status")
	f.Tag, _ = primitive.StringInput(inputs, "tag")
	f.CircleID, _ = primitive.StringInput(inputs, "circle_id")

	entities, err := ec.Store.QueryEntities(ctx, f)
	if err != nil {
		return failStore(err)
	}

	out := make([]any, 0, len(entities))
	for _, e := range entities {
		out = append(out, entityPayload(e))
	}
	return primitive.Ok(map[string]any{"entities": out, "count": len(out)})
}

func manageBond(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	verb, _ := primitive.StringInput(inputs, "verb")
	fromID, _ := primitive.StringInput(inputs, "from")
	toID, _ := primitive.StringInput(inputs, "to")

	if !schema.KnownVerb(verb) {
		return primitive.Fail(primitive.KindInvalidInputs, "unknown bond verb: %s", verb)
	}

	confidence := 1.0
	if c, ok := primitive.FloatInput(inputs, "confidence"); ok {
		confidence = c
	}
	status, _ := primitive.StringInput(inputs, "status")
	data, _ := primitive.MapInput(inputs, "data")

	b := &schema.Bond{
		Type:       verb,
		FromID:     fromID,
		ToID:       toID,
		Status:     status,
		Confidence: confidence,
		Data:       data,
	}
	if err := ec.Store.SaveBond(ctx, b); err != nil {
		return failStore(err)
	}

	var signalID string
	if b.Tentative() {
		id, err := emitSignalEntity(ctx, ec, signalParams{
			Title:       fmt.Sprintf("Tentative bond created (confidence=%g)", b.Confidence),
			Description: fmt.Sprintf("Bond %s: %s -> %s with confidence %g", verb, fromID, toID, b.Confidence),
			SignalType:  "epistemic",
			Urgency:     "normal",
			SourceID:    b.ID,
		})
		if err != nil {
			return failStore(err)
		}
		signalID = id
	}

	out := map[string]any{
		"id":         b.ID,
		"verb":       b.Type,
		"from":       b.FromID,
		"to":         b.ToID,
		"status":     b.Status,
		"confidence": b.Confidence,
		"tentative":  b.Tentative(),
	}
	if signalID != "" {
		out["signal_id"] = signalID
	}
	return primitive.Ok(out)
}

func updateBondConfidence(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	confidence, ok := primitive.FloatInput(inputs, "confidence")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "confidence must be a number")
	}

	prev, stored, err := ec.Store.UpdateBondConfidence(ctx, id, confidence)
	if err != nil {
		return failStore(err)
	}

	var signalID string
	if stored < prev {
		drop := prev - stored
		urgency := "normal"
		if drop >= 0.5 {
			urgency = "high"
		}
		sid, err := emitSignalEntity(ctx, ec, signalParams{
			Title:       fmt.Sprintf("Bond confidence dropped (%.2f -> %.2f)", prev, stored),
			Description: fmt.Sprintf("Bond %s confidence changed from %.2f to %.2f", id, prev, stored),
			SignalType:  "epistemic",
			Urgency:     urgency,
			SourceID:    id,
		})
		if err != nil {
			return failStore(err)
		}
		signalID = sid
	}

	out := map[string]any{"id": id, "previous": prev, "new": stored}
	if signalID != "" {
		out["signal_id"] = signalID
	}
	return primitive.Ok(out)
}

func getConstellation(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")

	groups, err := ec.Store.Constellation(ctx, id)
	if err != nil {
		return failStore(err)
	}

	constellation := map[string]any{}
	total := 0
	for verb, entries := range groups {
		rows := make([]any, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, map[string]any{
				"bond_id":           e.Bond.ID,
				"direction":         e.Direction,
				"counterpart":       e.Counterpart,
				"counterpart_type":  e.CounterpartType,
				"counterpart_title": e.CounterpartTitle,
				"confidence":        e.Bond.Confidence,
				"status":            e.Bond.Status,
			})
		}
		constellation[verb] = rows
		total += len(entries)
	}

	return primitive.Ok(map[string]any{
		"entity_id":     id,
		"constellation": constellation,
		"bond_count":    total,
	})
}

func compost(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")
	force, _ := inputs["force"].(bool)

	e, err := ec.Store.GetEntity(ctx, id)
	if err != nil {
		return failStore(err)
	}

	bonds, err := ec.Store.QueryBonds(ctx, store.BondFilter{EitherID: id})
	if err != nil {
		return failStore(err)
	}
	active := 0
	for _, b := range bonds {
		if b.Status == schema.BondActive {
			active++
		}
	}
	if active > 0 && !force {
		return primitive.Fail(primitive.KindExecutionError,
			"entity %s has %d active bonds; pass force to compost anyway", id, active)
	}

	learningID := fmt.Sprintf("learning-composted-%s-%s", e.Type, uuid.NewString()[:8])
	learning := map[string]any{
		"title":          fmt.Sprintf("Composted %s: %s", e.Type, id),
		"insight":        fmt.Sprintf("Entity %q was composted with %d bonds archived.", e.Title(), len(bonds)),
		"domain":         "metabolism",
		"composted_type": e.Type,
		"composted_id":   id,
		"bonds_archived": len(bonds),
		"composted_at":   nowStamp(),
	}
	if err := ec.Store.SaveGeneric(ctx, learningID, schema.KindLearning, learning); err != nil {
		return failStore(err)
	}

	archiveID, err := ec.Store.ArchiveEntity(ctx, id, store.ArchiveOptions{
		Force:      force,
		ArchivedBy: "primitive-compost",
		Reason:     "composted",
		LearningID: learningID,
	})
	if err != nil {
		return failStore(err)
	}

	return primitive.Ok(map[string]any{
		"archived":       true,
		"archive_id":     archiveID,
		"learning_id":    learningID,
		"bonds_archived": len(bonds),
	})
}

func resurrect(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	archiveID, _ := primitive.StringInput(inputs, "archive_id")

	e, err := ec.Store.Resurrect(ctx, archiveID)
	if err != nil {
		return failStore(err)
	}
	return primitive.Ok(map[string]any{"entity_id": e.ID, "entity_type": e.Type})
}
