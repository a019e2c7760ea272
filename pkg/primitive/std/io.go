package std

import (
	"context"

	"github.com/papercomputeco/chora/pkg/primitive"
)

func ioSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-echo",
			Description: "Return the input value unchanged",
			Required:    []string{"value"},
			Handler:     echo,
		},
		{
			ID:          "primitive-sys-log",
			Description: "Log a message through the execution context",
			Required:    []string{"message"},
			Optional:    []string{"level"},
			Handler:     sysLog,
		},
		{
			ID:          "primitive-fts-index-entity",
			Description: "Index an entity into the full-text table",
			Required:    []string{"id"},
			Handler:     ftsIndexEntity,
		},
		{
			ID:          "primitive-fts-search",
			Description: "Full-text search over indexed entities",
			Required:    []string{"query"},
			Optional:    []string{"type", "limit"},
			Handler:     ftsSearch,
		},
	}
}

func echo(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	return primitive.Ok(map[string]any{"value": inputs["value"]})
}

func sysLog(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	message, _ := primitive.StringInput(inputs, "message")
	level, _ := primitive.StringInput(inputs, "level")

	switch level {
	case "debug":
		ec.Log().Debug(message)
	case "warn":
		ec.Log().Warn(message)
	case "error":
		ec.Log().Error(message)
	default:
		ec.Log().Info(message)
	}

	return primitive.Ok(map[string]any{"logged": true})
}

func ftsIndexEntity(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	id, _ := primitive.StringInput(inputs, "id")

	if err := ec.Store.IndexEntityFTS(ctx, id); err != nil {
		return failStore(err)
	}
	return primitive.Ok(map[string]any{
		"entity_id": id,
		"indexed":   ec.Store.FTSAvailable(),
	})
}

func ftsSearch(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	query, _ := primitive.StringInput(inputs, "query")
	entityType, _ := primitive.StringInput(inputs, "type")
	limit := intInput(inputs, "limit", 10)

	hits, err := ec.Store.SearchFTS(ctx, query, entityType, limit)
	if err != nil {
		return failStore(err)
	}

	rows := make([]any, 0, len(hits))
	for _, h := range hits {
		rows = append(rows, map[string]any{"id": h.ID, "type": h.Type, "title": h.Title})
	}
	return primitive.Ok(map[string]any{"results": rows, "count": len(rows)})
}
