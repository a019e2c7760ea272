// Package std is the standard primitive library. Primitives are grouped by
// domain: graph (entities, bonds, archive), attention (signals, focuses),
// chronos (stagnation, pulse sweeps), cognition (semantic operations),
// logic (pure data manipulation), io, and sys. Registration order carries
// no semantics.
package std

import (
	"errors"
	"time"

	"github.com/papercomputeco/chora/pkg/primitive"
	"github.com/papercomputeco/chora/pkg/schema"
	"github.com/papercomputeco/chora/pkg/store"
)

// RegisterAll installs the standard library into a registry.
func RegisterAll(reg *primitive.Registry) {
	for _, s := range Specs() {
		reg.Register(s)
	}
}

// Specs returns every standard primitive spec.
func Specs() []primitive.Spec {
	out := []primitive.Spec{}
	out = append(out, graphSpecs()...)
	out = append(out, attentionSpecs()...)
	out = append(out, chronosSpecs()...)
	out = append(out, cognitionSpecs()...)
	out = append(out, logicSpecs()...)
	out = append(out, ioSpecs()...)
	out = append(out, sysSpecs()...)
	return out
}

// kindFromError maps store and schema errors onto the response taxonomy.
func kindFromError(err error) string {
	var nf store.ErrNotFound
	if errors.As(err, &nf) {
		return primitive.KindNotFound
	}
	var pv schema.ErrPhysicsViolation
	if errors.As(err, &pv) {
		return primitive.KindPhysicsViolation
	}
	var inv store.ErrInvalidData
	if errors.As(err, &inv) {
		return primitive.KindInvalidInputs
	}
	return primitive.KindExecutionError
}

func failStore(err error) primitive.Response {
	return primitive.Fail(kindFromError(err), "%s", err.Error())
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// entityPayload flattens an entity for a response envelope.
func entityPayload(e *schema.Entity) map[string]any {
	return map[string]any{
		"id":         e.ID,
		"type":       e.Type,
		"data":       e.Data,
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func intInput(inputs map[string]any, key string, fallback int) int {
	if v, ok := primitive.FloatInput(inputs, key); ok && v > 0 {
		return int(v)
	}
	return fallback
}
