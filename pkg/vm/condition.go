package vm

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/chora/pkg/schema"
)

// evalCondition evaluates a branch edge predicate against the bindings.
// Predicates are pure; unknown operators evaluate false.
func evalCondition(c *schema.EdgeCondition, bindings map[string]any) bool {
	if c == nil {
		return false
	}

	left := resolveValue(c.Left, bindings)
	right := resolveValue(c.Value, bindings)

	switch c.Op {
	case schema.OpEq:
		return looseEqual(left, right)
	case schema.OpNeq:
		return !looseEqual(left, right)
	case schema.OpGt:
		l, lok := toFloat(left)
		r, rok := toFloat(right)
		return lok && rok && l > r
	case schema.OpLt:
		l, lok := toFloat(left)
		r, rok := toFloat(right)
		return lok && rok && l < r
	case schema.OpContains:
		return contains(left, right)
	case schema.OpEmpty:
		return isEmpty(left)
	}
	return false
}

// looseEqual compares across JSON's numeric representations so 1 == 1.0.
func looseEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, stringify(needle))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
	case map[string]any:
		_, ok := h[stringify(needle)]
		return ok
	}
	return false
}

// isEmpty mirrors falsiness: nil, empty string, zero, false, and empty
// collections are all empty.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	if f, ok := toFloat(v); ok {
		return f == 0
	}
	return false
}
