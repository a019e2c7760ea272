package vm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var templateRef = regexp.MustCompile(`\{(\$\.[^}]+)\}`)

// resolveValue renders one template value against the binding map.
// A bare "$.path" string resolves to the referenced value (nil on miss);
// a string containing "{$.path}" segments interpolates them as text;
// maps and slices resolve recursively; everything else passes through.
func resolveValue(v any, bindings map[string]any) any {
	switch t := v.(type) {
	case string:
		if strings.HasPrefix(t, "$.") {
			return lookupPath(t, bindings)
		}
		if templateRef.MatchString(t) {
			return templateRef.ReplaceAllStringFunc(t, func(m string) string {
				ref := templateRef.FindStringSubmatch(m)[1]
				return stringify(lookupPath(ref, bindings))
			})
		}
		return t

	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = resolveValue(val, bindings)
		}
		return out

	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = resolveValue(val, bindings)
		}
		return out

	default:
		return v
	}
}

// resolveMap renders a whole template object.
func resolveMap(tmpl, bindings map[string]any) map[string]any {
	out := make(map[string]any, len(tmpl))
	for k, v := range tmpl {
		out[k] = resolveValue(v, bindings)
	}
	return out
}

// lookupPath walks a "$.a.b.0.c" reference through maps and lists,
// returning nil on any miss.
func lookupPath(ref string, bindings map[string]any) any {
	path := strings.TrimPrefix(ref, "$.")
	var cur any = bindings

	for _, seg := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[seg]
			if !ok {
				return nil
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
