package std

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/papercomputeco/chora/pkg/primitive"
)

// The logic domain is pure data manipulation. No handler here touches the
// store; protocols compose these to shape payloads between calls.
func logicSpecs() []primitive.Spec {
	return []primitive.Spec{
		{
			ID:          "primitive-json-get",
			Description: "Extract a value from nested data using a dot-notation path",
			Required:    []string{"data", "path"},
			Optional:    []string{"default"},
			Handler:     jsonGet,
		},
		{
			ID:          "primitive-json-set",
			Description: "Set a value in nested data using a dot-notation path",
			Required:    []string{"data", "path", "value"},
			Handler:     jsonSet,
		},
		{
			ID:          "primitive-json-parse",
			Description: "Parse a JSON string into structured data",
			Required:    []string{"json_str"},
			Handler:     jsonParse,
		},
		{
			ID:          "primitive-list-map",
			Description: "Extract a field from each item in a list",
			Required:    []string{"items", "key"},
			Handler:     listMap,
		},
		{
			ID:          "primitive-list-filter",
			Description: "Filter list items by a predicate on a field",
			Required:    []string{"items", "key", "op"},
			Optional:    []string{"value"},
			Handler:     listFilter,
		},
		{
			ID:          "primitive-list-sort",
			Description: "Sort a list of objects by a field",
			Required:    []string{"items", "key"},
			Optional:    []string{"reverse"},
			Handler:     listSort,
		},
		{
			ID:          "primitive-list-length",
			Description: "Count the items in a list",
			Required:    []string{"items"},
			Handler:     listLength,
		},
		{
			ID:          "primitive-list-mode",
			Description: "Find the most common value in a list",
			Required:    []string{"items"},
			Handler:     listMode,
		},
		{
			ID:          "primitive-list-slice",
			Description: "Slice a list by start and end index",
			Required:    []string{"items"},
			Optional:    []string{"start", "end"},
			Handler:     listSlice,
		},
		{
			ID:          "primitive-string-format",
			Description: "Fill a {name} template from a values object",
			Required:    []string{"template", "values"},
			Handler:     stringFormat,
		},
		{
			ID:          "primitive-string-join",
			Description: "Join list items into a string with a separator",
			Required:    []string{"items"},
			Optional:    []string{"separator"},
			Handler:     stringJoin,
		},
	}
}

func jsonGet(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	data, ok := primitive.MapInput(inputs, "data")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "data must be an object")
	}
	path, _ := primitive.StringInput(inputs, "path")

	value, found := pathValue(data, path)
	if !found {
		value = inputs["default"]
	}
	return primitive.Ok(map[string]any{"value": value, "found": found})
}

func jsonSet(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	data, ok := primitive.MapInput(inputs, "data")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "data must be an object")
	}
	path, _ := primitive.StringInput(inputs, "path")

	result, err := copyTree(data)
	if err != nil {
		return primitive.Fail(primitive.KindInvalidInputs, "copying data: %s", err.Error())
	}

	keys := strings.Split(path, ".")
	current := result
	for _, key := range keys[:len(keys)-1] {
		next, present := current[key]
		if !present {
			child := map[string]any{}
			current[key] = child
			current = child
			continue
		}
		child, isMap := next.(map[string]any)
		if !isMap {
			return primitive.Fail(primitive.KindInvalidInputs,
				"path %q blocked by a non-object value at %q", path, key)
		}
		current = child
	}
	current[keys[len(keys)-1]] = inputs["value"]

	return primitive.Ok(map[string]any{"data": result})
}

func jsonParse(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	raw, _ := primitive.StringInput(inputs, "json_str")

	var data any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return primitive.Fail(primitive.KindInvalidInputs, "parsing json: %s", err.Error())
	}
	return primitive.Ok(map[string]any{"data": data})
}

func listMap(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	key, _ := primitive.StringInput(inputs, "key")

	values := make([]any, 0, len(items))
	for _, item := range items {
		v, _ := pathValue(item, key)
		values = append(values, v)
	}
	return primitive.Ok(map[string]any{"values": values, "count": len(values)})
}

var filterOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "lt": true,
	"gte": true, "lte": true, "contains": true, "exists": true,
}

func listFilter(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	key, _ := primitive.StringInput(inputs, "key")
	op, _ := primitive.StringInput(inputs, "op")
	value := inputs["value"]

	if !filterOps[op] {
		return primitive.Fail(primitive.KindInvalidInputs, "invalid operator %q", op)
	}

	matches := func(item any) bool {
		fv, found := pathValue(item, key)
		switch op {
		case "exists":
			return found && fv != nil
		case "eq":
			return looseEqual(fv, value)
		case "neq":
			return !looseEqual(fv, value)
		case "gt":
			less, orderable := looseLess(value, fv)
			return orderable && less
		case "lt":
			less, orderable := looseLess(fv, value)
			return orderable && less
		case "gte":
			less, orderable := looseLess(fv, value)
			return orderable && !less
		case "lte":
			less, orderable := looseLess(value, fv)
			return orderable && !less
		case "contains":
			switch c := fv.(type) {
			case string:
				sv, isStr := value.(string)
				return isStr && strings.Contains(c, sv)
			case []any:
				for _, e := range c {
					if looseEqual(e, value) {
						return true
					}
				}
			}
			return false
		}
		return false
	}

	filtered := []any{}
	for _, item := range items {
		if matches(item) {
			filtered = append(filtered, item)
		}
	}
	return primitive.Ok(map[string]any{"items": filtered, "count": len(filtered)})
}

func listSort(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	key, _ := primitive.StringInput(inputs, "key")
	reverse, _ := inputs["reverse"].(bool)

	sorted := make([]any, len(items))
	copy(sorted, items)

	// Items missing the field sort to the end in either direction.
	less := func(a, b any, aFound, bFound bool) bool {
		if !aFound {
			return false
		}
		if !bFound {
			return true
		}
		if l, orderable := looseLess(a, b); orderable {
			return l
		}
		return fmt.Sprint(a) < fmt.Sprint(b)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		av, aFound := pathValue(sorted[i], key)
		bv, bFound := pathValue(sorted[j], key)
		aFound = aFound && av != nil
		bFound = bFound && bv != nil
		if reverse {
			return less(bv, av, bFound, aFound)
		}
		return less(av, bv, aFound, bFound)
	})

	return primitive.Ok(map[string]any{"items": sorted, "count": len(sorted)})
}

func listLength(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	return primitive.Ok(map[string]any{"length": len(items)})
}

func listMode(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	if len(items) == 0 {
		return primitive.Ok(map[string]any{"value": nil, "count": 0, "found": false})
	}

	counts := map[string]int{}
	for _, item := range items {
		counts[fmt.Sprint(item)]++
	}

	// Ties break toward the first-encountered value.
	best := items[0]
	bestCount := 0
	for _, item := range items {
		if c := counts[fmt.Sprint(item)]; c > bestCount {
			best, bestCount = item, c
		}
	}
	return primitive.Ok(map[string]any{"value": best, "count": bestCount, "found": true})
}

func listSlice(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}

	n := len(items)
	start, end := 0, n
	if v, present := primitive.FloatInput(inputs, "start"); present {
		start = int(v)
	}
	if v, present := primitive.FloatInput(inputs, "end"); present {
		end = int(v)
	}

	// Negative indexes count from the end.
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end {
		start = end
	}

	sliced := append([]any{}, items[start:end]...)
	return primitive.Ok(map[string]any{"items": sliced, "length": len(sliced)})
}

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

func stringFormat(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	template, _ := primitive.StringInput(inputs, "template")
	values, ok := primitive.MapInput(inputs, "values")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "values must be an object")
	}

	missing := []string{}
	result := placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		v, present := values[name]
		if !present {
			missing = append(missing, name)
			return m
		}
		return fmt.Sprint(v)
	})
	if len(missing) > 0 {
		return primitive.Fail(primitive.KindInvalidInputs, "missing template key %q", missing[0])
	}
	return primitive.Ok(map[string]any{"result": result})
}

func stringJoin(ctx context.Context, inputs map[string]any, ec *primitive.ExecContext) primitive.Response {
	items, ok := listInput(inputs, "items")
	if !ok {
		return primitive.Fail(primitive.KindInvalidInputs, "items must be a list")
	}
	separator, _ := inputs["separator"].(string)

	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, fmt.Sprint(item))
	}
	return primitive.Ok(map[string]any{"result": strings.Join(parts, separator)})
}

// pathValue walks a dot-notation path through nested maps, with numeric
// segments indexing into lists.
func pathValue(obj any, path string) (any, bool) {
	current := obj
	for _, key := range strings.Split(path, ".") {
		switch c := current.(type) {
		case map[string]any:
			v, present := c[key]
			if !present {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(key)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil, false
			}
			current = c[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func listInput(inputs map[string]any, key string) ([]any, bool) {
	v, ok := inputs[key].([]any)
	return v, ok
}

// copyTree deep-copies a JSON-shaped map so the caller's input survives
// mutation.
func copyTree(m map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// looseEqual compares JSON values, treating all numeric types as one.
func looseEqual(a, b any) bool {
	if af, aNum := asFloat(a); aNum {
		if bf, bNum := asFloat(b); bNum {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

// looseLess orders two values when they share a comparable type; the second
// return is false for mixed or non-orderable pairs.
func looseLess(a, b any) (less, orderable bool) {
	if af, aNum := asFloat(a); aNum {
		if bf, bNum := asFloat(b); bNum {
			return af < bf, true
		}
	}
	if as, aStr := a.(string); aStr {
		if bs, bStr := b.(string); bStr {
			return as < bs, true
		}
	}
	return false, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}
