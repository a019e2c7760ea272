package semantic

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/papercomputeco/chora/pkg/schema"
)

// EntityText extracts the text worth embedding for an entity, per type.
// Falls back to the title plus the raw payload when no salient field exists.
func EntityText(e *schema.Entity) string {
	parts := []string{}
	if t := e.Title(); t != "" {
		parts = append(parts, t)
	}

	switch e.Type {
	case schema.KindLearning:
		parts = appendField(parts, e.Data, "insight")
	case schema.KindPrinciple:
		parts = appendField(parts, e.Data, "statement")
	case schema.KindPattern:
		parts = appendField(parts, e.Data, "description", "template")
	case schema.KindStory:
		parts = appendField(parts, e.Data, "description")
	case schema.KindBehavior:
		parts = appendField(parts, e.Data, "given", "when", "then")
	case schema.KindInquiry:
		parts = appendField(parts, e.Data, "question")
	case schema.KindTool:
		parts = appendField(parts, e.Data, "phenomenology", "description")
	default:
		parts = appendField(parts, e.Data, "description")
	}

	if len(parts) == 0 {
		raw, _ := json.Marshal(e.Data)
		return string(raw)
	}
	return strings.Join(parts, "\n")
}

func appendField(parts []string, data map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := data[k].(type) {
		case string:
			if v != "" {
				parts = append(parts, v)
			}
		case nil:
		default:
			parts = append(parts, fmt.Sprintf("%v", v))
		}
	}
	return parts
}

// Cosine computes cosine similarity clamped to [0, 1]. Mismatched or empty
// vectors score zero.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
