package schema

import "fmt"

// endpointRule is one allowed (from, to) pair for a verb. The wildcard "*"
// matches any entity type.
type endpointRule struct {
	From string
	To   string
}

const anyType = "*"

// physics is the closed table of allowed (verb, from.type, to.type) triples.
// Changing it is a schema migration, not runtime configuration.
var physics = map[string][]endpointRule{
	"yields":   {{KindInquiry, KindLearning}},
	"surfaces": {{KindLearning, KindPrinciple}},
	"induces":  {{KindLearning, KindPattern}},
	"governs":  {{KindPrinciple, KindPattern}},
	"clarifies": {
		{KindPrinciple, KindStory},
	},
	"structures": {
		{KindPattern, KindStory},
		{KindPattern, KindBehavior},
	},
	"specifies":  {{KindStory, KindBehavior}},
	"implements": {{KindBehavior, KindTool}},
	"verifies":   {{KindTool, KindBehavior}},
	"emits":      {{KindTool, KindSignal}},
	"triggers": {
		{KindSignal, KindProtocol},
		{KindSignal, KindFocus},
	},
	"crystallized-from": {{anyType, anyType}},
	"inhabits":          {{anyType, KindCircle}},
	"belongs-to":        {{KindAsset, KindCircle}},
	"stewards":          {{KindPersona, KindCircle}},
}

// Verbs returns all verbs in the physics table.
func Verbs() []string {
	out := make([]string, 0, len(physics))
	for v := range physics {
		out = append(out, v)
	}
	return out
}

// KnownVerb reports whether the verb exists in the physics table.
func KnownVerb(verb string) bool {
	_, ok := physics[verb]
	return ok
}

// AllowedBond reports whether the (verb, fromType, toType) triple is
// permitted by the physics table.
func AllowedBond(verb, fromType, toType string) bool {
	rules, ok := physics[verb]
	if !ok {
		return false
	}
	for _, r := range rules {
		if (r.From == anyType || r.From == fromType) && (r.To == anyType || r.To == toType) {
			return true
		}
	}
	return false
}

// AllowedVerbs returns every verb that permits a bond from fromType to toType.
// Used by bond suggestion to constrain candidates to legal triples.
func AllowedVerbs(fromType, toType string) []string {
	out := []string{}
	for verb := range physics {
		if AllowedBond(verb, fromType, toType) {
			out = append(out, verb)
		}
	}
	return out
}

// ErrPhysicsViolation reports a bond write whose (verb, from, to) triple is
// not in the physics table.
type ErrPhysicsViolation struct {
	Verb     string
	FromType string
	ToType   string
}

func (e ErrPhysicsViolation) Error() string {
	if !KnownVerb(e.Verb) {
		return fmt.Sprintf("physics violation: unknown verb %q", e.Verb)
	}
	return fmt.Sprintf("physics violation: %s does not permit %s -> %s", e.Verb, e.FromType, e.ToType)
}

// ValidateBond checks the triple against the physics table, returning
// ErrPhysicsViolation when disallowed.
func ValidateBond(verb, fromType, toType string) error {
	if !AllowedBond(verb, fromType, toType) {
		return ErrPhysicsViolation{Verb: verb, FromType: fromType, ToType: toType}
	}
	return nil
}
