// Package schema defines the typed graph vocabulary: entity kinds, bond
// verbs, the physics table constraining verb endpoints, and the protocol
// graph structures the interpreter executes.
package schema

import "time"

// Entity kinds understood by the kernel. Data payloads are free-form JSON
// objects; the kind governs which bonds physics allows.
const (
	KindInquiry      = "inquiry"
	KindLearning     = "learning"
	KindPrinciple    = "principle"
	KindPattern      = "pattern"
	KindStory        = "story"
	KindBehavior     = "behavior"
	KindTool         = "tool"
	KindSignal       = "signal"
	KindFocus        = "focus"
	KindProtocol     = "protocol"
	KindPrimitive    = "primitive"
	KindPersona      = "persona"
	KindCircle       = "circle"
	KindAsset        = "asset"
	KindAxiom        = "axiom"
	KindLayout       = "layout"
	KindRelationship = "relationship"
)

// Entity statuses that appear across kinds. Statuses are advisory strings;
// the pulse treats resolved, completed, and digested as terminal.
const (
	StatusActive     = "active"
	StatusProcessing = "processing"
	StatusResolved   = "resolved"
	StatusCompleted  = "completed"
	StatusDigested   = "digested"
	StatusFailed     = "failed"
	StatusDeprecated = "deprecated"
	StatusExpired    = "expired"
)

// Bond statuses.
const (
	BondForming   = "forming"
	BondActive    = "active"
	BondStressed  = "stressed"
	BondDissolved = "dissolved"
)

// Entity is a typed node in the graph. Data holds the kind-specific payload
// exactly as stored.
type Entity struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// Status returns the entity's status field, or empty when unset.
func (e *Entity) Status() string {
	s, _ := e.Data["status"].(string)
	return s
}

// Title returns the entity's title field, or empty when unset.
func (e *Entity) Title() string {
	t, _ := e.Data["title"].(string)
	return t
}

// Bond is a typed, directed edge between two entities. Type is the verb.
// Confidence is clamped to [0, 1]; 1.0 means asserted, below 1.0 tentative.
type Bond struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	FromID     string         `json:"from_id"`
	ToID       string         `json:"to_id"`
	Status     string         `json:"status"`
	Confidence float64        `json:"confidence"`
	Data       map[string]any `json:"data,omitempty"`
}

// Tentative reports whether the bond is held at less than full confidence.
func (b *Bond) Tentative() bool {
	return b.Confidence < 1.0
}

// ClampConfidence forces a confidence value into [0, 1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// TerminalStatus reports whether a status ends an entity's metabolic life.
// The stagnation sweep skips entities in a terminal status.
func TerminalStatus(s string) bool {
	switch s {
	case StatusResolved, StatusCompleted, StatusDigested:
		return true
	}
	return false
}
