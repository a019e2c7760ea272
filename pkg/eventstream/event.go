package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeEntityChanged is emitted after a synced entity is committed.
	EventTypeEntityChanged = "chora.entity.changed"
)

// EntityChangedEvent is a transport-neutral payload for one committed
// entity change routed to cloud circles.
type EntityChangedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	// SiteID identifies the emitting site (the keyring user).
	SiteID string `json:"site_id,omitempty"`

	EntityID   string         `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	CircleIDs  []string       `json:"circle_ids"`
	Data       map[string]any `json:"data,omitempty"`
}
