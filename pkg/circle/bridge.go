package circle

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/papercomputeco/chora/pkg/eventstream"
	"github.com/papercomputeco/chora/pkg/store"
)

// Change is one queued sync record: a committed entity write together with
// the cloud circles that should receive it.
type Change struct {
	ID         string         `json:"id"`
	EntityID   string         `json:"entity_id"`
	EntityType string         `json:"entity_type"`
	Data       map[string]any `json:"data"`
	CircleIDs  []string       `json:"circle_ids"`
	SiteID     string         `json:"site_id"`
	Timestamp  string         `json:"timestamp"`
}

// BridgeConfig holds sync bridge construction options.
type BridgeConfig struct {
	Store   *store.Store
	Keyring *Keyring

	// SiteID identifies this site in change records. Auto-generated when
	// empty.
	SiteID string

	// Publisher receives an entity change event per queued change. Optional.
	Publisher eventstream.Publisher

	Logger *zap.Logger
}

// Bridge hooks into the store's save hooks and queues changes for cloud
// circles. Every save of a routed entity produces a queue entry; the queue
// preserves per-entity order.
type Bridge struct {
	store     *store.Store
	router    *Router
	siteID    string
	publisher eventstream.Publisher
	logger    *zap.Logger

	mu       sync.Mutex
	pending  []Change
	callback func([]Change)

	hookID int
	closed bool
}

// NewBridge creates a bridge and registers its save hook with the store.
func NewBridge(cfg BridgeConfig) *Bridge {
	if cfg.SiteID == "" {
		cfg.SiteID = "site-" + uuid.NewString()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	b := &Bridge{
		store:     cfg.Store,
		router:    NewRouter(cfg.Store, cfg.Keyring),
		siteID:    cfg.SiteID,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
	}
	b.hookID = cfg.Store.AddSaveHook(b.onEntitySaved)
	return b
}

// SiteID returns this site's identifier.
func (b *Bridge) SiteID() string {
	return b.siteID
}

// SetChangeCallback registers a callback invoked with each batch of newly
// queued changes. Pass nil to clear.
func (b *Bridge) SetChangeCallback(fn func([]Change)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.callback = fn
}

// Pending returns a copy of the changes waiting to be flushed.
func (b *Bridge) Pending() []Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Change, len(b.pending))
	copy(out, b.pending)
	return out
}

// Flush returns all pending changes and clears the queue.
func (b *Bridge) Flush() []Change {
	b.mu.Lock()
	defer b.mu.Unlock()
	changes := b.pending
	b.pending = nil
	return changes
}

// Close removes the save hook. The bridge queues no further changes;
// anything already pending stays flushable.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.store.RemoveSaveHook(b.hookID)
}

// onEntitySaved is the save hook. It runs after the commit; routing errors
// are logged, never surfaced to the writer.
func (b *Bridge) onEntitySaved(id, entityType string, data map[string]any) {
	ctx := context.Background()

	circleIDs, err := b.router.TargetCircles(ctx, id)
	if err != nil {
		b.logger.Warn("routing entity change", zap.String("entity_id", id), zap.Error(err))
		return
	}
	if len(circleIDs) == 0 {
		return
	}

	change := Change{
		ID:         "change-" + uuid.NewString(),
		EntityID:   id,
		EntityType: entityType,
		Data:       data,
		CircleIDs:  circleIDs,
		SiteID:     b.siteID,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}

	b.mu.Lock()
	b.pending = append(b.pending, change)
	callback := b.callback
	b.mu.Unlock()

	if callback != nil {
		callback([]Change{change})
	}

	if b.publisher != nil {
		event := &eventstream.EntityChangedEvent{
			SchemaVersion: eventstream.SchemaVersionV1,
			EventType:     eventstream.EventTypeEntityChanged,
			EventID:       change.ID,
			EmittedAt:     time.Now().UTC(),
			SiteID:        b.siteID,
			EntityID:      id,
			EntityType:    entityType,
			CircleIDs:     circleIDs,
			Data:          data,
		}
		if err := b.publisher.PublishEntityChange(ctx, event); err != nil {
			b.logger.Warn("publishing entity change", zap.String("entity_id", id), zap.Error(err))
		}
	}
}
