package eventstream

import "context"

// Publisher publishes entity change events to an event stream backend.
type Publisher interface {
	PublishEntityChange(ctx context.Context, event *EntityChangedEvent) error
	Close() error
}
