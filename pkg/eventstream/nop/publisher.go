package nop

import (
	"context"

	"github.com/papercomputeco/chora/pkg/eventstream"
)

// Publisher is a no-op eventstream publisher used for tests and local-only
// mode.
type Publisher struct{}

// NewPublisher creates a new no-op eventstream publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishEntityChange validates input and otherwise does nothing.
func (p *Publisher) PublishEntityChange(_ context.Context, event *eventstream.EntityChangedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
