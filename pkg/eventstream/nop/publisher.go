// Package nop provides the publisher used when events.provider is "nop".
package nop

import (
	"context"

	"github.com/papercomputeco/folio/pkg/eventstream"
)

// Publisher drops every event.
type Publisher struct{}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// PublishDocumentIndexed rejects nil events and discards the rest.
func (p *Publisher) PublishDocumentIndexed(_ context.Context, event *eventstream.DocumentIndexedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}
	return nil
}

func (p *Publisher) Close() error {
	return nil
}

var _ eventstream.Publisher = (*Publisher)(nil)
