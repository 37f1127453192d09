package eventstream

import (
	"context"
	"errors"
)

// ErrNilEvent indicates a nil event payload was provided to a publisher.
var ErrNilEvent = errors.New("nil document indexed event")

// Publisher announces indexed documents to an event stream backend. A
// publish failure never fails the indexing that produced the event.
type Publisher interface {
	PublishDocumentIndexed(ctx context.Context, event *DocumentIndexedEvent) error
	Close() error
}
