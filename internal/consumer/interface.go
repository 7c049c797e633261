package consumer

import (
	"context"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// ChangeEventHandler processes one change event read from the stream.
type ChangeEventHandler interface {
	HandleChangeEvent(ctx context.Context, event *domain.ChangeEvent) domain.Outcome
}

// ChangeEventConsumer manages the stream consumer lifecycle.
type ChangeEventConsumer interface {
	// Run blocks, handing events to the handler one at a time, until ctx
	// is cancelled or the client hits a fatal error.
	Run(ctx context.Context) error
	Close() error
}
