// Package deadletter captures sink writes that failed so they can be
// inspected or replayed by an operator.
package deadletter

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// Sink names used in records.
const (
	SinkDocument = "document"
	SinkSearch   = "search"
)

// Record describes one failed sink call.
type Record struct {
	ID        string        `json:"id"`
	Sink      string        `json:"sink"`
	Action    domain.Action `json:"action"`
	Topic     string        `json:"topic"`
	Partition int32         `json:"partition"`
	Offset    int64         `json:"offset"`
	Key       string        `json:"key"`
	Op        domain.Op     `json:"op"`
	Payload   string        `json:"payload"`
	Error     string        `json:"error"`
	FailedAt  time.Time     `json:"failed_at"`
}

// NewRecord builds a record for a failed sink call on event.
func NewRecord(sink string, action domain.Action, event *domain.ChangeEvent, change *domain.Change, cause error) *Record {
	rec := &Record{
		ID:        uuid.New().String(),
		Sink:      sink,
		Action:    action,
		Topic:     event.Topic,
		Partition: event.Partition,
		Offset:    event.Offset,
		Payload:   string(event.Value),
		FailedAt:  time.Now().UTC(),
	}
	if change != nil {
		rec.Key = domain.KeyString(change.Key)
		rec.Op = change.Op
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return rec
}

// Publisher stores dead-letter records.
type Publisher interface {
	Publish(ctx context.Context, rec *Record) error
	Close() error
}
