package deadletter

import (
	"context"

	"github.com/rs/zerolog"

	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

// LogPublisher only logs records. It is used when no dead-letter store is
// configured.
type LogPublisher struct {
	logger zerolog.Logger
}

// NewLogPublisher creates a publisher that writes records to logger.
func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, rec *Record) error {
	p.logger.Warn().
		Str("dead_letter_id", rec.ID).
		Str(pkglog.FieldSink, rec.Sink).
		Str(pkglog.FieldAction, string(rec.Action)).
		Str(pkglog.FieldTopic, rec.Topic).
		Int32(pkglog.FieldPartition, rec.Partition).
		Int64(pkglog.FieldOffset, rec.Offset).
		Str(pkglog.FieldKey, rec.Key).
		Str("error", rec.Error).
		Msg("sink write dropped")
	return nil
}

func (p *LogPublisher) Close() error { return nil }
