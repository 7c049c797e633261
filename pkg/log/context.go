package log

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithEvent derives a child logger tagged with a fresh event id and the
// stream coordinates of a consumed message, and stores it in ctx.
func WithEvent(ctx context.Context, topic string, partition int32, offset int64) (context.Context, zerolog.Logger) {
	child := Ctx(ctx).With().
		Str(FieldEventID, uuid.New().String()).
		Str(FieldTopic, topic).
		Int32(FieldPartition, partition).
		Int64(FieldOffset, offset).
		Logger()

	return WithLogger(ctx, child), child
}
