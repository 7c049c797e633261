package sink_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"github.com/syncdata/cdc-relay/internal/domain"
	"github.com/syncdata/cdc-relay/internal/sink"
)

type failingSink struct {
	calls int
	err   error
}

func (f *failingSink) Upsert(context.Context, domain.Snapshot) error { f.calls++; return f.err }

func (f *failingSink) UpsertAsUpdate(context.Context, domain.Snapshot) error {
	f.calls++
	return f.err
}

func (f *failingSink) Delete(context.Context, any) error { f.calls++; return f.err }

func TestBreakingDocumentSink_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	next := &failingSink{err: errors.New("down")}
	s := sink.NewBreakingDocumentSink(next, sink.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, zerolog.Nop())

	ctx := context.Background()
	assert.Error(t, s.Delete(ctx, 1))
	assert.Error(t, s.Delete(ctx, 1))

	err := s.Upsert(ctx, domain.NewSnapshot(domain.Row{}, 1))
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, next.calls)
}

func TestBreakingSearchSink_IgnoresCancellation(t *testing.T) {
	t.Parallel()

	next := &failingSink{err: context.Canceled}
	s := sink.NewBreakingSearchSink(next, sink.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}, zerolog.Nop())

	ctx := context.Background()
	assert.ErrorIs(t, s.Delete(ctx, 1), context.Canceled)
	assert.ErrorIs(t, s.UpsertAsUpdate(ctx, domain.NewSnapshot(domain.Row{}, 1)), context.Canceled)
	assert.Equal(t, 2, next.calls)
}
