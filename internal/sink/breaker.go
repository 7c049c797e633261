package sink

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/syncdata/cdc-relay/internal/domain"
)

// BreakerConfig controls the circuit breaker placed in front of a sink.
type BreakerConfig struct {
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open
}

func newBreaker(name string, cfg BreakerConfig, logger zerolog.Logger) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// shutdown cancellations say nothing about the sink's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
}

func execute(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// BreakingDocumentSink fails fast with gobreaker.ErrOpenState while the
// wrapped sink is considered down.
type BreakingDocumentSink struct {
	next DocumentSink
	cb   *gobreaker.CircuitBreaker
}

// NewBreakingDocumentSink wraps next in a circuit breaker.
func NewBreakingDocumentSink(next DocumentSink, cfg BreakerConfig, logger zerolog.Logger) *BreakingDocumentSink {
	return &BreakingDocumentSink{next: next, cb: newBreaker("document-sink", cfg, logger)}
}

func (s *BreakingDocumentSink) Upsert(ctx context.Context, snapshot domain.Snapshot) error {
	return execute(s.cb, func() error { return s.next.Upsert(ctx, snapshot) })
}

func (s *BreakingDocumentSink) Delete(ctx context.Context, key any) error {
	return execute(s.cb, func() error { return s.next.Delete(ctx, key) })
}

// BreakingSearchSink is the SearchSink counterpart of BreakingDocumentSink.
type BreakingSearchSink struct {
	next SearchSink
	cb   *gobreaker.CircuitBreaker
}

// NewBreakingSearchSink wraps next in a circuit breaker.
func NewBreakingSearchSink(next SearchSink, cfg BreakerConfig, logger zerolog.Logger) *BreakingSearchSink {
	return &BreakingSearchSink{next: next, cb: newBreaker("search-sink", cfg, logger)}
}

func (s *BreakingSearchSink) UpsertAsUpdate(ctx context.Context, snapshot domain.Snapshot) error {
	return execute(s.cb, func() error { return s.next.UpsertAsUpdate(ctx, snapshot) })
}

func (s *BreakingSearchSink) Delete(ctx context.Context, key any) error {
	return execute(s.cb, func() error { return s.next.Delete(ctx, key) })
}
