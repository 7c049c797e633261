package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/syncdata/cdc-relay/internal/domain"
	pkglog "github.com/syncdata/cdc-relay/pkg/log"
)

// Config holds change stream consumer settings.
type Config struct {
	Brokers          []string
	Topics           []string
	GroupID          string
	AutoOffsetReset  string
	SessionTimeoutMs int
	PollTimeout      time.Duration
}

// messageReader is the subset of *kafka.Consumer the consume loop uses.
type messageReader interface {
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	StoreMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
	Close() error
}

// ConfluentConsumer implements ChangeEventConsumer using confluent-kafka-go.
// Offsets are stored only after an event has been handled, so a crash
// replays the in-flight event instead of losing it.
type ConfluentConsumer struct {
	reader      messageReader
	topics      []string
	pollTimeout time.Duration
	handler     ChangeEventHandler
	doneCh      chan struct{}
}

// NewConfluentConsumer creates a new Kafka consumer for change events.
func NewConfluentConsumer(cfg Config, handler ChangeEventHandler) (*ConfluentConsumer, error) {
	if len(cfg.Topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}

	sessionTimeout := cfg.SessionTimeoutMs
	if sessionTimeout <= 0 {
		sessionTimeout = 45000
	}

	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":        strings.Join(cfg.Brokers, ","),
		"group.id":                 cfg.GroupID,
		"auto.offset.reset":        cfg.AutoOffsetReset,
		"session.timeout.ms":       sessionTimeout,
		"enable.auto.commit":       true,
		"enable.auto.offset.store": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return newConsumer(c, cfg.Topics, cfg.PollTimeout, handler), nil
}

func newConsumer(reader messageReader, topics []string, pollTimeout time.Duration, handler ChangeEventHandler) *ConfluentConsumer {
	if pollTimeout <= 0 {
		pollTimeout = 100 * time.Millisecond
	}
	return &ConfluentConsumer{
		reader:      reader,
		topics:      topics,
		pollTimeout: pollTimeout,
		handler:     handler,
		doneCh:      make(chan struct{}),
	}
}

// Run subscribes and consumes until ctx is cancelled. It returns an error
// only for subscription failures and fatal client errors.
func (cc *ConfluentConsumer) Run(ctx context.Context) error {
	defer close(cc.doneCh)

	if err := cc.reader.SubscribeTopics(cc.topics, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topics %v: %w", cc.topics, err)
	}

	l := pkglog.L()
	l.Info().Strs("topics", cc.topics).Msg("change event consumer started")

	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("change event consumer shutting down")
			return nil
		default:
		}

		msg, err := cc.reader.ReadMessage(cc.pollTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) {
				if kerr.Code() == kafka.ErrTimedOut {
					continue
				}
				if kerr.IsFatal() {
					return fmt.Errorf("fatal kafka error: %w", kerr)
				}
			}
			l.Error().Err(err).Msg("kafka consumer error")
			continue
		}

		// Detached so an in-flight event completes after a shutdown signal.
		cc.processMessage(context.WithoutCancel(ctx), msg)

		if _, err := cc.reader.StoreMessage(msg); err != nil {
			l.Error().Err(err).Msg("failed to store offset")
		}
	}
}

// processMessage hands one message to the handler. A panic is logged with
// the message coordinates and does not stop the loop.
func (cc *ConfluentConsumer) processMessage(ctx context.Context, msg *kafka.Message) {
	event := toChangeEvent(msg)
	ctx, l := pkglog.WithEvent(ctx, event.Topic, event.Partition, event.Offset)

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("recovered from panic while handling change event")
		}
	}()

	l.Debug().Int("bytes", len(event.Value)).Msg("received change event")

	out := cc.handler.HandleChangeEvent(ctx, event)
	if out.Failed() {
		l.Warn().
			AnErr("document_error", out.Document.Err).
			AnErr("search_error", out.Search.Err).
			Msg("change event handled with sink failures")
	}
}

func toChangeEvent(msg *kafka.Message) *domain.ChangeEvent {
	event := &domain.ChangeEvent{
		Partition: msg.TopicPartition.Partition,
		Offset:    int64(msg.TopicPartition.Offset),
		Key:       msg.Key,
		Value:     msg.Value,
		Timestamp: msg.Timestamp,
	}
	if msg.TopicPartition.Topic != nil {
		event.Topic = *msg.TopicPartition.Topic
	}
	return event
}

// Close waits for Run to return, then closes the client. Run must have
// been started.
func (cc *ConfluentConsumer) Close() error {
	<-cc.doneCh
	if err := cc.reader.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	return nil
}
