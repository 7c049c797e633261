package deadletter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

// KafkaPublisher writes records as JSON to a Kafka topic, keyed by row key
// so records of one row stay ordered.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
	logger   zerolog.Logger
	doneCh   chan struct{}
}

// NewKafkaPublisher creates the producer, creating topic first if needed.
func NewKafkaPublisher(brokers, topic string, logger zerolog.Logger) (*KafkaPublisher, error) {
	if topic == "" {
		return nil, fmt.Errorf("dead-letter topic is required")
	}

	if err := ensureTopic(brokers, topic, 1); err != nil {
		logger.Warn().Err(err).Str("topic", topic).Msg("failed to ensure topic, may already exist")
	}

	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"linger.ms":         5,
		"compression.type":  "snappy",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	kp := &KafkaPublisher{
		producer: p,
		topic:    topic,
		logger:   logger,
		doneCh:   make(chan struct{}),
	}

	go kp.deliveryReportHandler()

	return kp, nil
}

func ensureTopic(brokers, topic string, partitions int) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	results, err := admin.CreateTopics(ctx, []kafka.TopicSpecification{
		{
			Topic:             topic,
			NumPartitions:     partitions,
			ReplicationFactor: 1,
		},
	})
	if err != nil {
		return err
	}

	for _, result := range results {
		if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
			return fmt.Errorf("failed to create topic %s: %v", result.Topic, result.Error)
		}
	}

	return nil
}

func (kp *KafkaPublisher) deliveryReportHandler() {
	for e := range kp.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			kp.logger.Error().Err(ev.TopicPartition.Error).Msg("dead-letter delivery failed")
		}
	}
	close(kp.doneCh)
}

// Publish enqueues rec. Delivery failures are reported asynchronously.
func (kp *KafkaPublisher) Publish(_ context.Context, rec *Record) error {
	msg, err := recordMessage(kp.topic, rec)
	if err != nil {
		return err
	}
	if err := kp.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce dead-letter record: %w", err)
	}
	return nil
}

func recordMessage(topic string, rec *Record) (*kafka.Message, error) {
	value, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal dead-letter record: %w", err)
	}

	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(rec.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "sink", Value: []byte(rec.Sink)},
			{Key: "source_topic", Value: []byte(rec.Topic)},
		},
	}, nil
}

// Close flushes pending records and releases producer resources.
func (kp *KafkaPublisher) Close() error {
	if remaining := kp.producer.Flush(5000); remaining > 0 {
		kp.logger.Warn().Int("remaining", remaining).Msg("dead-letter records not flushed")
	}
	kp.producer.Close()
	<-kp.doneCh
	return nil
}
