package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/garyjia/image-annotation/internal/application/port"
	"github.com/garyjia/image-annotation/internal/domain/event"
	kgo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of *kgo.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kgo.Message) error
	Close() error
}

// KafkaConfig holds the event sink settings
type KafkaConfig struct {
	Brokers        []string
	Topic          string
	PublishTimeout time.Duration
}

// KafkaPublisher forwards lifecycle events to a Kafka topic as JSON.
// Messages are keyed by task ID so the events of one task stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewKafkaPublisher creates a publisher writing to cfg.Topic
func NewKafkaPublisher(cfg KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}

	w := &kgo.Writer{
		Addr:                   kgo.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("Kafka event publisher configured",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return newKafkaPublisher(w, cfg.PublishTimeout, logger), nil
}

func newKafkaPublisher(w messageWriter, timeout time.Duration, logger *zap.Logger) *KafkaPublisher {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &KafkaPublisher{
		writer:  w,
		timeout: timeout,
		logger:  logger,
	}
}

// Publish implements port.EventPublisher
func (p *KafkaPublisher) Publish(ctx context.Context, evt *event.Event) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", evt.ID, err)
	}

	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.writer.WriteMessages(cctx, kgo.Message{
		Key:   []byte(strconv.FormatInt(evt.TaskID, 10)),
		Value: b,
		Time:  evt.Timestamp,
		Headers: []kgo.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
			{Key: "event_id", Value: []byte(evt.ID)},
		},
	})
	if err != nil {
		p.logger.Error("Failed to publish lifecycle event",
			zap.String("event_id", evt.ID),
			zap.String("event_type", evt.Type.String()),
			zap.Int64("task_id", evt.TaskID),
			zap.Error(err))
		return fmt.Errorf("failed to publish event %s: %w", evt.ID, err)
	}

	return nil
}

// Close flushes pending writes and closes the connection
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// SplitBrokers parses a comma separated broker list, dropping blanks
func SplitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ port.EventPublisher = (*KafkaPublisher)(nil)
