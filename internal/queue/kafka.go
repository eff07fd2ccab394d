package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// EnsureTopic creates the change-feed topic with configured partitions.
// Failures are logged; the app still runs (the topic may already exist).
func EnsureTopic(ctx context.Context, cfg *config.Config) {
	if !cfg.KafkaEnabled() {
		return
	}
	conn, err := kafka.DialContext(ctx, "tcp", cfg.KafkaBrokers[0])
	if err != nil {
		logger.Debug(ctx, "Kafka dial for topic creation failed", "error", err)
		return
	}
	defer conn.Close()
	controller, err := conn.Controller()
	if err != nil {
		logger.Debug(ctx, "Kafka controller lookup failed", "error", err)
		return
	}
	ctrlConn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		logger.Debug(ctx, "Kafka controller dial failed", "error", err)
		return
	}
	defer ctrlConn.Close()
	err = ctrlConn.CreateTopics(kafka.TopicConfig{
		Topic:             cfg.KafkaTopic,
		NumPartitions:     cfg.KafkaPartitions,
		ReplicationFactor: 1,
	})
	if err != nil {
		logger.Debug(ctx, "Kafka create topic failed (topic may already exist)", "error", err)
		return
	}
	logger.Info(ctx, "Kafka topic ensured", "topic", cfg.KafkaTopic, "partitions", cfg.KafkaPartitions)
}

// MessageWriter is the part of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes todo change events. A nil *Producer drops events.
type Producer struct {
	w   MessageWriter
	now func() time.Time
}

// NewProducer builds an async writer for the change-feed topic.
func NewProducer(ctx context.Context, cfg *config.Config) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		RequiredAcks: kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error(context.Background(), "Kafka async write failed", "error", err, "messages", len(messages))
			}
		},
	}
	logger.Info(ctx, "Kafka producer initialized", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	return NewProducerWithWriter(w)
}

// NewProducerWithWriter wraps any MessageWriter.
func NewProducerWithWriter(w MessageWriter) *Producer {
	return &Producer{w: w, now: time.Now}
}

// Publish sends one event for the given todo. Events for the same todo share a
// key, so they land on one partition in order.
func (p *Producer) Publish(ctx context.Context, action string, todo models.Todo) error {
	if p == nil {
		return nil
	}
	evt := models.TodoEvent{
		EventID:    uuid.New().String(),
		Action:     action,
		Todo:       todo,
		OccurredAt: p.now().UTC(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(todo.ID),
		Value: payload,
	})
}

func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	return p.w.Close()
}
