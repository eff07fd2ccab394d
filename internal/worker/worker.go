package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"todo-api/internal/cache"
	"todo-api/internal/config"
	"todo-api/internal/models"
	"todo-api/pkg/logger"
)

// GroupID is the consumer group shared by every replica's worker.
const GroupID = "todo-cache-invalidators"

// Run consumes the change feed and invalidates the list cache for every event.
// It returns when ctx is done. Scale by running more replicas (the group shares partitions).
func Run(ctx context.Context, cfg *config.Config, c *cache.Cache) {
	if !cfg.KafkaEnabled() {
		logger.Info(ctx, "Worker disabled (no Kafka brokers)")
		return
	}
	if c == nil {
		logger.Info(ctx, "Worker disabled (no list cache)")
		return
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	var processed int64
	logger.Info(ctx, "Kafka consumer started", "topic", cfg.KafkaTopic)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info(ctx, "Kafka consumer stopped", "processed", processed)
				return
			}
			logger.Error(ctx, "Worker fetch failed", "error", err)
			continue
		}
		if err := handleMessage(ctx, c, msg.Value); err != nil {
			logger.Error(ctx, "Worker handle failed", "error", err, "payload", string(msg.Value))
		}
		// Poison messages are committed too so they cannot block the partition.
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			logger.Error(ctx, "Worker commit failed", "error", err)
		}
		processed++
	}
}

func handleMessage(ctx context.Context, c *cache.Cache, payload []byte) error {
	var evt models.TodoEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return err
	}
	switch evt.Action {
	case models.ActionCreated, models.ActionToggled, models.ActionDeleted:
	default:
		return fmt.Errorf("unknown action %q", evt.Action)
	}
	c.InvalidateTodos(ctx)
	logger.Debug(ctx, "Todo change applied to cache", "action", evt.Action, "id", evt.Todo.ID)
	return nil
}
