// Seed adds todos through the configured store backend. Run from project root: go run ./scripts/seed -n 100
//
// Writes bypass the HTTP handlers, so when Kafka is configured every todo is
// published on the change feed and the worker invalidates the list cache.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"todo-api/internal/config"
	"todo-api/internal/controller"
	"todo-api/internal/database"
	"todo-api/internal/models"
	"todo-api/internal/queue"
	"todo-api/internal/repository"
)

func main() {
	total := flag.Int("n", 100, "number of todos to insert")
	flag.Parse()

	config.LoadEnvFile(".env")
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Config failed:", err)
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := database.Open(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Store connection failed:", err)
		os.Exit(1)
	}
	defer repo.Close(ctx)

	var events controller.Publisher
	if cfg.KafkaEnabled() {
		producer := queue.NewProducer(ctx, cfg)
		defer producer.Close()
		events = producer
	} else {
		fmt.Fprintln(os.Stderr, "KAFKA_BROKERS not set; cached lists stay stale until CACHE_TTL_SEC")
	}

	start := time.Now()
	err = seed(ctx, repo, events, *total, func(done int) {
		if done%50 == 0 || done == *total {
			fmt.Printf("\rInserted %d / %d", done, *total)
		}
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "\nSeed failed:", err)
		os.Exit(1)
	}

	fmt.Printf("\nDone: %d todos in %v\n", *total, time.Since(start))
}

// seed creates n todos and publishes a created event for each one. events may be nil.
func seed(ctx context.Context, repo repository.Repository, events controller.Publisher, n int, progress func(done int)) error {
	for i := 1; i <= n; i++ {
		todo := &models.Todo{Text: fmt.Sprintf("Todo %d", i)}
		if err := repo.Create(ctx, todo); err != nil {
			return fmt.Errorf("insert todo %d: %w", i, err)
		}
		if events != nil {
			if err := events.Publish(ctx, models.ActionCreated, *todo); err != nil {
				return fmt.Errorf("publish todo %s: %w", todo.ID, err)
			}
		}
		if progress != nil {
			progress(i)
		}
	}
	return nil
}
